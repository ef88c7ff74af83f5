package fulfillment

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"restaurant-system/internal/domain"
)

// DefaultStageTimeout bounds how long one stage may stay claimed before the
// activity is retried with a fresh token.
const DefaultStageTimeout = 2 * time.Hour

type Input struct {
	TenantID     string        `json:"tenantId"`
	OrderID      string        `json:"orderId"`
	StageTimeout time.Duration `json:"stageTimeout,omitempty"`
}

type StageRequest struct {
	TenantID string       `json:"tenantId"`
	OrderID  string       `json:"orderId"`
	Stage    domain.Stage `json:"stage"`
}

// StageResult is what the stage worker reports through the completion signal.
type StageResult struct {
	Stage       domain.Stage       `json:"stage"`
	Status      domain.OrderStatus `json:"status"`
	CompletedAt time.Time          `json:"completedAt"`
	Actor       string             `json:"actor,omitempty"`
}

// FulfillmentWorkflow runs kitchen, packaging and delivery strictly in order.
// Each stage is an asynchronously completed activity: it hands its task token
// to the stage queue and the workflow blocks until a worker signals the token.
func FulfillmentWorkflow(ctx workflow.Context, in Input) ([]StageResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("fulfillment started", "tenantId", in.TenantID, "orderId", in.OrderID)

	timeout := in.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	var a *Activities
	results := make([]StageResult, 0, len(domain.Stages))
	for _, st := range domain.Stages {
		var res StageResult
		req := StageRequest{TenantID: in.TenantID, OrderID: in.OrderID, Stage: st}
		if err := workflow.ExecuteActivity(ctx, a.DispatchStage, req).Get(ctx, &res); err != nil {
			logger.Error("stage failed", "orderId", in.OrderID, "stage", string(st), "error", err)
			return results, err
		}
		results = append(results, res)
	}

	logger.Info("fulfillment finished", "orderId", in.OrderID)
	return results, nil
}
