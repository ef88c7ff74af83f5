package fulfillment

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"restaurant-system/internal/common/logger"
)

// WorkflowClient is the part of client.Client used to start fulfillment.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

func WorkflowID(tenantID, orderID string) string {
	return fmt.Sprintf("order-%s-%s", tenantID, orderID)
}

type Starter struct {
	client    WorkflowClient
	taskQueue string
	log       *logger.Logger
}

func NewStarter(c WorkflowClient, taskQueue string, lg *logger.Logger) *Starter {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Starter{client: c, taskQueue: taskQueue, log: lg}
}

// Start launches the fulfillment of an order. Starting an order whose
// workflow is already running returns the running execution.
func (s *Starter) Start(ctx context.Context, tenantID, orderID string) error {
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(tenantID, orderID),
		TaskQueue: s.taskQueue,
	}, FulfillmentWorkflow, Input{TenantID: tenantID, OrderID: orderID})
	if err != nil {
		return fmt.Errorf("start fulfillment of %s/%s: %w", tenantID, orderID, err)
	}
	s.log.InfoCtx(ctx, "fulfillment_started", map[string]any{
		"tenant_id": tenantID, "order_id": orderID, "workflow_id": run.GetID(), "run_id": run.GetRunID(),
	})
	return nil
}

// NewWorker registers the workflow and its activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(FulfillmentWorkflow)
	w.RegisterActivity(acts)
	return w
}

// RunWorker runs w until ctx is done.
func RunWorker(ctx context.Context, w worker.Worker) error {
	if err := w.Start(); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	return nil
}
