package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"restaurant-system/internal/callback"
	"restaurant-system/internal/domain"
)

func TestFulfillmentWorkflow_RunsStagesInOrder(t *testing.T) {
	t.Parallel()

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := NewActivities(nil, nil)
	env.RegisterActivity(acts)

	var seen []domain.Stage
	env.OnActivity(acts.DispatchStage, mock.Anything, mock.Anything).Return(
		func(_ context.Context, req StageRequest) (StageResult, error) {
			seen = append(seen, req.Stage)
			return StageResult{Stage: req.Stage, Status: req.Stage.DoneStatus()}, nil
		})

	env.ExecuteWorkflow(FulfillmentWorkflow, Input{TenantID: "t1", OrderID: "o1"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var results []StageResult
	if err := env.GetWorkflowResult(&results); err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(seen) != 3 || seen[0] != domain.StageKitchen || seen[1] != domain.StagePackaging || seen[2] != domain.StageDelivery {
		t.Fatalf("unexpected stage order %v", seen)
	}
	if len(results) != 3 || results[2].Status != domain.StatusDelivered {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestFulfillmentWorkflow_StopsOnStageFailure(t *testing.T) {
	t.Parallel()

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := NewActivities(nil, nil)
	env.RegisterActivity(acts)

	var seen []domain.Stage
	env.OnActivity(acts.DispatchStage, mock.Anything, mock.Anything).Return(
		func(_ context.Context, req StageRequest) (StageResult, error) {
			seen = append(seen, req.Stage)
			if req.Stage == domain.StagePackaging {
				return StageResult{}, temporal.NewNonRetryableApplicationError("order gone", "order_not_found", nil)
			}
			return StageResult{Stage: req.Stage, Status: req.Stage.DoneStatus()}, nil
		})

	env.ExecuteWorkflow(FulfillmentWorkflow, Input{TenantID: "t1", OrderID: "o1"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	err := env.GetWorkflowError()
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != "order_not_found" {
		t.Fatalf("expected order_not_found application error, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("delivery must not be dispatched after a failed stage, saw %v", seen)
	}
}

type publishCall struct {
	exchange, key string
	body          []byte
	headers       amqp.Table
	persistent    bool
}

type recordingPublisher struct {
	calls []publishCall
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, key string, body []byte, headers amqp.Table, _ string, persistent bool) error {
	p.calls = append(p.calls, publishCall{exchange, key, body, headers, persistent})
	return p.err
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	acts := NewActivities(pub, nil)
	raw := []byte{0x0a, 0x01, 0xff, 0x10}

	if err := acts.dispatch(context.Background(), raw, StageRequest{TenantID: "t1", OrderID: "o1", Stage: domain.StagePackaging}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.calls))
	}
	c := pub.calls[0]
	if c.exchange != "" || c.key != "stage.packaging.q" || !c.persistent || c.headers["x-tenant-id"] != "t1" {
		t.Fatalf("unexpected publish %+v", c)
	}

	var msg domain.StageMessage
	if err := json.Unmarshal(c.body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := callback.DecodeToken(msg.TaskToken)
	if err != nil || string(got) != string(raw) || msg.OrderID != "o1" {
		t.Fatalf("token did not round trip: %+v %v", msg, err)
	}

	pub.err = errors.New("channel closed")
	if err := acts.dispatch(context.Background(), raw, StageRequest{TenantID: "t1", OrderID: "o1", Stage: domain.StageKitchen}); err == nil {
		t.Fatal("expected publish error")
	}
}

type fakeRun struct {
	client.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "run-1" }

type fakeWorkflowClient struct {
	opts client.StartWorkflowOptions
	args []interface{}
}

func (c *fakeWorkflowClient) ExecuteWorkflow(_ context.Context, o client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
	c.opts, c.args = o, args
	return fakeRun{id: o.ID}, nil
}

func TestStarter(t *testing.T) {
	t.Parallel()

	fc := &fakeWorkflowClient{}
	if err := NewStarter(fc, "order-fulfillment", nil).Start(context.Background(), "t1", "o1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if fc.opts.ID != "order-t1-o1" || fc.opts.TaskQueue != "order-fulfillment" {
		t.Fatalf("unexpected options %+v", fc.opts)
	}
	if in, ok := fc.args[0].(Input); !ok || in.OrderID != "o1" {
		t.Fatalf("unexpected args %+v", fc.args)
	}
}
