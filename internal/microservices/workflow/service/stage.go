package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"restaurant-system/internal/callback"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
)

// Publisher fans an event out to the tenant's subscribers and the external sink.
type Publisher interface {
	Publish(ctx context.Context, tenantID, eventType string, detail domain.EventDetail) (domain.FanoutResult, error)
}

// StageServiceInterface wraps the engine with the side effects of each
// transition: events on claim and completion, the callback signal on completion.
type StageServiceInterface interface {
	Claim(ctx context.Context, tenantID, orderID string, stage domain.Stage, token, actor string) (domain.StageClaimResult, error)
	Complete(ctx context.Context, tenantID, orderID string, stage domain.Stage, actor string) (domain.StageCompleteResult, error)
	Fail(ctx context.Context, tenantID, orderID string, stage domain.Stage, token string, info domain.FailureInfo) error
	Reconfirm(ctx context.Context, tenantID, orderID string, stage domain.Stage, token string) (*domain.Order, error)
	Status(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
}

// StageOutput is the success payload handed back to the execution engine.
type StageOutput struct {
	TenantID    string             `json:"tenantId"`
	OrderID     string             `json:"orderId"`
	Stage       domain.Stage       `json:"stage"`
	Status      domain.OrderStatus `json:"status"`
	CompletedAt time.Time          `json:"completedAt"`
	Actor       string             `json:"actor,omitempty"`
}

type StageService struct {
	engine    EngineInterface
	callback  callback.AdapterInterface
	publisher Publisher
	log       *logger.Logger

	signalRetry func() backoff.BackOff
}

func NewStageService(engine EngineInterface, cb callback.AdapterInterface, pub Publisher, lg *logger.Logger) *StageService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &StageService{
		engine:    engine,
		callback:  cb,
		publisher: pub,
		log:       lg,
		signalRetry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 3 * time.Second
			return b
		},
	}
}

func (s *StageService) Claim(ctx context.Context, tenantID, orderID string, stage domain.Stage, token, actor string) (domain.StageClaimResult, error) {
	res, err := s.engine.ClaimStage(ctx, tenantID, orderID, stage, token, actor)
	if err != nil {
		return res, err
	}
	ws := res.Order.Workflow.Stage(stage)
	s.publish(ctx, domain.EventStageStarted, domain.EventDetail{
		TenantID:  tenantID,
		OrderID:   orderID,
		Stage:     stage,
		Status:    res.Order.Status,
		StartedAt: ws.StartedAt,
		Actor:     actor,
	})
	return res, nil
}

// Complete signals the engine with the token the guarded update cleared.
// A lost race returns ErrStageNotPending and produces no signal and no event.
func (s *StageService) Complete(ctx context.Context, tenantID, orderID string, stage domain.Stage, actor string) (domain.StageCompleteResult, error) {
	res, err := s.engine.CompleteStage(ctx, tenantID, orderID, stage, actor)
	if err != nil {
		return res, err
	}

	out := StageOutput{
		TenantID:    tenantID,
		OrderID:     orderID,
		Stage:       stage,
		Status:      res.Order.Status,
		CompletedAt: res.CompletedAt,
		Actor:       actor,
	}
	if err := s.signal(ctx, res.Token, out); err != nil {
		// the stored token is cleared; a redelivered message reaches Reconfirm
		s.log.ErrorCtx(ctx, "callback_lost", err, map[string]any{
			"tenant_id": tenantID, "order_id": orderID, "stage": stage,
		})
		return res, fmt.Errorf("signal completion of %s/%s %s: %w", tenantID, orderID, stage, err)
	}

	ws := res.Order.Workflow.Stage(stage)
	s.publish(ctx, domain.EventStageCompleted, domain.EventDetail{
		TenantID:    tenantID,
		OrderID:     orderID,
		Stage:       stage,
		Status:      res.Order.Status,
		StartedAt:   ws.StartedAt,
		CompletedAt: ws.CompletedAt,
		Actor:       actor,
	})
	return res, nil
}

// Fail tells the engine that the invocation behind token cannot succeed.
// The order itself is left untouched.
func (s *StageService) Fail(ctx context.Context, tenantID, orderID string, stage domain.Stage, token string, info domain.FailureInfo) error {
	if err := s.callback.SignalFailure(ctx, token, info); err != nil {
		return err
	}
	if tenantID != "" && orderID != "" {
		s.publish(ctx, domain.EventStageFailed, domain.EventDetail{
			TenantID: tenantID,
			OrderID:  orderID,
			Stage:    stage,
			Reason:   info.Error,
		})
	}
	return nil
}

// Reconfirm signals success under token for a stage that is already
// completed, using the stored completion time and actor. It is the answer to a
// redelivered invocation whose claim found the stage finished. Nothing in the
// order changes and no event is published.
func (s *StageService) Reconfirm(ctx context.Context, tenantID, orderID string, stage domain.Stage, token string) (*domain.Order, error) {
	o, err := s.engine.Status(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	ws := o.Workflow.Stage(stage)
	if ws == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage)
	}
	if ws.Status != domain.StageCompleted || ws.CompletedAt == nil {
		return nil, fmt.Errorf("%w: stage %s is %s", domain.ErrStageNotPending, stage, ws.Status)
	}

	out := StageOutput{
		TenantID:    tenantID,
		OrderID:     orderID,
		Stage:       stage,
		Status:      stage.DoneStatus(),
		CompletedAt: *ws.CompletedAt,
		Actor:       ws.Actor,
	}
	if err := s.signal(ctx, token, out); err != nil {
		return nil, fmt.Errorf("reconfirm %s/%s %s: %w", tenantID, orderID, stage, err)
	}
	s.log.Info("stage_reconfirmed", map[string]any{
		"tenant_id": tenantID, "order_id": orderID, "stage": stage,
	})
	return o, nil
}

func (s *StageService) Status(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	return s.engine.Status(ctx, tenantID, orderID)
}

// signal retries transient callback errors. A token the engine rejects is
// permanent and stops the retry.
func (s *StageService) signal(ctx context.Context, token string, out StageOutput) error {
	op := func() error {
		err := s.callback.SignalSuccess(ctx, token, out)
		if errors.Is(err, callback.ErrInvalidToken) || errors.Is(err, callback.ErrEmptyToken) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(s.signalRetry(), ctx))
}

// publish never fails the transition that already committed.
func (s *StageService) publish(ctx context.Context, eventType string, detail domain.EventDetail) {
	if s.publisher == nil {
		return
	}
	res, err := s.publisher.Publish(ctx, detail.TenantID, eventType, detail)
	if err != nil {
		s.log.ErrorCtx(ctx, "event_publish_failed", err, map[string]any{
			"type": eventType, "tenant_id": detail.TenantID, "order_id": detail.OrderID,
		})
		return
	}
	s.log.Debug("event_published", map[string]any{
		"type": eventType, "tenant_id": detail.TenantID, "order_id": detail.OrderID,
		"delivered": res.Delivered, "stale": res.Pruned,
	})
}
