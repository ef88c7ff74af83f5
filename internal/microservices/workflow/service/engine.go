package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
)

// EngineInterface is the per-order stage state machine.
type EngineInterface interface {
	ClaimStage(ctx context.Context, tenantID, orderID string, stage domain.Stage, token, actor string) (domain.StageClaimResult, error)
	CompleteStage(ctx context.Context, tenantID, orderID string, stage domain.Stage, actor string) (domain.StageCompleteResult, error)
	Status(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
}

type Engine struct {
	orders repository.OrderRepositoryInterface
	log    *logger.Logger
	tracer trace.Tracer

	strict bool
	now    func() time.Time
}

type EngineOption func(*Engine)

// WithStrictOrdering makes a claim require the previous stage to be completed.
func WithStrictOrdering(strict bool) EngineOption {
	return func(e *Engine) { e.strict = strict }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(orders repository.OrderRepositoryInterface, lg *logger.Logger, opts ...EngineOption) EngineInterface {
	if lg == nil {
		lg = logger.Nop()
	}
	e := &Engine{
		orders: orders,
		log:    lg,
		tracer: otel.Tracer("workflow"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ClaimStage(ctx context.Context, tenantID, orderID string, stage domain.Stage, token, actor string) (domain.StageClaimResult, error) {
	ctx, span := e.start(ctx, "workflow.claim_stage", tenantID, orderID, stage)
	defer span.End()

	if err := validateKey(tenantID, orderID); err != nil {
		return domain.StageClaimResult{}, err
	}
	if strings.TrimSpace(token) == "" {
		return domain.StageClaimResult{}, fmt.Errorf("%w: taskToken is required", domain.ErrValidation)
	}

	at := e.now()
	o, err := e.orders.UpdateOrder(ctx, tenantID, orderID, func(o *domain.Order) error {
		return o.ClaimStage(stage, token, actor, at, e.strict)
	})
	if err != nil {
		fail(span, err)
		return domain.StageClaimResult{}, err
	}

	ws := o.Workflow.Stage(stage)
	res := domain.StageClaimResult{Order: o, Stage: stage, StartedAt: at}
	if ws.StartedAt != nil {
		res.StartedAt = *ws.StartedAt
	}
	e.log.InfoCtx(ctx, "stage_claimed", map[string]any{
		"tenant_id": tenantID, "order_id": orderID, "stage": stage, "actor": actor,
	})
	return res, nil
}

// CompleteStage is the single guarded transition of a stage. Of any number of
// concurrent calls for the same stage exactly one returns the token; the rest
// get ErrStageNotPending.
func (e *Engine) CompleteStage(ctx context.Context, tenantID, orderID string, stage domain.Stage, actor string) (domain.StageCompleteResult, error) {
	ctx, span := e.start(ctx, "workflow.complete_stage", tenantID, orderID, stage)
	defer span.End()

	if err := validateKey(tenantID, orderID); err != nil {
		return domain.StageCompleteResult{}, err
	}

	var token string
	at := e.now()
	o, err := e.orders.UpdateOrder(ctx, tenantID, orderID, func(o *domain.Order) error {
		var err error
		token, err = o.CompleteStage(stage, actor, at)
		return err
	})
	if err != nil {
		if domain.IsConflict(err) {
			span.SetAttributes(attribute.Bool("workflow.conflict", true))
			e.log.InfoCtx(ctx, "stage_complete_conflict", map[string]any{
				"tenant_id": tenantID, "order_id": orderID, "stage": stage,
			})
			return domain.StageCompleteResult{}, err
		}
		fail(span, err)
		return domain.StageCompleteResult{}, err
	}

	ws := o.Workflow.Stage(stage)
	if token == "" || ws.TaskToken != "" || ws.Status != domain.StageCompleted {
		err := fmt.Errorf("%w: stage %s of %s/%s completed without a task token", domain.ErrInvariantViolation, stage, tenantID, orderID)
		fail(span, err)
		e.log.ErrorCtx(ctx, "invariant_violation", err, map[string]any{
			"tenant_id": tenantID, "order_id": orderID, "stage": stage,
		})
		return domain.StageCompleteResult{}, err
	}

	res := domain.StageCompleteResult{Order: o, Stage: stage, Token: token, CompletedAt: at}
	if ws.CompletedAt != nil {
		res.CompletedAt = *ws.CompletedAt
	}
	e.log.InfoCtx(ctx, "stage_completed", map[string]any{
		"tenant_id": tenantID, "order_id": orderID, "stage": stage, "actor": actor, "status": o.Status,
	})
	return res, nil
}

func (e *Engine) Status(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	if err := validateKey(tenantID, orderID); err != nil {
		return nil, err
	}
	return e.orders.GetOrder(ctx, tenantID, orderID)
}

func (e *Engine) start(ctx context.Context, name, tenantID, orderID string, stage domain.Stage) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("order.id", orderID),
		attribute.String("order.stage", string(stage)),
	))
}

func validateKey(tenantID, orderID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("%w: orderId is required", domain.ErrValidation)
	}
	return nil
}

func fail(span trace.Span, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
