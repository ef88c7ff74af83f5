package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
)

var (
	ErrEmptyToken   = errors.New("callback: empty task token")
	ErrInvalidToken = errors.New("callback: malformed task token")
)

// Engine is the durable execution engine seen from the callback side: it
// resolves a pending task by its token.
type Engine interface {
	SendTaskSuccess(ctx context.Context, token string, output []byte) error
	SendTaskFailure(ctx context.Context, token, code, cause string) error
}

type AdapterInterface interface {
	SignalSuccess(ctx context.Context, token string, output any) error
	SignalFailure(ctx context.Context, token string, info domain.FailureInfo) error
}

type Adapter struct {
	engine Engine
	log    *logger.Logger
}

func NewAdapter(engine Engine, lg *logger.Logger) AdapterInterface {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Adapter{engine: engine, log: lg}
}

func (a *Adapter) SignalSuccess(ctx context.Context, token string, output any) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	ctx, span := otel.Tracer("callback").Start(ctx, "callback.signal_success")
	defer span.End()

	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("callback: marshal output: %w", err)
	}
	if err := a.engine.SendTaskSuccess(ctx, token, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.ErrorCtx(ctx, "callback_success_failed", err, nil)
		return fmt.Errorf("callback: send task success: %w", err)
	}
	span.SetAttributes(attribute.Int("callback.payload_bytes", len(payload)))
	a.log.InfoCtx(ctx, "callback_success_sent", nil)
	return nil
}

func (a *Adapter) SignalFailure(ctx context.Context, token string, info domain.FailureInfo) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	ctx, span := otel.Tracer("callback").Start(ctx, "callback.signal_failure")
	defer span.End()

	if err := a.engine.SendTaskFailure(ctx, token, info.Error, info.Cause); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.ErrorCtx(ctx, "callback_failure_failed", err, map[string]any{"code": info.Error})
		return fmt.Errorf("callback: send task failure: %w", err)
	}
	a.log.InfoCtx(ctx, "callback_failure_sent", map[string]any{"code": info.Error, "cause": info.Cause})
	return nil
}

// LogEngine only records signals. It backs --callback=log and local runs
// without a durable engine.
type LogEngine struct {
	log *logger.Logger
}

func NewLogEngine(lg *logger.Logger) *LogEngine {
	if lg == nil {
		lg = logger.Nop()
	}
	return &LogEngine{log: lg}
}

func (e *LogEngine) SendTaskSuccess(_ context.Context, token string, output []byte) error {
	e.log.Info("task_success", map[string]any{"token": token, "output": string(output)})
	return nil
}

func (e *LogEngine) SendTaskFailure(_ context.Context, token, code, cause string) error {
	e.log.Info("task_failure", map[string]any{"token": token, "code": code, "cause": cause})
	return nil
}
