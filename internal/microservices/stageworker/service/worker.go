package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-system/internal/callback"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/common/tracing"
	"restaurant-system/internal/domain"
	workflow "restaurant-system/internal/microservices/workflow/service"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

// Channel is the consuming side of an AMQP channel.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

type StageWorkerInterface interface {
	Handle(ctx context.Context, stage domain.Stage, body []byte) (domain.StageOutcome, error)
	HandleBatch(ctx context.Context, stage domain.Stage, bodies [][]byte) []domain.StageOutcome
	Consume(ctx context.Context, ch Channel, stage domain.Stage, queue string) error
}

type StageWorker struct {
	stages workflow.StageServiceInterface
	log    *logger.Logger

	WorkerName string
	Prefetch   int
	// AutoComplete completes the stage and signals the engine in the same
	// invocation that claimed it.
	AutoComplete bool
}

func NewStageWorker(stages workflow.StageServiceInterface, lg *logger.Logger, workerName string, prefetch int, autoComplete bool) *StageWorker {
	if lg == nil {
		lg = logger.Nop()
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if strings.TrimSpace(workerName) == "" {
		workerName = "stage-worker"
	}
	return &StageWorker{
		stages:       stages,
		log:          lg,
		WorkerName:   workerName,
		Prefetch:     prefetch,
		AutoComplete: autoComplete,
	}
}

// Handle processes one queued message. The returned error tells the consumer
// what to do with the delivery: nil acks, ErrRequeue redelivers, ErrDLQ
// dead-letters. The outcome is always filled in.
func (w *StageWorker) Handle(ctx context.Context, stage domain.Stage, body []byte) (domain.StageOutcome, error) {
	var msg domain.StageMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		w.log.Warn("stage_message_malformed", map[string]any{"stage": stage, "error": err.Error()})
		return domain.StageOutcome{Status: domain.OutcomeSkipped, Stage: stage, Reason: "malformed message"}, ErrDLQ
	}
	return w.Process(ctx, stage, msg)
}

func (w *StageWorker) Process(ctx context.Context, stage domain.Stage, msg domain.StageMessage) (domain.StageOutcome, error) {
	out := domain.StageOutcome{OrderID: msg.OrderID, TenantID: msg.TenantID, Stage: stage}
	fields := map[string]any{"tenant_id": msg.TenantID, "order_id": msg.OrderID, "stage": stage}

	if strings.TrimSpace(msg.TaskToken) == "" {
		out.Status, out.Reason = domain.OutcomeSkipped, "taskToken is required"
		w.log.Warn("stage_message_skipped", fields)
		return out, ErrDLQ
	}
	if strings.TrimSpace(msg.TenantID) == "" || strings.TrimSpace(msg.OrderID) == "" {
		err := fmt.Errorf("%w: tenantId and orderId are required", domain.ErrValidation)
		return w.reject(ctx, out, msg, err)
	}
	if _, err := domain.ParseStage(string(stage)); err != nil {
		return w.reject(ctx, out, msg, err)
	}

	actor := strings.TrimSpace(msg.Actor)
	if actor == "" {
		actor = string(stage)
	}

	if _, err := w.stages.Claim(ctx, msg.TenantID, msg.OrderID, stage, msg.TaskToken, actor); err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrStageOutOfOrder):
			return w.reject(ctx, out, msg, err)
		case errors.Is(err, domain.ErrStageCompleted):
			return w.reconfirm(ctx, out, msg, fields)
		case domain.IsConflict(err):
			out.Status, out.Reason = domain.OutcomeConflict, err.Error()
			return out, nil
		default:
			out.Status, out.Reason = domain.OutcomeFailed, err.Error()
			w.log.Error("stage_claim_failed", err, fields)
			return out, ErrRequeue
		}
	}
	out.Status = domain.OutcomeInProgress
	if !w.AutoComplete {
		return out, nil
	}

	if _, err := w.stages.Complete(ctx, msg.TenantID, msg.OrderID, stage, actor); err != nil {
		if domain.IsConflict(err) {
			out.Status, out.Reason = domain.OutcomeConflict, err.Error()
			return out, nil
		}
		out.Status, out.Reason = domain.OutcomeFailed, err.Error()
		w.log.Error("stage_complete_failed", err, fields)
		return out, retryable(err)
	}
	out.Status = domain.OutcomeCompleted
	return out, nil
}

// reconfirm answers a redelivery whose stage already finished: the engine
// still waits on this message's token, so it gets the stored result.
func (w *StageWorker) reconfirm(ctx context.Context, out domain.StageOutcome, msg domain.StageMessage, fields map[string]any) (domain.StageOutcome, error) {
	if _, err := w.stages.Reconfirm(ctx, msg.TenantID, msg.OrderID, out.Stage, msg.TaskToken); err != nil {
		out.Status, out.Reason = domain.OutcomeFailed, err.Error()
		w.log.Error("stage_reconfirm_failed", err, fields)
		return out, retryable(err)
	}
	out.Status, out.Reason = domain.OutcomeCompleted, "already completed"
	return out, nil
}

// retryable maps a failed callback to the delivery outcome. A token the engine
// can never accept is dead-lettered; anything else is redelivered.
func retryable(err error) error {
	if errors.Is(err, callback.ErrInvalidToken) || errors.Is(err, callback.ErrEmptyToken) {
		return ErrDLQ
	}
	return ErrRequeue
}

// reject tells the engine that the invocation cannot succeed, so it does not
// wait on a token nobody will complete. The message is then acked.
func (w *StageWorker) reject(ctx context.Context, out domain.StageOutcome, msg domain.StageMessage, cause error) (domain.StageOutcome, error) {
	info := domain.FailureInfo{Error: domain.Kind(cause), Cause: cause.Error()}
	if err := w.stages.Fail(ctx, msg.TenantID, msg.OrderID, out.Stage, msg.TaskToken, info); err != nil {
		out.Status, out.Reason = domain.OutcomeFailed, err.Error()
		w.log.Error("stage_fail_signal_failed", err, map[string]any{"order_id": msg.OrderID, "stage": out.Stage})
		return out, retryable(err)
	}
	out.Status, out.Reason = domain.OutcomeSkipped, cause.Error()
	w.log.Info("stage_message_rejected", map[string]any{
		"tenant_id": msg.TenantID, "order_id": msg.OrderID, "stage": out.Stage, "reason": info.Error,
	})
	return out, nil
}

// HandleBatch processes every message independently; one bad message never
// fails the others.
func (w *StageWorker) HandleBatch(ctx context.Context, stage domain.Stage, bodies [][]byte) []domain.StageOutcome {
	outcomes := make([]domain.StageOutcome, 0, len(bodies))
	for _, b := range bodies {
		out, _ := w.Handle(ctx, stage, b)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Consume reads stage messages from queue until ctx is done, then stops the
// consumer and waits for in-flight deliveries.
func (w *StageWorker) Consume(ctx context.Context, ch Channel, stage domain.Stage, queue string) error {
	if strings.TrimSpace(queue) == "" {
		return fmt.Errorf("queue name is empty")
	}
	if err := ch.Qos(w.Prefetch, 0, false); err != nil {
		return err
	}

	consumerTag := w.WorkerName + "." + string(stage)
	msgs, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	w.log.Info("stage_consumer_started", map[string]any{"queue": queue, "prefetch": w.Prefetch, "worker": w.WorkerName})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			dctx := tracing.ExtractAMQP(ctx, d.Headers)
			out, err := w.Handle(dctx, stage, d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrDLQ):
				_ = d.Nack(false, false)
			default:
				_ = d.Nack(false, true)
			}
			w.log.Debug("stage_message_processed", map[string]any{
				"queue": queue, "order_id": out.OrderID, "status": out.Status,
			})
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
		return fmt.Errorf("consumer %s: delivery channel closed", consumerTag)
	}
	w.log.Info("graceful_shutdown", map[string]any{"worker": w.WorkerName, "queue": queue})
	_ = ch.Cancel(consumerTag, false)
	<-done
	return nil
}
