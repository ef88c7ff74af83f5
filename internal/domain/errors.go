package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound           = errors.New("not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrConnectionNotFound = errors.New("connection not found")

	ErrInvalidStage      = errors.New("invalid stage")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderExists       = errors.New("order already exists")

	// ErrStageNotPending is the lost-race outcome of a guarded stage transition.
	ErrStageNotPending = errors.New("no pending task for stage")
	// ErrStageCompleted is returned by a claim on a stage that already finished.
	ErrStageCompleted  = fmt.Errorf("%w: stage already completed", ErrStageNotPending)
	ErrStageOutOfOrder = errors.New("previous stage not completed")

	// ErrInvariantViolation means the stored data contradicts the model; it is a bug, not a race.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Kind returns the machine-stable reason code for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidStage):
		return "invalid_stage"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrConnectionNotFound):
		return "connection_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrStageNotPending):
		return "stage_not_pending"
	case errors.Is(err, ErrStageOutOfOrder):
		return "stage_out_of_order"
	case errors.Is(err, ErrOrderExists):
		return "order_exists"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrConnectionNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStageNotPending),
		errors.Is(err, ErrStageOutOfOrder),
		errors.Is(err, ErrOrderExists):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsConflict reports whether err is a benign lost race that callers must not retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStageNotPending)
}
