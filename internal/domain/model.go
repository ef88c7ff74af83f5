package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Stage string

const (
	StageKitchen   Stage = "kitchen"
	StagePackaging Stage = "packaging"
	StageDelivery  Stage = "delivery"
)

// Stages lists the fulfillment stages in execution order.
var Stages = []Stage{StageKitchen, StagePackaging, StageDelivery}

// ParseStage normalizes a stage name taken from a path or message.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StageKitchen, StagePackaging, StageDelivery:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// InProgressStatus is the aggregate order status while the stage is claimed.
func (s Stage) InProgressStatus() OrderStatus {
	switch s {
	case StageKitchen:
		return StatusKitchenInProgress
	case StagePackaging:
		return StatusPackagingInProgress
	default:
		return StatusDeliveryInProgress
	}
}

// DoneStatus is the aggregate order status once the stage is completed.
func (s Stage) DoneStatus() OrderStatus {
	switch s {
	case StageKitchen:
		return StatusKitchenDone
	case StagePackaging:
		return StatusPackagingDone
	default:
		return StatusDelivered
	}
}

// Previous returns the stage that must precede s, if any.
func (s Stage) Previous() (Stage, bool) {
	for i, st := range Stages {
		if st == s && i > 0 {
			return Stages[i-1], true
		}
	}
	return "", false
}

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

type OrderStatus string

const (
	StatusPlaced              OrderStatus = "placed"
	StatusKitchenInProgress   OrderStatus = "kitchen_in_progress"
	StatusKitchenDone         OrderStatus = "kitchen_done"
	StatusPackagingInProgress OrderStatus = "packaging_in_progress"
	StatusPackagingDone       OrderStatus = "packaging_done"
	StatusDeliveryInProgress  OrderStatus = "delivery_in_progress"
	StatusDelivered           OrderStatus = "delivered"
)

// WorkflowStage is the authoritative per-stage state embedded in an order.
// TaskToken is set exactly while Status is in_progress.
type WorkflowStage struct {
	Status      StageStatus `json:"status"`
	TaskToken   string      `json:"taskToken,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Actor       string      `json:"actor,omitempty"`
}

type Workflow struct {
	Kitchen   WorkflowStage `json:"kitchen"`
	Packaging WorkflowStage `json:"packaging"`
	Delivery  WorkflowStage `json:"delivery"`
}

func NewWorkflow() Workflow {
	return Workflow{
		Kitchen:   WorkflowStage{Status: StagePending},
		Packaging: WorkflowStage{Status: StagePending},
		Delivery:  WorkflowStage{Status: StagePending},
	}
}

// Stage returns a pointer to the sub-document of s so callers can mutate it in place.
func (w *Workflow) Stage(s Stage) *WorkflowStage {
	switch s {
	case StageKitchen:
		return &w.Kitchen
	case StagePackaging:
		return &w.Packaging
	case StageDelivery:
		return &w.Delivery
	}
	return nil
}

type LineItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Order struct {
	TenantID    string      `json:"tenantId"`
	OrderID     string      `json:"orderId"`
	Status      OrderStatus `json:"status"`
	Items       []LineItem  `json:"items"`
	Customer    Customer    `json:"customer"`
	Notes       string      `json:"notes,omitempty"`
	TotalAmount float64     `json:"total"`
	Workflow    Workflow    `json:"workflow"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy so a failed mutation never leaks into stored state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	for _, st := range Stages {
		ws := c.Workflow.Stage(st)
		ws.StartedAt = cloneTime(ws.StartedAt)
		ws.CompletedAt = cloneTime(ws.CompletedAt)
	}
	return &c
}

// ClaimStage marks stage in_progress under token. A re-claim of a stage that is
// already in progress replaces actor and token but keeps the original startedAt.
// A completed stage cannot be claimed again: the claim fails with
// ErrStageCompleted and the stage service re-signals success under the new
// token instead. When strict is set the previous stage must be completed first.
func (o *Order) ClaimStage(stage Stage, token, actor string, at time.Time, strict bool) error {
	ws := o.Workflow.Stage(stage)
	if ws == nil {
		return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	if token == "" {
		return fmt.Errorf("%w: task token is required", ErrValidation)
	}
	if ws.Status == StageCompleted {
		return fmt.Errorf("%w: %s", ErrStageCompleted, stage)
	}
	if strict {
		if prev, ok := stage.Previous(); ok && o.Workflow.Stage(prev).Status != StageCompleted {
			return fmt.Errorf("%w: stage %s requires %s to be completed", ErrStageOutOfOrder, stage, prev)
		}
	}

	o.Status = stage.InProgressStatus()
	ws.Status = StageInProgress
	if ws.StartedAt == nil {
		ws.StartedAt = cloneTime(&at)
	}
	ws.Actor = actor
	ws.TaskToken = token
	o.UpdatedAt = at
	return nil
}

// CompleteStage is the guarded transition in_progress -> completed. It fails
// with ErrStageNotPending when no task token is present and returns the
// token it cleared otherwise.
func (o *Order) CompleteStage(stage Stage, actor string, at time.Time) (string, error) {
	ws := o.Workflow.Stage(stage)
	if ws == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	if ws.TaskToken == "" {
		return "", fmt.Errorf("%w: no pending task for stage %s", ErrStageNotPending, stage)
	}
	token := ws.TaskToken

	o.Status = stage.DoneStatus()
	ws.Status = StageCompleted
	if ws.CompletedAt == nil {
		ws.CompletedAt = cloneTime(&at)
	}
	ws.Actor = actor
	ws.TaskToken = ""
	o.UpdatedAt = at
	return token, nil
}

type Product struct {
	TenantID    string    `json:"tenantId"`
	ProductID   string    `json:"productId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StockRequest is one product decrement inside a reservation.
type StockRequest struct {
	ProductID string
	Quantity  int
}

// ReservedStock is the product snapshot captured when stock was decremented.
type ReservedStock struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Reservation struct {
	Items []LineItem
	Total float64
}

type Connection struct {
	TenantID     string    `json:"tenantId"`
	ConnectionID string    `json:"connectionId"`
	Role         string    `json:"role"`
	UserID       string    `json:"userId,omitempty"`
	ConnectedAt  time.Time `json:"connectedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
