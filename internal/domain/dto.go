package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Items    []OrderItemInput `json:"items"`
	Customer Customer         `json:"customer"`
	Notes    string           `json:"notes,omitempty"`
}

func (r CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: items are required", ErrValidation)
	}
	if strings.TrimSpace(r.Customer.Name) == "" {
		return fmt.Errorf("%w: customer.name is required", ErrValidation)
	}
	return ValidateItems(r.Items)
}

// ValidateItems checks every line of a reservation request.
func ValidateItems(items []OrderItemInput) error {
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: items[%d].productId is required", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be a positive integer", ErrValidation, i)
		}
	}
	return nil
}

type CreateOrderResponse struct {
	OrderID  string      `json:"orderId"`
	Status   OrderStatus `json:"status"`
	Workflow Workflow    `json:"workflow"`
	Total    float64     `json:"total"`
}

type ListOrdersFilter struct {
	// Status is matched as a prefix, so "kitchen" selects both kitchen states.
	Status string
	Limit  int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func (f ListOrdersFilter) Normalize() ListOrdersFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	f.Status = strings.TrimSpace(f.Status)
	return f
}

type CompleteStageResponse struct {
	OrderID string      `json:"orderId"`
	Stage   Stage       `json:"stage"`
	Status  OrderStatus `json:"status"`
}

type StageClaimResult struct {
	Order     *Order
	Stage     Stage
	StartedAt time.Time
}

type StageCompleteResult struct {
	Order       *Order
	Stage       Stage
	Token       string
	CompletedAt time.Time
}

type CreateProductRequest struct {
	Name        string   `json:"name"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	Description string   `json:"description,omitempty"`
}

func (r CreateProductRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if r.Price == nil || *r.Price < 0 {
		return fmt.Errorf("%w: price is required and must be >= 0", ErrValidation)
	}
	if r.Stock == nil || *r.Stock < 0 {
		return fmt.Errorf("%w: stock is required and must be >= 0", ErrValidation)
	}
	return nil
}

type CreateProductResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
}

// StageMessage is the queued trigger a stage worker receives from the execution engine.
type StageMessage struct {
	TenantID  string `json:"tenantId"`
	OrderID   string `json:"orderId"`
	TaskToken string `json:"taskToken"`
	Actor     string `json:"actor,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeInProgress OutcomeStatus = "in_progress"
	OutcomeCompleted  OutcomeStatus = "completed"
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeConflict   OutcomeStatus = "conflict"
	OutcomeFailed     OutcomeStatus = "error"
)

// StageOutcome reports what happened to one queued stage message.
type StageOutcome struct {
	OrderID  string        `json:"orderId,omitempty"`
	TenantID string        `json:"tenantId,omitempty"`
	Status   OutcomeStatus `json:"status"`
	Stage    Stage         `json:"stage,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// FailureInfo is sent to the execution engine when a stage invocation cannot succeed.
type FailureInfo struct {
	Error string `json:"error"`
	Cause string `json:"cause"`
}

type ConnectRequest struct {
	TenantID string
	Role     string
	UserID   string
}

func (r ConnectRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("%w: tenantId is required", ErrValidation)
	}
	return nil
}
