package domain

import (
	"fmt"
	"time"
)

const (
	EventOrderCreated   = "order.created"
	EventStageStarted   = "order.stage.started"
	EventStageCompleted = "order.stage.completed"
	EventStageFailed    = "order.stage.failed"
)

// Event is the envelope pushed to subscriber connections and to the notification sink.
type Event struct {
	Type   string      `json:"type"`
	Detail EventDetail `json:"detail"`
}

type EventDetail struct {
	TenantID    string      `json:"tenantId"`
	OrderID     string      `json:"orderId"`
	Stage       Stage       `json:"stage,omitempty"`
	Status      OrderStatus `json:"status"`
	CreatedAt   *time.Time  `json:"createdAt,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Actor       string      `json:"actor,omitempty"`
	Workflow    *Workflow   `json:"workflow,omitempty"`
	Customer    *Customer   `json:"customer,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// Notification is what the external sink receives once per published event.
type Notification struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Event   Event  `json:"event"`
}

func NewNotification(ev Event) Notification {
	return Notification{
		Subject: fmt.Sprintf("%s - %s", ev.Type, ev.Detail.TenantID),
		Message: fmt.Sprintf("%s for tenant %s: order %s is %s", ev.Type, ev.Detail.TenantID, ev.Detail.OrderID, ev.Detail.Status),
		Event:   ev,
	}
}

type DeliveryStatus int

const (
	Delivered DeliveryStatus = iota
	Gone
	DeliveryFailed
	// NotHeld means the transport has no socket for the connection; another
	// process may own it. It is neither delivered nor pruned.
	NotHeld
)

func (s DeliveryStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	case NotHeld:
		return "not_held"
	default:
		return "error"
	}
}

// DeliveryResult is the outcome of one push attempt; Err is set only for DeliveryFailed.
type DeliveryResult struct {
	Status DeliveryStatus
	Err    error
}

type FanoutResult struct {
	Delivered int     `json:"delivered"`
	Pruned    int     `json:"stale"`
	Skipped   int     `json:"skipped"`
	Errors    []error `json:"-"`
}
