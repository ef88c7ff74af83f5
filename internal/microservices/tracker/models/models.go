package models

import (
	"time"

	"restaurant-system/internal/domain"
)

// StatusView is the compact status of an order for polling clients.
type StatusView struct {
	OrderID   string                              `json:"orderId"`
	Status    domain.OrderStatus                  `json:"status"`
	Stages    map[domain.Stage]domain.StageStatus `json:"stages"`
	UpdatedAt time.Time                           `json:"updatedAt"`
}

// TimelineEntry is one recorded moment in the life of an order.
type TimelineEntry struct {
	Event string       `json:"event"`
	Stage domain.Stage `json:"stage,omitempty"`
	At    time.Time    `json:"at"`
	Actor string       `json:"actor,omitempty"`
}
