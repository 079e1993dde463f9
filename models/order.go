package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending     OrderStatus = "PENDING"
	OrderPaid        OrderStatus = "PAID"
	OrderDepositPaid OrderStatus = "DEPOSIT_PAID"
	OrderCancelled   OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

type FulfillmentType string

const (
	FulfillmentShip  FulfillmentType = "SHIP"
	FulfillmentVault FulfillmentType = "VAULT"
)

// Order status is the single source of truth for what has been charged.
// Transitions are monotonic: PENDING -> PAID or DEPOSIT_PAID, never back.
type Order struct {
	UUID        string          `json:"uuid"`
	OrderNumber string          `json:"number"`
	CustomerID  string          `json:"customer_id"`
	Lines       []CartLine      `json:"lines,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Fulfillment FulfillmentType `json:"fulfillment"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
