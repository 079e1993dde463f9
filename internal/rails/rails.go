package rails

import (
	"context"

	"github.com/bullionworks/checkout/models"
	"github.com/shopspring/decimal"
)

// Ledger is the internal balance service. PayWithBalance is a single
// atomic deduction; the ledger either debits the whole amount or fails.
type Ledger interface {
	Funding(ctx context.Context, customerID string) (models.FundingSnapshot, error)
	PayWithBalance(ctx context.Context, orderID, customerID string) (decimal.Decimal, error)
}

// AchProvider initiates a bank pull. Acceptance is synchronous; the pull
// itself settles externally over 2-3 business days and is not awaited.
type AchProvider interface {
	InitiatePull(ctx context.Context, customerID, orderID string, amount decimal.Decimal, bankAccountID string) (string, error)
}

// CardProcessor drives the two-phase card flow: an intent scoped to the
// order, then an idempotent confirm with the client-side authorization.
type CardProcessor interface {
	CreateIntent(ctx context.Context, customerID, orderID string, isDeposit bool) (CardIntent, error)
	Confirm(ctx context.Context, orderID, authorizationRef string) (CardConfirmation, error)
}

type WireDesk interface {
	Instructions(ctx context.Context, customerID string) (models.WireInstructions, error)
}

type CardIntent struct {
	ClientToken string          `json:"client_token"`
	Charge      ChargeBreakdown `json:"charge"`
}

type ChargeBreakdown struct {
	Base      decimal.Decimal `json:"base"`
	Fee       decimal.Decimal `json:"fee"`
	Total     decimal.Decimal `json:"total"`
	IsDeposit bool            `json:"is_deposit"`
}

type CardConfirmation struct {
	Settled           bool                     `json:"settled"`
	AlreadyProcessed  bool                     `json:"already_processed"`
	Deposit           *models.DepositBreakdown `json:"deposit,omitempty"`
	Wire              *models.WireInstructions `json:"wire,omitempty"`
	TradeConfirmation *TradeConfirmation       `json:"trade_confirmation,omitempty"`
}

// TradeConfirmation reports the trade-execution side effect attached to a
// card settlement. A failed trade is reported, never rolled back into the
// payment state; remediation happens out of band.
type TradeConfirmation struct {
	Code   string `json:"code,omitempty"`
	Failed bool   `json:"failed,omitempty"`
	Detail string `json:"detail,omitempty"`
}
