package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentTier string

const (
	TierBalance PaymentTier = "BALANCE"
	TierACH     PaymentTier = "ACH"
	TierCard    PaymentTier = "CARD"
)

func (t PaymentTier) String() string {
	return string(t)
}

type LinkedBank struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Last4 string `json:"last4"`
}

// FundingSnapshot is the customer funding state as reported by the ledger
// at method-resolution time.
type FundingSnapshot struct {
	AvailableBalance decimal.Decimal `json:"available_balance"`
	LinkedBanks      []LinkedBank    `json:"linked_banks"`
	KYCVerified      bool            `json:"kyc_verified"`
	AccountNumber    string          `json:"account_number"`
}

type PaymentMethodOption struct {
	Tier             PaymentTier       `json:"tier"`
	AvailableBalance *decimal.Decimal  `json:"available_balance,omitempty"`
	Sufficient       bool              `json:"sufficient"`
	FeePercent       decimal.Decimal   `json:"fee_percent"`
	FeeAmount        decimal.Decimal   `json:"fee_amount"`
	Recommended      bool              `json:"recommended"`
	LinkedBanks      []LinkedBank      `json:"linked_banks,omitempty"`
	Deposit          *DepositBreakdown `json:"deposit,omitempty"`
	IsDepositFlow    bool              `json:"is_deposit_flow,omitempty"`
	IsDepositOnly    bool              `json:"is_deposit_only,omitempty"`
}

// DepositBreakdown splits a large order into the deposit charged now and
// the remainder due by wire. WireDueBy is nil until the deposit charge is
// confirmed; the deadline reflects settlement, not intent creation.
type DepositBreakdown struct {
	OrderTotal     decimal.Decimal `json:"order_total"`
	DepositPercent decimal.Decimal `json:"deposit_percent"`
	DepositBase    decimal.Decimal `json:"deposit_base"`
	FeePercent     decimal.Decimal `json:"fee_percent"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	DepositTotal   decimal.Decimal `json:"deposit_total"`
	WireAmountDue  decimal.Decimal `json:"wire_amount_due"`
	WireDueBy      *time.Time      `json:"wire_due_by,omitempty"`
}

// PaymentAttempt tracks one checkout pass. It lives only inside the
// session; the durable result is the order status plus the external
// rail records referenced here.
type PaymentAttempt struct {
	UUID          string      `json:"uuid"`
	Tier          PaymentTier `json:"tier"`
	BankAccountID string      `json:"bank_account_id,omitempty"`
	IntentToken   string      `json:"intent_token,omitempty"`
	TransferID    string      `json:"transfer_id,omitempty"`
	Confirmed     bool        `json:"confirmed"`
}
