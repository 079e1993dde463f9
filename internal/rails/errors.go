package rails

import "errors"

// ErrInsufficientFunds is returned by the balance rail when the ledger
// refuses the debit at charge time.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNotConfigured means the card processor address is missing; the card
// tier is unusable but the other tiers are unaffected.
var ErrNotConfigured = errors.New("card processor is not configured")

type AchError struct {
	Reason string
}

func (e *AchError) Error() string {
	return "ach pull rejected: " + e.Reason
}

type CardDeclinedError struct {
	Reason string
}

func (e *CardDeclinedError) Error() string {
	return "card declined: " + e.Reason
}
