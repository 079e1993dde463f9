package policy

import (
	"github.com/bullionworks/checkout/internal/deposit"
	"github.com/bullionworks/checkout/models"
	"github.com/shopspring/decimal"
)

// LargeOrderThreshold is the cart total above which full card payment is
// disallowed and ACH switches to deposit+wire.
var (
	LargeOrderThreshold = decimal.NewFromInt(8000)
	CardFeePercent      = decimal.NewFromFloat(0.035)
)

// Resolution is what resolveMethods hands back to the checkout flow.
type Resolution struct {
	Methods          []models.PaymentMethodOption `json:"methods"`
	FundingShortfall decimal.Decimal              `json:"funding_shortfall"`
	AccountNumber    string                       `json:"account_number"`
}

// Resolve computes the payment tiers available for a cart total given the
// customer's funding snapshot. Exactly one option is recommended: the
// cheapest sufficient one, ties broken balance > ach > card.
func Resolve(snapshot models.FundingSnapshot, cartTotal decimal.Decimal) Resolution {
	depositMode := cartTotal.GreaterThan(LargeOrderThreshold)

	balance := snapshot.AvailableBalance
	balanceOption := models.PaymentMethodOption{
		Tier:             models.TierBalance,
		AvailableBalance: &balance,
		Sufficient:       balance.GreaterThanOrEqual(cartTotal),
		FeePercent:       decimal.Zero,
		FeeAmount:        decimal.Zero,
	}

	// Bank pulls require a verified identity; an unverified customer sees
	// the ach tier but cannot use it.
	achOption := models.PaymentMethodOption{
		Tier:        models.TierACH,
		Sufficient:  snapshot.KYCVerified,
		FeePercent:  decimal.Zero,
		FeeAmount:   decimal.Zero,
		LinkedBanks: snapshot.LinkedBanks,
	}
	if depositMode {
		achBreakdown := deposit.Compute(cartTotal, decimal.Zero)
		achOption.IsDepositFlow = true
		achOption.Deposit = &achBreakdown
	}

	cardOption := models.PaymentMethodOption{
		Tier:       models.TierCard,
		Sufficient: true,
		FeePercent: CardFeePercent,
	}
	if depositMode {
		cardBreakdown := deposit.Compute(cartTotal, CardFeePercent)
		cardOption.IsDepositOnly = true
		cardOption.Deposit = &cardBreakdown
		cardOption.FeeAmount = cardBreakdown.FeeAmount
	} else {
		cardOption.FeeAmount = cartTotal.Mul(CardFeePercent).Round(2)
	}

	methods := []models.PaymentMethodOption{balanceOption, achOption, cardOption}
	recommend(methods)

	shortfall := cartTotal.Sub(balance)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}

	return Resolution{
		Methods:          methods,
		FundingShortfall: shortfall,
		AccountNumber:    snapshot.AccountNumber,
	}
}

// recommend flags the cheapest sufficient option. Methods arrive in
// balance, ach, card order, which is also the tie-break order.
func recommend(methods []models.PaymentMethodOption) {
	best := -1
	for i, m := range methods {
		if !m.Sufficient {
			continue
		}
		if best == -1 || m.FeeAmount.LessThan(methods[best].FeeAmount) {
			best = i
		}
	}
	if best >= 0 {
		methods[best].Recommended = true
	}
}
