package deposit

import (
	"time"

	"github.com/bullionworks/checkout/models"
	"github.com/shopspring/decimal"
)

// WireDueWindow starts at deposit settlement, never at intent creation.
const WireDueWindow = 48 * time.Hour

var Percent = decimal.NewFromFloat(0.10)

// Compute splits an order total into the deposit charged immediately and
// the remainder due by wire. The fee is a surcharge on the deposit base
// only; it is never subtracted from the wire remainder, so
// DepositBase + WireAmountDue always equals OrderTotal exactly.
func Compute(orderTotal, feePercent decimal.Decimal) models.DepositBreakdown {
	base := orderTotal.Mul(Percent).Round(2)
	fee := base.Mul(feePercent).Round(2)

	return models.DepositBreakdown{
		OrderTotal:     orderTotal,
		DepositPercent: Percent,
		DepositBase:    base,
		FeePercent:     feePercent,
		FeeAmount:      fee,
		DepositTotal:   base.Add(fee),
		WireAmountDue:  orderTotal.Sub(base),
	}
}

// Stamp sets the wire deadline from the moment the deposit charge was
// confirmed.
func Stamp(b models.DepositBreakdown, confirmedAt time.Time) models.DepositBreakdown {
	due := confirmedAt.Add(WireDueWindow)
	b.WireDueBy = &due
	return b
}
