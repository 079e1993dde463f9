package models

import (
	"github.com/shopspring/decimal"
)

type MetalType string

const (
	MetalGold      MetalType = "GOLD"
	MetalSilver    MetalType = "SILVER"
	MetalPlatinum  MetalType = "PLATINUM"
	MetalPalladium MetalType = "PALLADIUM"
)

// CartLine is frozen once checkout begins; ExtendedPrice is the quoted
// line total at lock time, not recomputed from UnitPrice afterwards.
type CartLine struct {
	SKU           string          `json:"sku"`
	Description   string          `json:"description"`
	Metal         MetalType       `json:"metal"`
	WeightOunces  decimal.Decimal `json:"weight_oz"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExtendedPrice decimal.Decimal `json:"extended_price"`
}

func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.ExtendedPrice)
	}
	return total
}
