// Package fees computes the platform fee, creator royalty, and net seller
// proceeds for a completed sale. Rates are expressed per mille (parts per
// thousand) and division always truncates toward zero, so the calculator
// never rounds in the seller's favor beyond floor truncation.
//
// All monetary values use shopspring/decimal, never float64.
package fees

import "github.com/shopspring/decimal"

// AmountScale is the number of decimal places for payment amounts.
// Fee division truncates at this scale.
const AmountScale int32 = 8

// Mille is the rate denominator: rates are parts per thousand.
const Mille int64 = 1000

var mille = decimal.NewFromInt(Mille)

// Breakdown is the exact split of a gross sale amount.
// PlatformFee + RoyaltyFee + NetSeller == gross always holds.
type Breakdown struct {
	PlatformFee decimal.Decimal
	RoyaltyFee  decimal.Decimal
	NetSeller   decimal.Decimal
}

// Calculator holds the platform's per-mille fee rates. The primary rate
// applies when the acting seller is the item's original creator, the
// secondary rate otherwise.
type Calculator struct {
	PrimaryRate   int64
	SecondaryRate int64
}

// ValidRate reports whether a per-mille rate is in the allowed [0, 1000]
// range.
func ValidRate(rate int64) bool {
	return rate >= 0 && rate <= Mille
}

// Quote splits gross into platform fee, creator royalty, and net seller
// proceeds. Both fee terms are floor-truncated at AmountScale; the seller
// receives the exact remainder, so the three parts always sum to gross.
// A RoyaltyFee of zero means the royalty transfer is skipped entirely.
func (c Calculator) Quote(gross decimal.Decimal, sellerIsCreator bool, royaltyPerMille int64) Breakdown {
	rate := c.SecondaryRate
	if sellerIsCreator {
		rate = c.PrimaryRate
	}

	platform := perMille(gross, rate)
	royalty := perMille(gross, royaltyPerMille)
	net := gross.Sub(platform).Sub(royalty)

	return Breakdown{
		PlatformFee: platform,
		RoyaltyFee:  royalty,
		NetSeller:   net,
	}
}

// perMille computes amount·rate/1000, truncated toward zero at AmountScale.
func perMille(amount decimal.Decimal, rate int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(rate)).Div(mille).RoundDown(AmountScale)
}
