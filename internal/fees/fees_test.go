package fees

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestQuote_SplitSumsToGross(t *testing.T) {
	calc := Calculator{PrimaryRate: 25, SecondaryRate: 50}

	tests := []struct {
		name            string
		gross           string
		sellerIsCreator bool
		royalty         int64
		wantPlatform    string
		wantRoyalty     string
	}{
		{"creator pays primary rate", "1000", true, 100, "25", "100"},
		{"reseller pays secondary rate", "1000", false, 100, "50", "100"},
		{"zero royalty", "1000", false, 0, "50", "0"},
		{"fractional gross truncates", "1.05", false, 25, "0.0525", "0.02625"},
		{"tiny gross floors to zero fee", "0.0000001", false, 25, "0", "0"},
		{"royalty consumes remainder", "200", true, 975, "5", "195"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross := d(tt.gross)
			b := calc.Quote(gross, tt.sellerIsCreator, tt.royalty)

			if !b.PlatformFee.Equal(d(tt.wantPlatform)) {
				t.Errorf("platform fee = %s, want %s", b.PlatformFee, tt.wantPlatform)
			}
			if !b.RoyaltyFee.Equal(d(tt.wantRoyalty)) {
				t.Errorf("royalty fee = %s, want %s", b.RoyaltyFee, tt.wantRoyalty)
			}

			sum := b.PlatformFee.Add(b.RoyaltyFee).Add(b.NetSeller)
			if !sum.Equal(gross) {
				t.Errorf("fee + royalty + net = %s, want gross %s", sum, gross)
			}
		})
	}
}

func TestQuote_NeverRoundsUp(t *testing.T) {
	calc := Calculator{PrimaryRate: 33, SecondaryRate: 33}

	// 0.1 * 33/1000 = 0.0033 exactly; 0.0000001 * 33/1000 truncates to 0.
	b := calc.Quote(d("0.1"), false, 77)
	if !b.PlatformFee.Equal(d("0.0033")) {
		t.Errorf("platform fee = %s, want 0.0033", b.PlatformFee)
	}
	if !b.RoyaltyFee.Equal(d("0.0077")) {
		t.Errorf("royalty fee = %s, want 0.0077", b.RoyaltyFee)
	}

	b = calc.Quote(d("0.0000001"), false, 99)
	if !b.PlatformFee.IsZero() || !b.RoyaltyFee.IsZero() {
		t.Errorf("dust fees should floor to zero, got %s / %s", b.PlatformFee, b.RoyaltyFee)
	}
	if !b.NetSeller.Equal(d("0.0000001")) {
		t.Errorf("net = %s, want full gross", b.NetSeller)
	}
}

func TestValidRate(t *testing.T) {
	for rate, want := range map[int64]bool{-1: false, 0: true, 500: true, 1000: true, 1001: false} {
		if got := ValidRate(rate); got != want {
			t.Errorf("ValidRate(%d) = %v, want %v", rate, got, want)
		}
	}
}
