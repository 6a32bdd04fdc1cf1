package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/fees"
)

func (e *Engine) requireAdmin(caller string) error {
	if caller != e.admin {
		return fmt.Errorf("admin only: %w", ErrUnauthorized)
	}
	return nil
}

// RegisterRegistry adds a registry to the append-only registration set.
// The registry must be vouched for by the trusted directory collaborator.
// Registered entries are never removed.
func (e *Engine) RegisterRegistry(caller, registry string) error {
	return e.guarded(func(t *txn) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if registry == "" {
			return fmt.Errorf("empty registry id: %w", ErrInvalidArgument)
		}
		if e.dir == nil || !e.dir.IsAuthorized(registry) {
			return fmt.Errorf("directory does not authorize %s: %w", registry, ErrUnauthorized)
		}
		if e.registered[registry] {
			return fmt.Errorf("registry %s already registered: %w", registry, ErrInvalidState)
		}

		e.registered[registry] = true
		e.registryOrder = append(e.registryOrder, registry)
		t.revert(func() {
			delete(e.registered, registry)
			e.registryOrder = e.registryOrder[:len(e.registryOrder)-1]
		})
		return nil
	})
}

// SetFeeRates updates the platform's per-mille fee rates. Out-of-range
// rates are rejected, not clamped.
func (e *Engine) SetFeeRates(caller string, primary, secondary int64) error {
	return e.guarded(func(t *txn) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if !fees.ValidRate(primary) || !fees.ValidRate(secondary) {
			return fmt.Errorf("fee rates must be within [0, 1000] per mille: %w", ErrInvalidArgument)
		}

		prev := e.calc
		e.calc = fees.Calculator{PrimaryRate: primary, SecondaryRate: secondary}
		t.revert(func() { e.calc = prev })

		ev := e.newEvent(event.TypeFeeConfigChanged)
		ev.Actor = caller
		ev.FeePrimaryPerMille = primary
		ev.FeeSecondaryPerMille = secondary
		t.emit(ev)
		return nil
	})
}

// SetAuctionBounds updates the allowed auction duration range.
func (e *Engine) SetAuctionBounds(caller string, min, max time.Duration) error {
	return e.guarded(func(t *txn) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if min <= 0 || max < min {
			return fmt.Errorf("auction duration bounds out of order: %w", ErrInvalidArgument)
		}
		prevMin, prevMax := e.minDuration, e.maxDuration
		e.minDuration, e.maxDuration = min, max
		t.revert(func() { e.minDuration, e.maxDuration = prevMin, prevMax })
		return nil
	})
}

// SetSnipeWindow updates the anti-snipe extension window.
func (e *Engine) SetSnipeWindow(caller string, window time.Duration) error {
	return e.guarded(func(t *txn) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if window <= 0 {
			return fmt.Errorf("snipe window must be positive: %w", ErrInvalidArgument)
		}
		prev := e.snipeWindow
		e.snipeWindow = window
		t.revert(func() { e.snipeWindow = prev })
		return nil
	})
}

// WithdrawRevenue pays out platform revenue. Only custody balance in
// excess of the locked pool may ever leave this way; everything else is
// earmarked for a live bid or pending offer.
func (e *Engine) WithdrawRevenue(caller, to string, amount decimal.Decimal) error {
	return e.guarded(func(t *txn) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if !amount.IsPositive() {
			return fmt.Errorf("withdrawal must be positive: %w", ErrInvalidArgument)
		}
		available := e.bank.BalanceOf(e.account).Sub(e.lockedPool)
		if amount.GreaterThan(available) {
			return fmt.Errorf("withdrawal %s exceeds unlocked revenue %s: %w", amount, available, ErrInsufficient)
		}
		return e.pay(t, e.account, to, amount)
	})
}
