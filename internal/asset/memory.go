package asset

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryBank implements PaymentLedger with in-memory balances. Used for
// development and testing. Not suitable for production (no persistence).
type MemoryBank struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewMemoryBank creates an empty in-memory payment ledger.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[string]decimal.Decimal)}
}

// Mint credits an account. Test and dev seeding only.
func (b *MemoryBank) Mint(account string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = b.balances[account].Add(amount)
}

func (b *MemoryBank) Transfer(from, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("transfer %s: negative amount", amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from].LessThan(amount) {
		return fmt.Errorf("transfer %s from %s: %w", amount, from, ErrInsufficientFunds)
	}
	b.balances[from] = b.balances[from].Sub(amount)
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}

func (b *MemoryBank) BalanceOf(account string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[account]
}

type itemKey struct {
	registry string
	itemID   uint64
}

type holdingKey struct {
	registry string
	holder   string
	itemID   uint64
}

type approvalKey struct {
	registry string
	owner    string
	operator string
}

type itemType struct {
	meta   ItemMetadata
	minted uint64
}

// MemoryItems implements ItemLedger with in-memory registries. Item types
// carry a creator, a per-mille royalty rate, and a supply cap that minting
// may never exceed.
type MemoryItems struct {
	mu        sync.RWMutex
	types     map[itemKey]*itemType
	holdings  map[holdingKey]uint64
	approvals map[approvalKey]bool
}

// NewMemoryItems creates an empty in-memory item ledger.
func NewMemoryItems() *MemoryItems {
	return &MemoryItems{
		types:     make(map[itemKey]*itemType),
		holdings:  make(map[holdingKey]uint64),
		approvals: make(map[approvalKey]bool),
	}
}

// CreateItem registers a new item type in a registry.
func (m *MemoryItems) CreateItem(registry string, itemID uint64, meta ItemMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey{registry, itemID}
	if _, ok := m.types[key]; ok {
		return fmt.Errorf("item %d in %s already exists", itemID, registry)
	}
	m.types[key] = &itemType{meta: meta}
	return nil
}

// Mint issues qty units of an item to a holder, enforcing the supply cap.
func (m *MemoryItems) Mint(registry, to string, itemID, qty uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.types[itemKey{registry, itemID}]
	if !ok {
		return fmt.Errorf("mint item %d in %s: %w", itemID, registry, ErrUnknownItem)
	}
	if t.meta.MaxSupply > 0 && t.minted+qty > t.meta.MaxSupply {
		return fmt.Errorf("mint %d of item %d: %w", qty, itemID, ErrSupplyCapExceeded)
	}
	t.minted += qty
	m.holdings[holdingKey{registry, to, itemID}] += qty
	return nil
}

func (m *MemoryItems) Transfer(registry, from, to string, itemID, qty uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromKey := holdingKey{registry, from, itemID}
	if m.holdings[fromKey] < qty {
		return fmt.Errorf("transfer %d of item %d from %s: %w", qty, itemID, from, ErrInsufficientItems)
	}
	m.holdings[fromKey] -= qty
	m.holdings[holdingKey{registry, to, itemID}] += qty
	return nil
}

func (m *MemoryItems) BalanceOf(registry, holder string, itemID uint64) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holdings[holdingKey{registry, holder, itemID}]
}

// SetApprovalForAll grants or revokes an operator's right to move all of
// an owner's items in one registry.
func (m *MemoryItems) SetApprovalForAll(registry, owner, operator string, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals[approvalKey{registry, owner, operator}] = approved
}

func (m *MemoryItems) IsApprovedForAll(registry, owner, operator string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approvals[approvalKey{registry, owner, operator}]
}

func (m *MemoryItems) Metadata(registry string, itemID uint64) (ItemMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.types[itemKey{registry, itemID}]
	if !ok {
		return ItemMetadata{}, fmt.Errorf("item %d in %s: %w", itemID, registry, ErrUnknownItem)
	}
	return t.meta, nil
}

// MemoryDirectory implements Directory with an in-memory authorized set.
type MemoryDirectory struct {
	mu         sync.RWMutex
	authorized map[string]bool
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{authorized: make(map[string]bool)}
}

// Authorize marks a registry as trusted.
func (d *MemoryDirectory) Authorize(registry string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authorized[registry] = true
}

func (d *MemoryDirectory) IsAuthorized(registry string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.authorized[registry]
}
