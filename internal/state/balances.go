package state

import (
	"sync"

	"MarginEngine/internal/fixedpoint"
)

// StartingBalance is the platform faucet amount credited to every user on
// first reference: $10,000, scaled.
const StartingBalance = 10_000 * fixedpoint.Scale

// UserBalance is one user's ledger entry. LockedMargin never exceeds
// Balance; Available() must cover any margin before a lock is accepted.
type UserBalance struct {
	UserID       string `json:"userId"`
	Balance      int64  `json:"balance"`
	LockedMargin int64  `json:"lockedMargin"`
}

// Available returns the free balance.
func (b UserBalance) Available() int64 {
	return b.Balance - b.LockedMargin
}

// BalanceLedger owns every user's balance. It is the single point of
// mutation for balances; no caller retains a reference across operations.
type BalanceLedger struct {
	mu       sync.RWMutex
	balances map[string]*UserBalance
}

func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{balances: make(map[string]*UserBalance)}
}

func (l *BalanceLedger) ensureLocked(userID string) *UserBalance {
	b, ok := l.balances[userID]
	if !ok {
		b = &UserBalance{UserID: userID, Balance: StartingBalance}
		l.balances[userID] = b
	}
	return b
}

// Ensure creates the user's ledger entry with the starting balance if
// absent, and returns a copy. Idempotent.
func (l *BalanceLedger) Ensure(userID string) UserBalance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.ensureLocked(userID)
}

// HasAvailable reports whether balance - lockedMargin covers amount.
func (l *BalanceLedger) HasAvailable(userID string, amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureLocked(userID).Available() >= amount
}

// Lock increments the user's locked margin unconditionally. The caller must
// have already checked availability: the engine's single-writer dispatch
// guarantees nothing interleaves between the check and this commit.
func (l *BalanceLedger) Lock(userID string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLocked(userID).LockedMargin += amount
}

// ReleaseAndApplyPnL unlocks the position's collateral and books the
// realized gain/loss in one atomic update. Lock never deducts from Balance,
// so only the P&L moves it; a zero-P&L round trip restores the pre-lock
// state exactly.
func (l *BalanceLedger) ReleaseAndApplyPnL(userID string, margin, pnl int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.ensureLocked(userID)
	b.LockedMargin -= margin
	b.Balance += pnl
}

// Get returns a copy of the user's ledger entry, creating it lazily.
func (l *BalanceLedger) Get(userID string) UserBalance {
	return l.Ensure(userID)
}

// All returns a copy of every ledger entry, keyed by user id.
func (l *BalanceLedger) All() map[string]UserBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]UserBalance, len(l.balances))
	for k, v := range l.balances {
		out[k] = *v
	}
	return out
}

// Restore replaces the ledger's contents from a snapshot.
func (l *BalanceLedger) Restore(balances map[string]UserBalance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]*UserBalance, len(balances))
	for k, v := range balances {
		b := v
		l.balances[k] = &b
	}
}
