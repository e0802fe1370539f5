package memory

import (
	"context"
	"strings"
	"sync"

	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

// Ledger is an in-memory token ledger for tests and local runs. Transfers
// fail on insufficient balance. FailNextTransfer injects a one-shot failure
// on the next operation; FailTransferNumber fails the nth individual
// movement from now, which lets tests reject a mid-split leg.
type Ledger struct {
	mu            sync.Mutex
	balances      map[string]map[string]int64
	failNext      bool
	failCountdown int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]int64)}
}

// SetBalance seeds an account balance for a token.
func (l *Ledger) SetBalance(tokenID string, account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokenLocked(tokenID)[strings.TrimSpace(account)] = amount
}

// Balance reads an account balance.
func (l *Ledger) Balance(tokenID string, account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokenLocked(tokenID)[strings.TrimSpace(account)]
}

// FailNextTransfer makes the next transfer operation fail.
func (l *Ledger) FailNextTransfer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = true
}

// FailTransferNumber makes the nth individual movement from now fail, counted
// across single transfers and split legs alike.
func (l *Ledger) FailTransferNumber(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failCountdown = n
}

func (l *Ledger) Transfer(_ context.Context, tokenID string, from string, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.injectedFailureLocked() {
		return domainerrors.ErrLedgerTransferFailed
	}
	return l.moveLocked(l.tokenLocked(tokenID), from, to, amount)
}

func (l *Ledger) TransferFrom(_ context.Context, tokenID string, from string, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.injectedFailureLocked() {
		return domainerrors.ErrLedgerTransferFailed
	}
	return l.moveLocked(l.tokenLocked(tokenID), from, to, amount)
}

// SplitTransferFrom settles all legs or none: the movements run against a
// staged copy of the token's balances and commit only when every leg
// succeeded.
func (l *Ledger) SplitTransferFrom(_ context.Context, tokenID string, from string, legs []ports.LedgerLeg) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext {
		l.failNext = false
		return domainerrors.ErrLedgerTransferFailed
	}

	balances := l.tokenLocked(tokenID)
	staged := make(map[string]int64, len(balances))
	for account, amount := range balances {
		staged[account] = amount
	}
	for _, leg := range legs {
		if l.injectedFailureLocked() {
			return domainerrors.ErrLedgerTransferFailed
		}
		if err := l.moveLocked(staged, from, leg.To, leg.Amount); err != nil {
			return err
		}
	}
	l.balances[strings.TrimSpace(tokenID)] = staged
	return nil
}

func (l *Ledger) injectedFailureLocked() bool {
	if l.failNext {
		l.failNext = false
		return true
	}
	if l.failCountdown > 0 {
		l.failCountdown--
		if l.failCountdown == 0 {
			return true
		}
	}
	return false
}

func (l *Ledger) moveLocked(balances map[string]int64, from string, to string, amount int64) error {
	if amount < 0 {
		return domainerrors.ErrLedgerTransferFailed
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if balances[from] < amount {
		return domainerrors.ErrLedgerTransferFailed
	}
	balances[from] -= amount
	balances[to] += amount
	return nil
}

func (l *Ledger) tokenLocked(tokenID string) map[string]int64 {
	tokenID = strings.TrimSpace(tokenID)
	balances, ok := l.balances[tokenID]
	if !ok {
		balances = make(map[string]int64)
		l.balances[tokenID] = balances
	}
	return balances
}

var _ ports.TokenLedger = (*Ledger)(nil)
