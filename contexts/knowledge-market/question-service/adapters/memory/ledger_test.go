package memory

import (
	"context"
	"errors"
	"testing"

	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
	"delphi/contexts/knowledge-market/question-service/ports"
)

func TestSplitTransferFromCommitsAllLegsOrNone(t *testing.T) {
	ledger := NewLedger()
	ledger.SetBalance("usdc", "payer", 50)

	// The second leg overdraws, so the first must not commit either.
	err := ledger.SplitTransferFrom(context.Background(), "usdc", "payer", []ports.LedgerLeg{
		{To: "alpha", Amount: 30},
		{To: "beta", Amount: 30},
	})
	if !errors.Is(err, domainerrors.ErrLedgerTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if got := ledger.Balance("usdc", "payer"); got != 50 {
		t.Fatalf("expected payer balance untouched, got %d", got)
	}
	if got := ledger.Balance("usdc", "alpha"); got != 0 {
		t.Fatalf("expected no stranded first leg, got %d", got)
	}

	if err := ledger.SplitTransferFrom(context.Background(), "usdc", "payer", []ports.LedgerLeg{
		{To: "alpha", Amount: 30},
		{To: "beta", Amount: 20},
	}); err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if ledger.Balance("usdc", "payer") != 0 || ledger.Balance("usdc", "alpha") != 30 || ledger.Balance("usdc", "beta") != 20 {
		t.Fatalf("unexpected balances after split")
	}
}

func TestSplitTransferFromInjectedLegFailure(t *testing.T) {
	ledger := NewLedger()
	ledger.SetBalance("usdc", "payer", 100)

	ledger.FailTransferNumber(2)
	err := ledger.SplitTransferFrom(context.Background(), "usdc", "payer", []ports.LedgerLeg{
		{To: "alpha", Amount: 10},
		{To: "beta", Amount: 10},
		{To: "gamma", Amount: 10},
	})
	if !errors.Is(err, domainerrors.ErrLedgerTransferFailed) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if ledger.Balance("usdc", "payer") != 100 || ledger.Balance("usdc", "alpha") != 0 {
		t.Fatalf("expected no movement after rejected split")
	}
}
