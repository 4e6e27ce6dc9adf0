package credits

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureGrantsStartingBalanceOnce(t *testing.T) {
	svc := NewService(3)

	ledger, err := svc.Ensure(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ledger.Balance != 3 {
		t.Fatalf("expected starting balance 3, got %d", ledger.Balance)
	}

	// Second call must not grant again.
	ledger, err = svc.Ensure(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ledger.Balance != 3 {
		t.Fatalf("expected balance unchanged, got %d", ledger.Balance)
	}

	txns, err := svc.Transactions(context.Background(), "user-1", 10, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].Kind != KindGrant || txns[0].Amount != 3 {
		t.Fatalf("expected single grant transaction, got %+v", txns)
	}
}

func TestDebitForRenderChargesOneCredit(t *testing.T) {
	svc := NewService(3)

	ledger, err := svc.DebitForRender(context.Background(), "user-1", "render-job-1")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ledger.Balance != 2 {
		t.Fatalf("expected balance 2, got %d", ledger.Balance)
	}

	txns, _ := svc.Transactions(context.Background(), "user-1", 10, 0)
	var debits int
	for _, txn := range txns {
		if txn.Kind == KindRenderDebit {
			debits++
			if txn.Amount != -1 {
				t.Fatalf("expected amount -1, got %d", txn.Amount)
			}
			if txn.ReferenceID != "render-job-1" {
				t.Fatalf("expected reference to render job, got %q", txn.ReferenceID)
			}
		}
	}
	if debits != 1 {
		t.Fatalf("expected one debit transaction, got %d", debits)
	}
}

func TestDebitForRenderRejectsEmptyBalance(t *testing.T) {
	svc := NewService(0)

	_, err := svc.DebitForRender(context.Background(), "user-1", "render-job-1")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, err := svc.Balance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestDebitExhaustsBalanceExactly(t *testing.T) {
	svc := NewService(2)

	for i := 0; i < 2; i++ {
		if _, err := svc.DebitForRender(context.Background(), "user-1", "job"); err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}
	if _, err := svc.DebitForRender(context.Background(), "user-1", "job"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits after exhaustion, got %v", err)
	}
}
