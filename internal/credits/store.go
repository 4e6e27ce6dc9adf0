package credits

import "context"

// Store defines persistence for ledgers and their transactions.
type Store interface {
	// Ensure returns the owner's ledger, creating it with the starting grant
	// (and a matching grant transaction) if absent.
	Ensure(ctx context.Context, ownerID string, startingGrant int) (Ledger, error)

	Get(ctx context.Context, ownerID string) (Ledger, error)

	// Debit atomically decrements the balance by amount if and only if the
	// current balance covers it, appending the given transaction in the same
	// unit of work. Returns ErrInsufficientCredits otherwise.
	Debit(ctx context.Context, ownerID string, amount int, txn Transaction) (Ledger, error)

	ListTransactions(ctx context.Context, ownerID string, limit, offset int) ([]Transaction, error)
}
