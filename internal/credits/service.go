package credits

import "context"

const defaultStartingGrant = 3

// Service manages credit ledgers via an underlying store.
type Service struct {
	store         Store
	startingGrant int
}

// NewService constructs a Service with an in-memory store.
func NewService(startingGrant int) *Service {
	return &Service{store: NewMemoryStore(), startingGrant: normalizeGrant(startingGrant)}
}

// NewServiceWithStore constructs a Service backed by the given store.
func NewServiceWithStore(store Store, startingGrant int) *Service {
	return &Service{store: store, startingGrant: normalizeGrant(startingGrant)}
}

// Ensure returns the owner's ledger, initializing it with the starting grant
// if absent.
func (s *Service) Ensure(ctx context.Context, ownerID string) (Ledger, error) {
	return s.store.Ensure(ctx, ownerID, s.startingGrant)
}

// Balance returns the owner's current balance, initializing the ledger if needed.
func (s *Service) Balance(ctx context.Context, ownerID string) (int, error) {
	ledger, err := s.store.Ensure(ctx, ownerID, s.startingGrant)
	if err != nil {
		return 0, err
	}
	return ledger.Balance, nil
}

// DebitForRender charges one credit for a render submission and records the
// signed transaction. Returns ErrInsufficientCredits when the balance cannot
// cover it.
func (s *Service) DebitForRender(ctx context.Context, ownerID, renderJobRef string) (Ledger, error) {
	if _, err := s.store.Ensure(ctx, ownerID, s.startingGrant); err != nil {
		return Ledger{}, err
	}
	return s.store.Debit(ctx, ownerID, 1, Transaction{
		OwnerID:     ownerID,
		Amount:      -1,
		Kind:        KindRenderDebit,
		Description: "render job submission",
		ReferenceID: renderJobRef,
	})
}

// Transactions returns the owner's ledger history, newest first.
func (s *Service) Transactions(ctx context.Context, ownerID string, limit, offset int) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, ownerID, limit, offset)
}

func normalizeGrant(grant int) int {
	if grant < 0 {
		return defaultStartingGrant
	}
	return grant
}
