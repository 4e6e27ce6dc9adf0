package credits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps ledgers in memory and is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	ledgers map[string]Ledger
	txns    map[string][]Transaction
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]Ledger),
		txns:    make(map[string][]Transaction),
	}
}

// Ensure returns the owner's ledger, creating it with the starting grant if absent.
func (s *MemoryStore) Ensure(ctx context.Context, ownerID string, startingGrant int) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ledger, ok := s.ledgers[ownerID]; ok {
		return ledger, nil
	}
	now := time.Now().UTC()
	ledger := Ledger{OwnerID: ownerID, Balance: startingGrant, CreatedAt: now, UpdatedAt: now}
	s.ledgers[ownerID] = ledger
	if startingGrant > 0 {
		s.txns[ownerID] = append(s.txns[ownerID], Transaction{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			Amount:      startingGrant,
			Kind:        KindGrant,
			Description: "starting grant",
			CreatedAt:   now,
		})
	}
	return ledger, nil
}

// Get returns the owner's ledger.
func (s *MemoryStore) Get(ctx context.Context, ownerID string) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.ledgers[ownerID]
	if !ok {
		return Ledger{}, ErrNotFound
	}
	return ledger, nil
}

// Debit atomically decrements the balance and appends the transaction.
func (s *MemoryStore) Debit(ctx context.Context, ownerID string, amount int, txn Transaction) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.ledgers[ownerID]
	if !ok {
		return Ledger{}, ErrNotFound
	}
	if ledger.Balance < amount {
		return Ledger{}, ErrInsufficientCredits
	}
	ledger.Balance -= amount
	ledger.UpdatedAt = time.Now().UTC()
	s.ledgers[ownerID] = ledger

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.OwnerID = ownerID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = ledger.UpdatedAt
	}
	s.txns[ownerID] = append(s.txns[ownerID], txn)
	return ledger, nil
}

// ListTransactions returns the owner's transactions, newest first.
func (s *MemoryStore) ListTransactions(ctx context.Context, ownerID string, limit, offset int) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	s.mu.Lock()
	txns := append([]Transaction(nil), s.txns[ownerID]...)
	s.mu.Unlock()

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	if len(txns) == 0 || offset >= len(txns) {
		return []Transaction{}, nil
	}
	end := len(txns)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return txns[offset:end], nil
}

var _ Store = (*MemoryStore)(nil)
