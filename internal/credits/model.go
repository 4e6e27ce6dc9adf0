package credits

import "time"

// Transaction kinds.
const (
	KindGrant       = "grant"
	KindRenderDebit = "render_debit"
)

// Ledger is a user's current credit balance.
type Ledger struct {
	OwnerID   string    `json:"ownerId"`
	Balance   int       `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transaction is an immutable signed ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Amount      int       `json:"amount"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	ReferenceID string    `json:"referenceId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
