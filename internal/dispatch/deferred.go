package dispatch

import "context"

// DeferredTier accepts every task without doing anything. It terminates the
// cascade when no execution back-end is reachable: the job stays queued and a
// later sweep or manual retry picks it up.
type DeferredTier struct{}

func NewDeferredTier() DeferredTier { return DeferredTier{} }

func (DeferredTier) Name() string { return "deferred" }

func (DeferredTier) Configured() bool { return true }

func (DeferredTier) Dispatch(ctx context.Context, task Task) (string, error) {
	return "", nil
}

var _ Tier = DeferredTier{}
