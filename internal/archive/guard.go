package archive

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Guard wraps a [Store] and makes every operation non-fatal. Failures are
// logged and swallowed: Save returns nil and List returns an empty slice.
// [Guard.Degraded] reports whether the most recent operation failed.
//
// All methods are safe for concurrent use.
type Guard struct {
	store    Store
	degraded atomic.Bool
}

var _ Store = (*Guard)(nil)

// NewGuard returns a Guard around store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Save implements [Store].
func (g *Guard) Save(ctx context.Context, rec Record) error {
	if err := g.store.Save(ctx, rec); err != nil {
		g.degraded.Store(true)
		slog.Warn("archive: save failed, dropping record",
			"session_id", rec.SessionID,
			"err", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// List implements [Store].
func (g *Guard) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	records, err := g.store.List(ctx, opts)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive: list failed, returning empty", "scenario_id", opts.ScenarioID, "err", err)
		return []Record{}, nil
	}
	g.degraded.Store(false)
	return records, nil
}

// Degraded reports whether the last operation on the wrapped store failed.
func (g *Guard) Degraded() bool {
	return g.degraded.Load()
}
