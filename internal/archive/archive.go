// Package archive keeps finished practice sessions: the scenario, the full
// transcript and the report.
//
// [Postgres] is the durable backend. [Guard] wraps any [Store] so a database
// outage never fails a practice session; it logs the failure and reports
// itself as degraded instead.
package archive

import (
	"context"
	"time"

	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

// Record is one archived session.
type Record struct {
	SessionID    string               `json:"session_id"`
	ScenarioID   string               `json:"scenario_id"`
	Title        string               `json:"title"`
	RoleReversed bool                 `json:"role_reversed"`
	Destination  string               `json:"destination,omitempty"`
	Messages     []transcript.Message `json:"messages"`
	Report       tutor.Report         `json:"report"`
	CreatedAt    time.Time            `json:"created_at"`
}

// ListOptions filters [Store.List].
type ListOptions struct {
	// ScenarioID restricts results to one scenario. Empty means all.
	ScenarioID string

	// Limit caps the number of records. Zero or negative means 50.
	Limit int
}

// DefaultLimit is the page size used when ListOptions.Limit is unset.
const DefaultLimit = 50

// Store persists session records.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts rec, replacing an earlier record with the same session ID.
	Save(ctx context.Context, rec Record) error

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]Record, error)
}
