package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessionReports = `
CREATE TABLE IF NOT EXISTS session_reports (
    session_id     TEXT         PRIMARY KEY,
    scenario_id    TEXT         NOT NULL,
    title          TEXT         NOT NULL DEFAULT '',
    role_reversed  BOOLEAN      NOT NULL DEFAULT false,
    destination    TEXT         NOT NULL DEFAULT '',
    fluency_score  INTEGER      NOT NULL,
    messages       JSONB        NOT NULL DEFAULT '[]',
    report         JSONB        NOT NULL,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_reports_scenario
    ON session_reports (scenario_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_session_reports_created
    ON session_reports (created_at DESC);
`

// Migrate creates the archive schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessionReports); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// Postgres is a [Store] backed by a session_reports table.
//
// All methods are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to dsn, verifies the connection and runs [Migrate].
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// Ping checks that the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Save implements [Store].
func (p *Postgres) Save(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO session_reports
		    (session_id, scenario_id, title, role_reversed, destination, fluency_score, messages, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
		    fluency_score = EXCLUDED.fluency_score,
		    messages      = EXCLUDED.messages,
		    report        = EXCLUDED.report,
		    created_at    = EXCLUDED.created_at`

	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("archive: encode messages: %w", err)
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("archive: encode report: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = p.pool.Exec(ctx, q,
		rec.SessionID,
		rec.ScenarioID,
		rec.Title,
		rec.RoleReversed,
		rec.Destination,
		rec.Report.FluencyScore,
		messages,
		report,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: save %s: %w", rec.SessionID, err)
	}
	return nil
}

// List implements [Store].
func (p *Postgres) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	const q = `
		SELECT session_id, scenario_id, title, role_reversed, destination, messages, report, created_at
		FROM   session_reports
		WHERE  $1 = '' OR scenario_id = $1
		ORDER  BY created_at DESC
		LIMIT  $2`

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := p.pool.Query(ctx, q, opts.ScenarioID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec              Record
			messages, report []byte
		)
		if err := row.Scan(
			&rec.SessionID,
			&rec.ScenarioID,
			&rec.Title,
			&rec.RoleReversed,
			&rec.Destination,
			&messages,
			&report,
			&rec.CreatedAt,
		); err != nil {
			return Record{}, err
		}
		if err := json.Unmarshal(messages, &rec.Messages); err != nil {
			return Record{}, fmt.Errorf("decode messages: %w", err)
		}
		if err := json.Unmarshal(report, &rec.Report); err != nil {
			return Record{}, fmt.Errorf("decode report: %w", err)
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
