package archive_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lingoxa/internal/archive"
	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

// testDSN returns the test database DSN, or skips the test if
// LINGOXA_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LINGOXA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LINGOXA_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *archive.Postgres {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS session_reports CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	pool.Close()

	store, err := archive.NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgres_SaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := archive.Record{
		SessionID:  "s1",
		ScenarioID: "cafe-order",
		Title:      "Ordering at a Café",
		Messages: []transcript.Message{
			{ID: "m1", Role: transcript.RoleAI, Text: "Hi! What can I get you?"},
			{ID: "m2", Role: transcript.RoleUser, Text: "A latte, please."},
		},
		Report:    tutor.Report{FluencyScore: 72, NextSteps: "Practise polite requests."},
		CreatedAt: base,
	}
	second := archive.Record{
		SessionID:  "s2",
		ScenarioID: "taxi-ride",
		Report:     tutor.Report{FluencyScore: 90},
		CreatedAt:  base.Add(time.Hour),
	}
	for _, rec := range []archive.Record{first, second} {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save %s: %v", rec.SessionID, err)
		}
	}

	all, err := store.List(ctx, archive.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].SessionID != "s2" {
		t.Fatalf("List = %+v, want s2 first", all)
	}

	cafe, err := store.List(ctx, archive.ListOptions{ScenarioID: "cafe-order"})
	if err != nil {
		t.Fatalf("List cafe: %v", err)
	}
	if len(cafe) != 1 {
		t.Fatalf("List cafe = %d records, want 1", len(cafe))
	}
	got := cafe[0]
	if got.Report.FluencyScore != 72 || got.Report.NextSteps != first.Report.NextSteps {
		t.Errorf("report = %+v", got.Report)
	}
	if len(got.Messages) != 2 || got.Messages[1].Text != "A latte, please." {
		t.Errorf("messages = %+v", got.Messages)
	}

	first.Report.FluencyScore = 75
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("re-Save: %v", err)
	}
	cafe, _ = store.List(ctx, archive.ListOptions{ScenarioID: "cafe-order"})
	if len(cafe) != 1 || cafe[0].Report.FluencyScore != 75 {
		t.Errorf("after re-Save = %+v", cafe)
	}
}
