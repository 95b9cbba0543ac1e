package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/archive"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/session"
)

const reportJSON = `{
	"fluency_score": 80,
	"positive_feedback": "Great job!",
	"key_corrections": [],
	"new_vocabulary": [{"word": "baguette", "definition": "long French bread"}],
	"next_steps": "Try ordering for a group."
}`

func TestSessionManager_Lifecycle(t *testing.T) {
	t.Parallel()

	a, llm, store := newApp(t)
	sm := a.Sessions()
	ctx := context.Background()

	e, err := sm.Start(ctx, app.StartRequest{ScenarioID: "bakery"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := e.Session.ID()
	if got, err := sm.Get(id); err != nil || got != e {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if sm.Len() != 1 || len(sm.List()) != 1 {
		t.Errorf("Len = %d, List = %d", sm.Len(), len(sm.List()))
	}

	llm.Enqueue(`{"is_correct": true, "original": "Could I have a baguette?"}`)
	llm.Enqueue("Of course! Anything else?")
	if _, err := e.Session.Submit(ctx, "Could I have a baguette?"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	llm.Enqueue(reportJSON)
	report, err := sm.Finish(ctx, id)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if report.FluencyScore != 80 {
		t.Errorf("score = %d", report.FluencyScore)
	}

	recs, err := a.Reports(ctx, archive.ListOptions{ScenarioID: "bakery"})
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if store.SaveCalls() != 1 || len(recs) != 1 {
		t.Fatalf("saves = %d, records = %d", store.SaveCalls(), len(recs))
	}
	rec := recs[0]
	if rec.SessionID != id || len(rec.Messages) != 3 || rec.Report.FluencyScore != 80 {
		t.Errorf("record = %+v", rec)
	}

	if err := sm.Exit(ctx, id); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if _, err := sm.Get(id); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Get after Exit = %v, want ErrNoSession", err)
	}
	if err := sm.Exit(ctx, id); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("second Exit = %v, want ErrNoSession", err)
	}
	if e.Session.Snapshot().Phase != session.PhaseClosed {
		t.Error("exited session not closed")
	}
}

func TestSessionManager_UnknownScenario(t *testing.T) {
	t.Parallel()

	a, _, _ := newApp(t)
	_, err := a.Sessions().Start(context.Background(), app.StartRequest{ScenarioID: "moon-base"})
	if !errors.Is(err, scenario.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if a.Sessions().Len() != 0 {
		t.Error("a session was registered")
	}
}

func TestSessionManager_OpeningFailureRegistersNothing(t *testing.T) {
	t.Parallel()

	a, llm, _ := newApp(t)
	llm.EnqueueErr(errors.New("upstream down"))
	_, err := a.Sessions().Start(context.Background(), app.StartRequest{
		ScenarioID:  "bakery",
		Destination: "France",
	})
	if err == nil {
		t.Fatal("expected an opening failure")
	}
	if a.Sessions().Len() != 0 {
		t.Error("a session was registered after a failed opening")
	}
}

func TestSessionManager_FinishTooShort(t *testing.T) {
	t.Parallel()

	a, llm, store := newApp(t)
	e, err := a.Sessions().Start(context.Background(), app.StartRequest{ScenarioID: "bakery"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = a.Sessions().Finish(context.Background(), e.Session.ID())
	if !errors.Is(err, session.ErrInsufficientContent) {
		t.Errorf("err = %v, want ErrInsufficientContent", err)
	}
	if len(llm.Calls()) != 0 || store.SaveCalls() != 0 {
		t.Errorf("calls = %d, saves = %d, want none", len(llm.Calls()), store.SaveCalls())
	}
}

func TestSessionManager_ArchiveOutageDoesNotFailFinish(t *testing.T) {
	t.Parallel()

	a, llm, store := newApp(t)
	store.SaveErr = errors.New("database unavailable")
	ctx := context.Background()

	e, err := a.Sessions().Start(ctx, app.StartRequest{ScenarioID: "bakery"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	llm.Enqueue(`{"is_correct": true, "original": "Hello"}`)
	llm.Enqueue("Hi!")
	if _, err := e.Session.Submit(ctx, "Hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	llm.Enqueue(reportJSON)
	if _, err := a.Sessions().Finish(ctx, e.Session.ID()); err != nil {
		t.Errorf("Finish = %v, want nil despite archive outage", err)
	}
}

func TestSessionManager_CloseAll(t *testing.T) {
	t.Parallel()

	a, _, _ := newApp(t)
	ctx := context.Background()
	for range 3 {
		if _, err := a.Sessions().Start(ctx, app.StartRequest{ScenarioID: "bakery"}); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := a.Sessions().Len(); n != 0 {
		t.Errorf("%d sessions left after shutdown", n)
	}
}
