package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/archive"
	"github.com/MrWong99/lingoxa/internal/builder"
	"github.com/MrWong99/lingoxa/internal/session"
	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

// turnResponse answers calls that add messages to a transcript.
type turnResponse struct {
	Messages []transcript.Message `json:"messages"`
	Session  session.Snapshot     `json:"session"`
}

// handleListSessions handles GET /v1/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.app.Sessions().List()})
}

// handleStartSession handles POST /v1/sessions. A failed opening line leaves
// no session behind.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req app.StartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ScenarioID == "" {
		writeError(w, r, fmt.Errorf("%w: scenario_id is required", errBadRequest))
		return
	}
	e, err := s.app.Sessions().Start(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e.Session.Snapshot())
}

// handleGetSession handles GET /v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Session.Snapshot())
}

// handleExitSession handles DELETE /v1/sessions/{id}.
func (s *Server) handleExitSession(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Sessions().Exit(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Text string `json:"text"`
}

// handleSubmit handles POST /v1/sessions/{id}/messages.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := e.Session.Submit(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Messages: msgs, Session: e.Session.Snapshot()})
}

// handleHints handles POST /v1/sessions/{id}/hints.
func (s *Server) handleHints(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hints, err := e.Session.RefreshHints(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hints": hints})
}

// handleStartListening handles POST /v1/sessions/{id}/listening/start.
func (s *Server) handleStartListening(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := e.Session.StartListening(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Messages: msgs, Session: e.Session.Snapshot()})
}

type finishResponse struct {
	Report  tutor.Report     `json:"report"`
	Session session.Snapshot `json:"session"`
}

// handleFinish handles POST /v1/sessions/{id}/finish. A failed report is
// answered with 502; the session snapshot then shows the failed status.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.app.Sessions().Finish(r.Context(), e.Session.ID())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse{Report: report, Session: e.Session.Snapshot()})
}

// handleTranscript handles GET /v1/sessions/{id}/transcript.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := transcript.FileName(e.Session.Scenario().ID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(e.Session.Export()))
}

// handleBuilderState handles GET /v1/sessions/{id}/builder.
func (s *Server) handleBuilderState(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Builder.Snapshot())
}

type builderBeginRequest struct {
	Description string `json:"description"`
}

// handleBuilderBegin handles POST /v1/sessions/{id}/builder.
func (s *Server) handleBuilderBegin(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req builderBeginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.Builder.Begin(r.Context(), req.Description); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Builder.Snapshot())
}

type builderPartResponse struct {
	Verdict tutor.PartValidation `json:"verdict"`
	Builder builder.Snapshot     `json:"builder"`
}

// handleBuilderPart handles POST /v1/sessions/{id}/builder/parts.
func (s *Server) handleBuilderPart(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := e.Builder.Submit(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, builderPartResponse{Verdict: v, Builder: e.Builder.Snapshot()})
}

type builderChooseRequest struct {
	Index int `json:"index"`
}

// handleBuilderChoose handles POST /v1/sessions/{id}/builder/choose. The
// chosen sentence is returned for the client to prefill its input.
func (s *Server) handleBuilderChoose(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req builderChooseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sentence, err := e.Builder.Choose(req.Index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sentence": sentence})
}

// handleBuilderClose handles DELETE /v1/sessions/{id}/builder.
func (s *Server) handleBuilderClose(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e.Builder.Close()
	w.WriteHeader(http.StatusNoContent)
}

// handleReports handles GET /v1/reports[?scenario_id=&limit=].
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := archive.ListOptions{ScenarioID: q.Get("scenario_id")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}
		opts.Limit = n
	}
	records, err := s.app.Reports(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": records})
}
