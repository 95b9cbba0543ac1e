package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/MrWong99/lingoxa/internal/scenario"
)

// scenarioSummary is the list view of a scenario.
type scenarioSummary struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Emoji       string              `json:"emoji,omitempty"`
	Description string              `json:"description"`
	Difficulty  scenario.Difficulty `json:"difficulty"`
	Category    scenario.Category   `json:"category"`
	Kind        scenario.Kind       `json:"kind"`

	// SkipsRoleSelection tells clients not to offer the role swap.
	SkipsRoleSelection bool `json:"skips_role_selection"`
}

func summarize(s scenario.Scenario, _ int) scenarioSummary {
	return scenarioSummary{
		ID:                 s.ID,
		Title:              s.Title,
		Emoji:              s.Emoji,
		Description:        s.Description,
		Difficulty:         s.Difficulty,
		Category:           s.Category,
		Kind:               s.Kind,
		SkipsRoleSelection: s.SkipsRoleSelection(),
	}
}

// handleListScenarios handles GET /v1/scenarios[?category=&kind=].
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := scenario.ListOptions{
		Category: scenario.Category(q.Get("category")),
		Kind:     scenario.Kind(q.Get("kind")),
	}
	if opts.Category != "" && !opts.Category.IsValid() {
		writeError(w, r, fmt.Errorf("%w: unknown category %q", errBadRequest, opts.Category))
		return
	}
	if opts.Kind != "" && !opts.Kind.IsValid() {
		writeError(w, r, fmt.Errorf("%w: unknown kind %q", errBadRequest, opts.Kind))
		return
	}
	list := lo.Map(s.app.Catalog().List(opts), summarize)
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": list})
}

// handleRandomScenario handles GET /v1/scenarios/random.
func (s *Server) handleRandomScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.app.Catalog().Random()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// handleGetScenario handles GET /v1/scenarios/{id}.
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.app.Catalog().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type createScenarioRequest struct {
	Prompt string `json:"prompt"`
}

// handleCreateScenario handles POST /v1/scenarios.
func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, fmt.Errorf("%w: prompt is required", errBadRequest))
		return
	}
	sc, err := s.app.SynthesizeScenario(r.Context(), strings.TrimSpace(req.Prompt))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

type freeChatRequest struct {
	Topic string `json:"topic"`
}

// handleFreeChat handles POST /v1/scenarios/free-chat.
func (s *Server) handleFreeChat(w http.ResponseWriter, r *http.Request) {
	var req freeChatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, r, fmt.Errorf("%w: topic is required", errBadRequest))
		return
	}
	sc, err := s.app.FreeChat(r.Context(), req.Topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// handleTopics handles GET /v1/topics.
func (s *Server) handleTopics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": scenario.Topics})
}

// handleDestinations handles GET /v1/destinations.
func (s *Server) handleDestinations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"destinations": scenario.Destinations})
}
