package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinYAML []byte

var (
	// ErrNotFound is returned when no scenario has the requested ID.
	ErrNotFound = errors.New("scenario not found")

	// ErrDuplicateID is returned by Add when the ID is already taken.
	ErrDuplicateID = errors.New("scenario with that ID already exists")

	// ErrNoConversation is returned by Random when the catalog holds no
	// conversation scenarios.
	ErrNoConversation = errors.New("catalog has no conversation scenarios")
)

// File is the YAML document holding a list of scenarios.
//
// Example:
//
//	scenarios:
//	  - id: cafe-order
//	    title: Ordering at a Café
//	    difficulty: easy
//	    category: daily
//	    ...
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadFile reads a scenario YAML file from disk.
func LoadFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %q: %w", path, err)
	}
	defer f.Close()

	out, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: parse %q: %w", path, err)
	}
	return out, nil
}

// LoadFromReader parses scenario YAML from r. Unknown keys are rejected.
func LoadFromReader(r io.Reader) ([]Scenario, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("scenario: decode yaml: %w", err)
	}
	return f.Scenarios, nil
}

// ListOptions narrows [Catalog.List]. Zero fields match everything.
type ListOptions struct {
	Category Category
	Kind     Kind
}

// Catalog is a thread-safe, insertion-ordered set of scenarios.
type Catalog struct {
	mu    sync.RWMutex
	byID  map[string]Scenario
	order []string
}

// NewCatalog returns a catalog holding scenarios. Every scenario is
// validated and IDs must be unique.
func NewCatalog(scenarios ...Scenario) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Scenario, len(scenarios))}
	for _, s := range scenarios {
		if _, err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Builtin returns a fresh catalog holding the embedded scenarios.
func Builtin() (*Catalog, error) {
	scenarios, err := LoadFromReader(bytes.NewReader(builtinYAML))
	if err != nil {
		return nil, err
	}
	return NewCatalog(scenarios...)
}

// Add validates s and stores it. A scenario without an ID gets a generated
// one. The stored scenario is returned.
func (c *Catalog) Add(s Scenario) (Scenario, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(s)
}

func (c *Catalog) addLocked(s Scenario) (Scenario, error) {
	s = s.withDefaults()
	if s.ID == "" {
		s.ID = c.uniqueIDLocked(s.Title)
	}
	if err := Validate(s); err != nil {
		return Scenario{}, fmt.Errorf("scenario %q: %w", s.ID, err)
	}
	if _, exists := c.byID[s.ID]; exists {
		return Scenario{}, fmt.Errorf("scenario %q: %w", s.ID, ErrDuplicateID)
	}
	c.byID[s.ID] = s
	c.order = append(c.order, s.ID)
	return s, nil
}

// AdoptCustom stores a synthesized scenario. Kind and category are forced to
// conversation and custom, the originating prompt is recorded, and a fresh
// ID is assigned when the proposed one is empty or already taken.
func (c *Catalog) AdoptCustom(s Scenario, prompt string) (Scenario, error) {
	s.Kind = KindConversation
	s.Category = CategoryCustom
	s.UserPrompt = prompt
	if !s.Difficulty.IsValid() {
		s.Difficulty = DifficultyMedium
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s.ID == "" || c.byID[s.ID].ID != "" {
		s.ID = c.uniqueIDLocked(lo.Ternary(s.ID != "", s.ID, s.Title))
	}
	return c.addLocked(s)
}

// Remove deletes the scenario with the given ID.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; !ok {
		return ErrNotFound
	}
	delete(c.byID, id)
	c.order = lo.Without(c.order, id)
	return nil
}

// Get returns the scenario with the given ID.
func (c *Catalog) Get(id string) (Scenario, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	if !ok {
		return Scenario{}, ErrNotFound
	}
	return s, nil
}

// List returns the matching scenarios in insertion order.
func (c *Catalog) List(opts ListOptions) []Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := lo.Map(c.order, func(id string, _ int) Scenario { return c.byID[id] })
	return lo.Filter(all, func(s Scenario, _ int) bool {
		return (opts.Category == "" || s.Category == opts.Category) &&
			(opts.Kind == "" || s.Kind == opts.Kind)
	})
}

// Len returns the number of scenarios in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Random picks uniformly among the conversation scenarios.
func (c *Catalog) Random() (Scenario, error) {
	candidates := c.List(ListOptions{Kind: KindConversation})
	if len(candidates) == 0 {
		return Scenario{}, ErrNoConversation
	}
	return candidates[rand.IntN(len(candidates))], nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// uniqueIDLocked derives a slug from base and appends a short random suffix
// until it is unused. c.mu must be held.
func (c *Catalog) uniqueIDLocked(base string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if slug == "" {
		slug = "custom"
	}
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if _, taken := c.byID[slug]; !taken {
		return slug
	}
	for {
		id := slug + "-" + uuid.NewString()[:8]
		if _, taken := c.byID[id]; !taken {
			return id
		}
	}
}
