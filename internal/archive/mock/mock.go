// Package mock provides an in-memory archive.Store for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/lingoxa/internal/archive"
)

// Store is an in-memory implementation of archive.Store.
type Store struct {
	mu      sync.Mutex
	records []archive.Record

	// SaveErr, if non-nil, is returned by Save.
	SaveErr error

	// ListErr, if non-nil, is returned by List.
	ListErr error

	saveCalls int
}

var _ archive.Store = (*Store)(nil)

// Save records rec, replacing an earlier record with the same session ID.
func (s *Store) Save(_ context.Context, rec archive.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.records = slices.DeleteFunc(s.records, func(r archive.Record) bool {
		return r.SessionID == rec.SessionID
	})
	s.records = append(s.records, rec)
	return nil
}

// List returns matching records, most recently saved first.
func (s *Store) List(_ context.Context, opts archive.ListOptions) ([]archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = archive.DefaultLimit
	}
	out := []archive.Record{}
	for _, r := range slices.Backward(s.records) {
		if opts.ScenarioID != "" && r.ScenarioID != opts.ScenarioID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveCalls returns how often Save was called.
func (s *Store) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}
