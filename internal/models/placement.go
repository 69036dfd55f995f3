package models

import "sync"

// Placement is a named slot position on a marketplace page together with the
// pixel size it reserves. The size drives the LOADING placeholder so the page
// does not shift when content arrives.
type Placement struct {
	// ID is the placement identifier used in content requests (e.g. "search-results-inline", "listing-detail-sidebar").
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Formats lists the delivery kinds the placement accepts. Empty accepts all.
	Formats []string `json:"formats,omitempty"`
}

// Accepts reports whether content of the given kind may fill the placement.
func (p Placement) Accepts(kind DeliveryKind) bool {
	if len(p.Formats) == 0 {
		return true
	}
	for _, f := range p.Formats {
		if DeliveryKind(f) == kind {
			return true
		}
	}
	return false
}

// PlacementStore is a read-mostly registry of placements.
type PlacementStore interface {
	Get(id string) (Placement, bool)
	All() []Placement
	ReplaceAll(pls []Placement)
}

// InMemoryPlacementStore implements PlacementStore with a RWMutex-guarded map.
type InMemoryPlacementStore struct {
	mu         sync.RWMutex
	placements map[string]Placement
}

// NewInMemoryPlacementStore returns an empty store.
func NewInMemoryPlacementStore() *InMemoryPlacementStore {
	return &InMemoryPlacementStore{placements: make(map[string]Placement)}
}

// Get returns the placement with the given id.
func (s *InMemoryPlacementStore) Get(id string) (Placement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.placements[id]
	return p, ok
}

// All returns a copy of every placement.
func (s *InMemoryPlacementStore) All() []Placement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Placement, 0, len(s.placements))
	for _, p := range s.placements {
		out = append(out, p)
	}
	return out
}

// ReplaceAll atomically swaps the registry contents.
func (s *InMemoryPlacementStore) ReplaceAll(pls []Placement) {
	next := make(map[string]Placement, len(pls))
	for _, p := range pls {
		next[p.ID] = p
	}
	s.mu.Lock()
	s.placements = next
	s.mu.Unlock()
}
