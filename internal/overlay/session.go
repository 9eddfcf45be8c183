// Package overlay holds the in-memory board session every mode works
// against: the loaded items, their grouping, and the user's visibility
// state. All access is by value so callers never share mutable state
// with the session.
package overlay

import (
	"sync"

	"github.com/cardmap/cardmap-cli/internal/board"
	"github.com/cardmap/cardmap-cli/internal/model"
)

// Session is the single source of truth for one loaded board.
type Session struct {
	mu      sync.RWMutex
	boardID string
	order   []string
	items   map[string]model.Item
	groups  []model.Group
	vis     model.VisibilityState
}

// NewSession builds a session from a board snapshot and an initial
// visibility state.
func NewSession(snap *board.Snapshot, vis model.VisibilityState) *Session {
	s := &Session{}
	s.reset(snap, vis)
	return s
}

// Reset replaces the whole session with a freshly loaded snapshot.
func (s *Session) Reset(snap *board.Snapshot, vis model.VisibilityState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(snap, vis)
}

func (s *Session) reset(snap *board.Snapshot, vis model.VisibilityState) {
	s.boardID = snap.BoardID
	s.order = make([]string, 0, len(snap.Items))
	s.items = make(map[string]model.Item, len(snap.Items))
	for _, it := range snap.Items {
		if _, dup := s.items[it.ID]; dup {
			continue
		}
		s.order = append(s.order, it.ID)
		s.items[it.ID] = it
	}
	s.groups = append([]model.Group(nil), snap.Groups...)
	s.vis = vis.Clone()
}

// BoardID returns the loaded board's ID.
func (s *Session) BoardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boardID
}

// Item returns a copy of one item.
func (s *Session) Item(id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

// SetCoordinates assigns coordinates to an item. Unknown IDs are
// ignored.
func (s *Session) SetCoordinates(id string, coords model.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return
	}
	it.Coords = &coords
	s.items[id] = it
}

// Items returns copies of all items in board order.
func (s *Session) Items() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Groups returns a copy of the grouping.
func (s *Session) Groups() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Group(nil), s.groups...)
}

// HasGroup reports whether a group with the ID exists.
func (s *Session) HasGroup(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

// Visibility returns a copy of the current visibility state.
func (s *Session) Visibility() model.VisibilityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vis.Clone()
}

// SetGroupVisible toggles one group and returns the updated state. The
// second return is false when no such group exists.
func (s *Session) SetGroupVisible(id string, on bool) (model.VisibilityState, bool) {
	if !s.HasGroup(id) {
		return model.VisibilityState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vis.Visible[id] = on
	return s.vis.Clone(), true
}

// SetIncludeDone toggles completed-item visibility and returns the
// updated state.
func (s *Session) SetIncludeDone(on bool) model.VisibilityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vis.IncludeDone = on
	return s.vis.Clone()
}

// SetIncludeTemplates toggles template visibility and returns the
// updated state.
func (s *Session) SetIncludeTemplates(on bool) model.VisibilityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vis.IncludeTemplates = on
	return s.vis.Clone()
}
