// Package board loads work items and their grouping from an external
// board service and writes resolved coordinates back to it. Two sources
// are supported, Trello boards and Notion databases, behind a common
// Source interface so the rest of the pipeline never sees wire types.
package board

import (
	"context"

	"github.com/cardmap/cardmap-cli/internal/model"
)

// Source is a read/write connection to one board.
type Source interface {
	// Load fetches the full board state: every open item plus the
	// grouping the board defines (lists for Trello, category options
	// for Notion).
	Load(ctx context.Context, boardID string) (*Snapshot, error)

	// SaveCoordinates persists resolved coordinates on the item so the
	// next Load returns them. Items whose coordinates fail to persist
	// keep them in memory only.
	SaveCoordinates(ctx context.Context, itemID string, coords model.Coordinates) error
}

// Snapshot is one consistent read of a board.
type Snapshot struct {
	BoardID string
	Groups  []model.Group
	Items   []model.Item
}

// ApplyGrouping replaces the board-derived groups with a configured
// grouping. Empty input keeps the board's own groups.
func (s *Snapshot) ApplyGrouping(groups []model.Group) {
	if len(groups) == 0 {
		return
	}
	s.Groups = groups
}
