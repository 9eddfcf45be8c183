// Package markers projects board items onto the map: which items show,
// what each marker looks like, and where the view should sit.
package markers

import (
	"github.com/cardmap/cardmap-cli/internal/model"
)

// Filter decides marker visibility from group membership and the two
// global inclusion toggles.
type Filter struct {
	groups []model.Group
	state  model.VisibilityState
}

// NewFilter builds a filter over the given grouping and state.
func NewFilter(groups []model.Group, state model.VisibilityState) *Filter {
	return &Filter{groups: groups, state: state}
}

// Visible reports whether the item belongs on the map. Completed items
// and templates are held back unless their toggle is on; items whose
// category no group claims are never visible.
func (f *Filter) Visible(item model.Item) bool {
	if item.Completed && !f.state.IncludeDone {
		return false
	}
	if item.Template && !f.state.IncludeTemplates {
		return false
	}
	groupID := model.GroupIDFor(f.groups, item.CategoryID)
	if groupID == "" {
		return false
	}
	return f.state.Visible[groupID]
}
