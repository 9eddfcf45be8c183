package model

// Group is a user-defined visibility bucket over items. Each group claims
// an ordered set of board categories (lists); an item belongs to the first
// group in group order that claims its category.
type Group struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CategoryIDs    []string `json:"category_ids"`
	DefaultVisible bool     `json:"default_visible"`
}

// GroupIDFor returns the ID of the first group containing categoryID, or
// "" when no group claims it.
func GroupIDFor(groups []Group, categoryID string) string {
	for _, g := range groups {
		for _, c := range g.CategoryIDs {
			if c == categoryID {
				return g.ID
			}
		}
	}
	return ""
}

// VisibilityState is the user's current marker filter: the set of visible
// groups plus the two global inclusion toggles. Persisted on every change.
type VisibilityState struct {
	Visible          map[string]bool `json:"visible"`
	IncludeDone      bool            `json:"include_done"`
	IncludeTemplates bool            `json:"include_templates"`
}

// Clone returns a deep copy. The Visible map is never shared.
func (v VisibilityState) Clone() VisibilityState {
	out := VisibilityState{
		Visible:          make(map[string]bool, len(v.Visible)),
		IncludeDone:      v.IncludeDone,
		IncludeTemplates: v.IncludeTemplates,
	}
	for id, on := range v.Visible {
		out.Visible[id] = on
	}
	return out
}

// DefaultVisibility builds the initial state for a board with no saved
// preference: each group's own flag, overridden by any stored per-group
// default, with both inclusion toggles off.
func DefaultVisibility(groups []Group, overrides map[string]bool) VisibilityState {
	st := VisibilityState{Visible: make(map[string]bool, len(groups))}
	for _, g := range groups {
		on := g.DefaultVisible
		if o, ok := overrides[g.ID]; ok {
			on = o
		}
		st.Visible[g.ID] = on
	}
	return st
}
