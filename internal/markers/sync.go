package markers

import (
	"sync"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/model"
)

// View is the map surface the reconciler drives. The serve mode backs it
// with the web client; other modes pass nil and only read Markers.
type View interface {
	// FitBounds pans and zooms the view so the bounds are in frame.
	FitBounds(b *geom.Bounds)
}

// Reconciler owns the marker set. Sync rebuilds it wholesale from the
// current items and filter, which keeps every caller (enrichment
// completions, visibility toggles, reloads) on one code path.
type Reconciler struct {
	rules IconRules
	view  View

	mu      sync.Mutex
	markers []model.Marker
}

// NewReconciler creates a reconciler with the given styling rules. view
// may be nil.
func NewReconciler(rules IconRules, view View) *Reconciler {
	return &Reconciler{rules: rules, view: view}
}

// Sync replaces the marker set from scratch: visible items with
// coordinates become markers in item order. When at least one marker
// exists the view is fitted to the markers' bounding region; with none,
// the view is left where the user had it.
func (r *Reconciler) Sync(items []model.Item, filter *Filter) {
	markers := make([]model.Marker, 0, len(items))
	bounds := geom.NewBounds(geom.XY)

	for _, it := range items {
		if it.Coords == nil {
			continue
		}
		if !filter.Visible(it) {
			continue
		}
		style := r.rules.StyleFor(it)
		markers = append(markers, model.Marker{
			ItemID: it.ID,
			Name:   it.Name,
			Lat:    it.Coords.Lat,
			Lng:    it.Coords.Lng,
			Icon:   style.Icon,
			Color:  style.Color,
		})
		bounds.Extend(geom.NewPointFlat(geom.XY, []float64{it.Coords.Lng, it.Coords.Lat}))
	}

	r.mu.Lock()
	r.markers = markers
	r.mu.Unlock()

	zap.L().Debug("markers synced", zap.Int("markers", len(markers)))

	if len(markers) > 0 && r.view != nil {
		r.view.FitBounds(bounds)
	}
}

// Markers returns a copy of the current marker set in item order.
func (r *Reconciler) Markers() []model.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Marker(nil), r.markers...)
}

// Bounds returns the bounding region of the current markers, or nil when
// there are none.
func (r *Reconciler) Bounds() *geom.Bounds {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.markers) == 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, m := range r.markers {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{m.Lng, m.Lat}))
	}
	return b
}
