package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/enrich"
	"github.com/cardmap/cardmap-cli/internal/export"
	"github.com/cardmap/cardmap-cli/internal/model"
)

type groupStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Items   int    `json:"items"`
}

type boardResponse struct {
	BoardID          string        `json:"board_id"`
	Groups           []groupStatus `json:"groups"`
	IncludeDone      bool          `json:"include_done"`
	IncludeTemplates bool          `json:"include_templates"`
}

type markersResponse struct {
	Markers *geojson.FeatureCollection `json:"markers"`
	// Bounds is [minLng, minLat, maxLng, maxLat], omitted when no
	// marker is visible so the client keeps its current view.
	Bounds []float64 `json:"bounds,omitempty"`
}

type enrichStatusResponse struct {
	State model.RunState `json:"state"`
	Stats enrich.Stats   `json:"stats"`
}

type enrichKickResponse struct {
	Status   string         `json:"status"`
	Enqueued int            `json:"enqueued"`
	State    model.RunState `json:"state"`
}

func (c *Controller) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Controller) handleBoard(w http.ResponseWriter, _ *http.Request) {
	groups := c.session.Groups()
	state := c.session.Visibility()

	counts := make(map[string]int, len(groups))
	for _, item := range c.session.Items() {
		if id := model.GroupIDFor(groups, item.CategoryID); id != "" {
			counts[id]++
		}
	}

	resp := boardResponse{
		BoardID:          c.session.BoardID(),
		Groups:           make([]groupStatus, 0, len(groups)),
		IncludeDone:      state.IncludeDone,
		IncludeTemplates: state.IncludeTemplates,
	}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, groupStatus{
			ID:      g.ID,
			Name:    g.Name,
			Visible: state.Visible[g.ID],
			Items:   counts[g.ID],
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	resp := markersResponse{
		Markers: export.FeatureCollection(c.reconciler.Markers()),
		Bounds:  flattenBounds(c.reconciler.Bounds()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) handleGroupVisibility(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Visible == nil {
		errorJSON(w, http.StatusBadRequest, "visible is required")
		return
	}

	state, ok := c.session.SetGroupVisible(groupID, *req.Visible)
	if !ok {
		errorJSON(w, http.StatusNotFound, "unknown group")
		return
	}

	c.persistVisibility(r.Context(), state)
	c.Resync()
	writeJSON(w, http.StatusOK, state)
}

func (c *Controller) handlePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IncludeDone      *bool `json:"include_done"`
		IncludeTemplates *bool `json:"include_templates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IncludeDone == nil && req.IncludeTemplates == nil {
		errorJSON(w, http.StatusBadRequest, "nothing to update")
		return
	}

	var state model.VisibilityState
	if req.IncludeDone != nil {
		state = c.session.SetIncludeDone(*req.IncludeDone)
	}
	if req.IncludeTemplates != nil {
		state = c.session.SetIncludeTemplates(*req.IncludeTemplates)
	}

	c.persistVisibility(r.Context(), state)
	c.Resync()
	writeJSON(w, http.StatusOK, state)
}

func (c *Controller) handleEnrichKick(w http.ResponseWriter, _ *http.Request) {
	enqueued := c.queue.EnqueueAll(c.session.Items())

	if c.queue.Len() > 0 {
		go func() {
			if err := c.queue.Run(c.baseCtx); err != nil {
				zap.L().Warn("enrichment run stopped", zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusAccepted, enrichKickResponse{
		Status:   "accepted",
		Enqueued: enqueued,
		State:    c.queue.State(),
	})
}

func (c *Controller) handleEnrichStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, enrichStatusResponse{
		State: c.queue.State(),
		Stats: c.queue.Stats(),
	})
}

func (c *Controller) persistVisibility(ctx context.Context, state model.VisibilityState) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveVisibilityState(ctx, c.session.BoardID(), state); err != nil {
		zap.L().Warn("persisting visibility state failed",
			zap.String("board", c.session.BoardID()),
			zap.Error(err),
		)
	}
}

// flattenBounds converts reconciler bounds to the [minLng, minLat,
// maxLng, maxLat] wire form.
func flattenBounds(b *geom.Bounds) []float64 {
	if b == nil {
		return nil
	}
	return []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
}
