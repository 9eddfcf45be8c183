package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Coordinates is a resolved (latitude, longitude) pair in decimal degrees.
// Items carry a pointer so "no coordinates yet" stays distinct from a zero
// position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewCoordinates validates the pair. Non-finite values and values outside
// [-90,90] / [-180,180] are rejected.
func NewCoordinates(lat, lng float64) (Coordinates, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return Coordinates{}, eris.Errorf("coordinates: non-finite pair (%v, %v)", lat, lng)
	}
	if lat < -90 || lat > 90 {
		return Coordinates{}, eris.Errorf("coordinates: latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return Coordinates{}, eris.Errorf("coordinates: longitude %v out of range", lng)
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}

// String renders "lat,lng" with the shortest round-trippable precision.
// This is the wire format the board API accepts for coordinate writes.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Label is a board-assigned tag on an item. Label names drive marker styling.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Item is a unit of tracked work sourced from the board. Created by the
// board fetch; mutated only by the enrichment pipeline (coordinate
// assignment) or externally.
type Item struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Desc       string       `json:"desc"`
	CategoryID string       `json:"category_id"`
	Labels     []Label      `json:"labels,omitempty"`
	Coords     *Coordinates `json:"coords,omitempty"`
	Completed  bool         `json:"completed"`
	Template   bool         `json:"template"`
}

// HasLabel reports whether any of the item's labels matches name,
// case-insensitively.
func (it *Item) HasLabel(name string) bool {
	for _, l := range it.Labels {
		if strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

// NeedsCoordinates reports whether the item qualifies for the enrichment
// backlog: no coordinates and a non-empty description.
func (it *Item) NeedsCoordinates() bool {
	return it.Coords == nil && strings.TrimSpace(it.Desc) != ""
}
