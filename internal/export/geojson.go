package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/cardmap/cardmap-cli/internal/model"
)

// WriteGeoJSON writes markers as a GeoJSON FeatureCollection of points.
// Coordinates follow the GeoJSON axis order (longitude first).
func WriteGeoJSON(w io.Writer, marks []model.Marker) error {
	fc := FeatureCollection(marks)
	enc := json.NewEncoder(w)
	if err := enc.Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}

// FeatureCollection converts markers to a GeoJSON feature collection with
// one point feature per marker. Name, icon and color ride along as
// feature properties.
func FeatureCollection(marks []model.Marker) *geojson.FeatureCollection {
	features := make([]*geojson.Feature, 0, len(marks))
	for _, m := range marks {
		features = append(features, &geojson.Feature{
			ID:       m.ItemID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.Lng, m.Lat}),
			Properties: map[string]any{
				"name":  m.Name,
				"icon":  m.Icon,
				"color": m.Color,
			},
		})
	}
	return &geojson.FeatureCollection{Features: features}
}
