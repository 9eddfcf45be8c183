// Package export writes marker sets to interchange formats: GeoJSON for
// web maps, XLSX for spreadsheets, and ESRI shapefiles for GIS tools.
package export

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/cardmap/cardmap-cli/internal/markers"
	"github.com/cardmap/cardmap-cli/internal/model"
)

// Format identifies an export file format.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "geojson", "json":
		return FormatGeoJSON, nil
	case "xlsx":
		return FormatXLSX, nil
	case "shp", "shapefile":
		return FormatShapefile, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want geojson, xlsx or shp)", s)
	}
}

// Write writes markers to path in the given format.
func Write(path string, format Format, marks []model.Marker) error {
	switch format {
	case FormatGeoJSON:
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		if err := WriteGeoJSON(f, marks); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrapf(f.Close(), "export: close %s", path)
	case FormatXLSX:
		return WriteXLSX(path, marks)
	case FormatShapefile:
		return WriteShapefile(path, marks)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// FromItems builds a marker for every item that has coordinates, ignoring
// group visibility and the done/template toggles. Board order is kept.
func FromItems(items []model.Item, rules markers.IconRules) []model.Marker {
	out := make([]model.Marker, 0, len(items))
	for _, item := range items {
		if item.Coords == nil {
			continue
		}
		style := rules.StyleFor(item)
		out = append(out, model.Marker{
			ItemID: item.ID,
			Name:   item.Name,
			Lat:    item.Coords.Lat,
			Lng:    item.Coords.Lng,
			Icon:   style.Icon,
			Color:  style.Color,
		})
	}
	return out
}
