package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/cardmap/cardmap-cli/internal/markers"
	"github.com/cardmap/cardmap-cli/internal/model"
)

func testMarkers() []model.Marker {
	return []model.Marker{
		{ItemID: "card-1", Name: "Pike Place Market", Lat: 47.6097, Lng: -122.3422, Icon: "pin", Color: "blue"},
		{ItemID: "card-2", Name: "Gas Works Park", Lat: 47.6456, Lng: -122.3344, Icon: "check", Color: "green"},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Format
	}{
		{"geojson", FormatGeoJSON},
		{"json", FormatGeoJSON},
		{"xlsx", FormatXLSX},
		{"shp", FormatShapefile},
		{"shapefile", FormatShapefile},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseFormat("kml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestWriteGeoJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, testMarkers()))

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, "card-1", first.ID)
	assert.Equal(t, "Pike Place Market", first.Properties["name"])
	assert.Equal(t, "pin", first.Properties["icon"])
	assert.Equal(t, "blue", first.Properties["color"])

	pt, ok := first.Geometry.(*geom.Point)
	require.True(t, ok, "expected point geometry")
	assert.InDelta(t, -122.3422, pt.X(), 1e-9, "X should be longitude")
	assert.InDelta(t, 47.6097, pt.Y(), 1e-9, "Y should be latitude")
}

func TestWriteGeoJSON_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, nil))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.JSONEq(t, `"FeatureCollection"`, string(raw["type"]))
	assert.JSONEq(t, `[]`, string(raw["features"]), "empty set should encode an empty array")
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "markers.xlsx")
	require.NoError(t, WriteXLSX(path, testMarkers()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet["Markers"]
	require.True(t, ok, "expected a Markers sheet")
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	require.Len(t, header.Cells, 6)
	assert.Equal(t, "Item ID", header.Cells[0].String())
	assert.Equal(t, "Longitude", header.Cells[3].String())

	row := sheet.Rows[1]
	assert.Equal(t, "card-1", row.Cells[0].String())
	assert.Equal(t, "Pike Place Market", row.Cells[1].String())
	lat, err := row.Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 47.6097, lat, 1e-6)
	lng, err := row.Cells[3].Float()
	require.NoError(t, err)
	assert.InDelta(t, -122.3422, lng, 1e-6)
	assert.Equal(t, "pin", row.Cells[4].String())
	assert.Equal(t, "blue", row.Cells[5].String())
}

func TestWriteShapefile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "markers.shp")
	require.NoError(t, WriteShapefile(path, testMarkers()))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	fields := r.Fields()
	require.Len(t, fields, 4)
	assert.Equal(t, "ITEM_ID", strings.TrimRight(fields[0].String(), "\x00"))

	var got []model.Marker
	for r.Next() {
		_, shape := r.Shape()
		pt, ok := shape.(*shp.Point)
		require.True(t, ok, "expected point shape")
		got = append(got, model.Marker{
			ItemID: attribute(r, 0),
			Name:   attribute(r, 1),
			Icon:   attribute(r, 2),
			Color:  attribute(r, 3),
			Lat:    pt.Y,
			Lng:    pt.X,
		})
	}

	require.Len(t, got, 2)
	assert.Equal(t, "card-2", got[1].ItemID)
	assert.Equal(t, "Gas Works Park", got[1].Name)
	assert.Equal(t, "check", got[1].Icon)
	assert.InDelta(t, 47.6456, got[1].Lat, 1e-6)
	assert.InDelta(t, -122.3344, got[1].Lng, 1e-6)
}

// attribute reads a DBF attribute of the current record, trimming the
// fixed-width padding.
func attribute(r *shp.Reader, n int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(n), "\x00"))
}

func TestWrite_DispatchesGeoJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, Write(path, FormatGeoJSON, testMarkers()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Len(t, fc.Features, 2)
}

func TestFromItems(t *testing.T) {
	t.Parallel()

	items := []model.Item{
		{ID: "a", Name: "With coords", Coords: &model.Coordinates{Lat: 40.0, Lng: -75.0}},
		{ID: "b", Name: "No coords"},
		{ID: "c", Name: "Done", Completed: true, Coords: &model.Coordinates{Lat: 41.0, Lng: -74.0}},
	}

	marks := FromItems(items, markers.DefaultIconRules())
	require.Len(t, marks, 2, "items without coordinates are skipped")
	assert.Equal(t, "a", marks[0].ItemID)
	assert.Equal(t, "pin", marks[0].Icon)
	assert.Equal(t, "c", marks[1].ItemID)
	assert.Equal(t, "check", marks[1].Icon, "completed items keep the completion style")
}
