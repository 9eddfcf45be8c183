package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/cardmap/cardmap-cli/internal/model"
)

// WriteShapefile writes markers as an ESRI point shapefile. go-shp creates
// the companion .shx and .dbf files next to path. DBF field names are
// capped at ten characters by the format.
func WriteShapefile(path string, marks []model.Marker) (err error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("ITEM_ID", 64),
		shp.StringField("NAME", 128),
		shp.StringField("ICON", 32),
		shp.StringField("COLOR", 32),
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for i, m := range marks {
		w.Write(&shp.Point{X: m.Lng, Y: m.Lat})
		attrs := []string{m.ItemID, m.Name, m.Icon, m.Color}
		for j, val := range attrs {
			if err := w.WriteAttribute(i, j, val); err != nil {
				return eris.Wrapf(err, "export: write shapefile attribute %d/%d", i, j)
			}
		}
	}

	return nil
}
