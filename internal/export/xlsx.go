package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/cardmap/cardmap-cli/internal/model"
)

var xlsxHeader = []string{"Item ID", "Name", "Latitude", "Longitude", "Icon", "Color"}

// WriteXLSX writes markers to an XLSX workbook with a single Markers sheet.
// The first row is a header.
func WriteXLSX(path string, marks []model.Marker) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Markers")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, name := range xlsxHeader {
		header.AddCell().SetString(name)
	}

	for _, m := range marks {
		row := sheet.AddRow()
		row.AddCell().SetString(m.ItemID)
		row.AddCell().SetString(m.Name)
		row.AddCell().SetFloat(m.Lat)
		row.AddCell().SetFloat(m.Lng)
		row.AddCell().SetString(m.Icon)
		row.AddCell().SetString(m.Color)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save xlsx %s", path)
	}
	return nil
}
