package export

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/poi-cli/internal/feature"
)

// SheetName is the worksheet holding exported points.
const SheetName = "POIs"

// Columns is the header row of exported workbooks.
var Columns = []string{"id", "name", "category", "longitude", "latitude", "created_at"}

// WriteXLSX writes features as a single-sheet workbook.
func WriteXLSX(w io.Writer, features []feature.Feature) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}

	for _, ft := range features {
		row := sheet.AddRow()
		c := ft.Coordinates()
		row.AddCell().SetString(ft.ID.String())
		row.AddCell().SetString(ft.Name())
		row.AddCell().SetString(ft.Category())
		row.AddCell().SetFloat(c.Lon())
		row.AddCell().SetFloat(c.Lat())
		row.AddCell().SetString(createdAt(ft))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// ReadXLSX converts the first sheet of a workbook file into a GeoJSON
// FeatureCollection. See DecodeXLSX.
func ReadXLSX(path string) ([]byte, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return sheetCandidates(f)
}

// DecodeXLSX converts the first sheet of an in-memory workbook into a
// GeoJSON FeatureCollection. The first row names the columns; id, name,
// category, longitude, latitude and created_at are recognised in any order
// and any other column becomes a property. Values are passed through
// unvalidated so that the importer reports bad rows.
func DecodeXLSX(data []byte) ([]byte, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	return sheetCandidates(f)
}

func sheetCandidates(f *xlsx.File) ([]byte, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return marshalCandidates(nil)
	}

	header := rowToStrings(sheet.Rows[0])
	candidates := make([]map[string]any, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if blank(cells) {
			continue
		}
		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(cells) {
				values[strings.ToLower(strings.TrimSpace(name))] = cells[i]
			}
		}
		candidates = append(candidates, candidate(values))
	}
	return marshalCandidates(candidates)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// candidate builds an untyped GeoJSON feature from named column values.
func candidate(values map[string]string) map[string]any {
	props := map[string]any{}
	for k, v := range values {
		switch k {
		case "id", "longitude", "latitude", "created_at":
		default:
			props[k] = v
		}
	}
	out := map[string]any{
		"type": feature.TypeFeature,
		"geometry": map[string]any{
			"type":        feature.TypePoint,
			"coordinates": []any{number(values["longitude"]), number(values["latitude"])},
		},
		"properties": props,
	}
	if id := strings.TrimSpace(values["id"]); id != "" {
		out["id"] = id
	}
	if ts := strings.TrimSpace(values["created_at"]); ts != "" {
		out[feature.PropCreatedAt] = ts
	}
	return out
}

// number returns s as a float when it parses, otherwise the raw text.
func number(s string) any {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

func marshalCandidates(candidates []map[string]any) ([]byte, error) {
	if candidates == nil {
		candidates = []map[string]any{}
	}
	data, err := json.Marshal(map[string]any{
		"type":     feature.TypeFeatureCollection,
		"features": candidates,
	})
	return data, eris.Wrap(err, "export: encode candidates")
}
