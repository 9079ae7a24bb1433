// Package export encodes the point collection into the download formats:
// indented GeoJSON, an XLSX workbook and an ESRI shapefile. The workbook and
// shapefile readers convert those formats back into GeoJSON for import.
package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-cli/internal/feature"
)

// Format is an export encoding.
type Format string

// Supported formats.
const (
	FormatGeoJSON   Format = "geojson"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
)

// DefaultBase is the export file name without extension.
const DefaultBase = "pois-export"

// ParseFormat maps a user supplied name to a Format. Empty means GeoJSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "geojson", "json":
		return FormatGeoJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "shp", "shapefile":
		return FormatShapefile, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Extension returns the file extension including the dot. Shapefiles
// streamed to a writer are zipped.
func (f Format) Extension() string {
	switch f {
	case FormatXLSX:
		return ".xlsx"
	case FormatShapefile:
		return ".zip"
	default:
		return ".geojson"
	}
}

// ContentType returns the MIME type of the streamed encoding.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatShapefile:
		return "application/zip"
	default:
		return "application/geo+json"
	}
}

// Filename returns base plus the format extension. An empty base uses
// DefaultBase.
func Filename(base string, f Format) string {
	if base == "" {
		base = DefaultBase
	}
	return base + f.Extension()
}

// Write streams features to w in format f.
func Write(w io.Writer, f Format, features []feature.Feature) error {
	switch f {
	case FormatGeoJSON:
		return WriteGeoJSON(w, features)
	case FormatXLSX:
		return WriteXLSX(w, features)
	case FormatShapefile:
		return WriteShapefileZip(w, features)
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// WriteGeoJSON writes features as an indented FeatureCollection.
func WriteGeoJSON(w io.Writer, features []feature.Feature) error {
	data, err := feature.MarshalIndent(features)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "export: write geojson")
}

// Decode converts an uploaded payload in format f into a GeoJSON
// FeatureCollection ready for import. Shapefiles are expected zipped.
func Decode(f Format, data []byte) ([]byte, error) {
	switch f {
	case FormatGeoJSON:
		return data, nil
	case FormatXLSX:
		return DecodeXLSX(data)
	case FormatShapefile:
		return DecodeShapefileZip(data)
	default:
		return nil, eris.Errorf("export: unknown format %q", f)
	}
}
