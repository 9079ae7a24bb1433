package export

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
)

// DBF attribute names. dBase limits names to ten characters.
const (
	FieldID       = "ID"
	FieldName     = "NAME"
	FieldCategory = "CATEGORY"
	FieldCreated  = "CREATED"
)

// textFieldLength is the dBase width of every text attribute.
const textFieldLength = 254

// shapefileParts are the sidecar extensions written next to the .shp file.
var shapefileParts = []string{".shp", ".shx", ".dbf"}

// ReadShapefile converts a POINT shapefile into a GeoJSON FeatureCollection.
// NAME, CATEGORY, ID and CREATED attributes map to the feature fields; other
// attributes become lower-cased properties. Non-point shapes are passed
// through with an empty geometry so the importer reports them.
func ReadShapefile(path string) ([]byte, error) {
	if err := checkHeader(path); err != nil {
		return nil, err
	}
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToUpper(strings.TrimRight(f.String(), "\x00"))
	}

	var candidates []map[string]any
	for reader.Next() {
		_, shape := reader.Shape()

		values := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			switch name {
			case FieldID:
				values["id"] = val
			case FieldName:
				values["name"] = val
			case FieldCategory:
				values["category"] = val
			case FieldCreated:
				values["created_at"] = val
			default:
				values[strings.ToLower(name)] = val
			}
		}

		c := candidate(values)
		if p, ok := shape.(*shp.Point); ok {
			c["geometry"] = map[string]any{"type": "Point", "coordinates": []any{p.X, p.Y}}
		} else {
			c["geometry"] = nil
		}
		candidates = append(candidates, c)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}
	return marshalCandidates(candidates)
}

// shpFileCode is the magic number opening every .shp header.
const shpFileCode = 9994

// checkHeader rejects files that do not start with a complete .shp header.
func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header := make([]byte, 100)
	if _, err := io.ReadFull(f, header); err != nil {
		return eris.Wrapf(err, "shapefile: %s has no header", path)
	}
	if code := binary.BigEndian.Uint32(header[:4]); code != shpFileCode {
		return eris.Errorf("shapefile: %s is not a shapefile (file code %d)", path, code)
	}
	return nil
}

// WriteShapefile writes features as a POINT shapefile at path (plus its
// .shx and .dbf sidecars).
func WriteShapefile(path string, features []feature.Feature) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", path)
	}
	defer w.Close()

	err = w.SetFields([]shp.Field{
		shp.StringField(FieldID, textFieldLength),
		shp.StringField(FieldName, textFieldLength),
		shp.StringField(FieldCategory, textFieldLength),
		shp.StringField(FieldCreated, 40),
	})
	if err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}

	for _, f := range features {
		c := f.Coordinates()
		row := int(w.Write(&shp.Point{X: c.Lon(), Y: c.Lat()}))
		attrs := []string{f.ID.String(), f.Name(), f.Category(), createdAt(f)}
		for field, value := range attrs {
			if err := w.WriteAttribute(row, field, value); err != nil {
				return eris.Wrapf(err, "shapefile: write attribute %d of row %d", field, row)
			}
		}
	}
	zap.L().Debug("shapefile: written", zap.String("path", path), zap.Int("features", len(features)))
	return nil
}

// WriteShapefileZip writes the shapefile parts into a zip archive on w.
func WriteShapefileZip(w io.Writer, features []feature.Feature) error {
	dir, err := os.MkdirTemp("", "poi-shp-*")
	if err != nil {
		return eris.Wrap(err, "shapefile: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	shpPath := filepath.Join(dir, DefaultBase+".shp")
	if err := WriteShapefile(shpPath, features); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, ext := range shapefileParts {
		if err := addToZip(zw, filepath.Join(dir, DefaultBase+ext)); err != nil {
			return err
		}
	}
	return eris.Wrap(zw.Close(), "shapefile: close zip")
}

// DecodeShapefileZip extracts a zipped shapefile and converts its first
// .shp layer with ReadShapefile. Directory prefixes inside the archive are
// ignored.
func DecodeShapefileZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: open zip")
	}

	dir, err := os.MkdirTemp("", "poi-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	var shpPath string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(entry.Name)
		dst := filepath.Join(dir, name)
		if err := extract(entry, dst); err != nil {
			return nil, err
		}
		if shpPath == "" && strings.EqualFold(filepath.Ext(name), ".shp") {
			shpPath = dst
		}
	}
	if shpPath == "" {
		return nil, eris.New("shapefile: archive contains no .shp file")
	}
	return ReadShapefile(shpPath)
}

func extract(entry *zip.File, dst string) error {
	rc, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "shapefile: open %s", entry.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", dst)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrapf(err, "shapefile: extract %s", entry.Name)
	}
	return eris.Wrapf(out.Close(), "shapefile: close %s", dst)
}

func addToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return eris.Wrapf(err, "shapefile: add %s to zip", path)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return eris.Wrapf(err, "shapefile: copy %s", path)
	}
	return nil
}

func createdAt(f feature.Feature) string {
	if f.CreatedAt.IsZero() {
		return ""
	}
	return f.CreatedAt.UTC().Format(time.RFC3339)
}
