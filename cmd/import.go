package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/export"
	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/points"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all points with the contents of a file",
	Long: "Reads a GeoJSON FeatureCollection, an XLSX workbook or a shapefile and replaces the stored points " +
		"with its valid features. Invalid features are reported and discarded.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		formatName, _ := cmd.Flags().GetString("format")
		if formatName == "" {
			formatName = formatFromPath(path)
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var result *feature.ImportResult
		if format == export.FormatGeoJSON {
			result, err = env.Points.ImportFile(ctx, path)
		} else {
			data, rerr := readConverted(format, path)
			if rerr != nil {
				return rerr
			}
			result, err = env.Points.Import(ctx, data)
		}
		if result == nil {
			return eris.Wrap(err, "import")
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Imported %d features, discarded %d\n", result.Imported, result.Discarded)
		for _, msg := range result.Errors {
			_, _ = fmt.Fprintf(out, "  %s\n", msg)
		}
		zap.L().Info("import complete",
			zap.String("file", path),
			zap.Int("imported", result.Imported),
			zap.Int("discarded", result.Discarded),
		)
		// A persist failure is reported after the summary; the import itself applied.
		return eris.Wrap(err, "import")
	},
}

// formatFromPath guesses the import format from the file extension.
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return string(export.FormatXLSX)
	case ".shp", ".zip":
		return string(export.FormatShapefile)
	default:
		return string(export.FormatGeoJSON)
	}
}

// readConverted reads an XLSX workbook or a shapefile (plain or zipped) and
// converts it to a FeatureCollection. A file that cannot be read wraps
// ErrRead; content that cannot be decoded wraps ErrParse.
func readConverted(format export.Format, path string) ([]byte, error) {
	if format == export.FormatShapefile && !strings.EqualFold(filepath.Ext(path), ".zip") {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(points.ErrRead, err.Error())
		}
		_ = f.Close()
		data, err := export.ReadShapefile(path)
		if err != nil {
			return nil, eris.Wrap(points.ErrParse, err.Error())
		}
		return data, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(points.ErrRead, err.Error())
	}
	data, err := export.Decode(format, raw)
	if err != nil {
		return nil, eris.Wrap(points.ErrParse, err.Error())
	}
	return data, nil
}

func init() {
	importCmd.Flags().String("format", "", "input format: geojson, xlsx or shp (default from file extension)")
	rootCmd.AddCommand(importCmd)
}
