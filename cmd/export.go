package main

import (
	"bytes"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all points to a file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		formatName, _ := cmd.Flags().GetString("format")
		if formatName == "" {
			formatName = cfg.Export.Format
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = export.Filename(cfg.Export.Filename, format)
		}

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		features := env.Points.Features()
		var buf bytes.Buffer
		if out == "-" {
			return export.Write(cmd.OutOrStdout(), format, features)
		}
		if err := export.Write(&buf, format, features); err != nil {
			return err
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", out)
		}

		zap.L().Info("export complete",
			zap.String("file", out),
			zap.String("format", string(format)),
			zap.Int("features", len(features)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "", "output format: geojson, xlsx or shp (default from config)")
	exportCmd.Flags().String("out", "", "output path, - for stdout (default <export.filename> plus extension)")
	rootCmd.AddCommand(exportCmd)
}
