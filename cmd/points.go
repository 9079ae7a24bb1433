package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/points"
)

// -- add --

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a point of interest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		lon, _ := cmd.Flags().GetFloat64("lon")
		lat, _ := cmd.Flags().GetFloat64("lat")
		name, _ := cmd.Flags().GetString("name")
		category, _ := cmd.Flags().GetString("category")

		f, err := env.Points.Add(ctx, feature.Coordinates{lon, lat}, points.Attributes{Name: name, Category: category})
		if err != nil {
			return eris.Wrap(err, "add")
		}

		zap.L().Info("point added", zap.String("id", f.ID.String()), zap.String("name", f.Name()))
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), f.ID.String())
		return nil
	},
}

// -- edit --

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change properties of a point",
	Long:  "Merges the given properties into a point. Geometry, id and creation time never change.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		id := args[0]
		if _, ok := env.Points.Get(id); !ok {
			return eris.Errorf("edit: feature %q not found", id)
		}

		name, _ := cmd.Flags().GetString("name")
		category, _ := cmd.Flags().GetString("category")
		set, _ := cmd.Flags().GetStringArray("set")

		attrs, err := editAttributes(name, category, set)
		if err != nil {
			return err
		}
		if len(attrs) == 0 {
			return eris.New("edit: nothing to change (use --name, --category or --set)")
		}

		if err := env.Points.Update(ctx, id, attrs); err != nil {
			return eris.Wrap(err, "edit")
		}
		zap.L().Info("point updated", zap.String("id", id), zap.Int("properties", len(attrs)))
		return nil
	},
}

// editAttributes builds the property patch of the edit command. --set
// values are parsed as JSON when possible and kept as text otherwise.
func editAttributes(name, category string, set []string) (feature.Properties, error) {
	attrs := feature.Properties{}
	for _, kv := range set {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, eris.Errorf("edit: --set %q must be key=value", kv)
		}
		attrs[strings.TrimSpace(key)] = propertyValue(raw)
	}
	if name != "" {
		attrs[feature.PropName] = name
	}
	if category != "" {
		attrs[feature.PropCategory] = category
	}
	return attrs, nil
}

func propertyValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

// -- remove --

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if _, ok := env.Points.Get(args[0]); !ok {
			_, _ = fmt.Fprintln(os.Stderr, "No such point.")
			return nil
		}
		if err := env.Points.Remove(ctx, args[0]); err != nil {
			return eris.Wrap(err, "remove")
		}
		zap.L().Info("point removed", zap.String("id", args[0]))
		return nil
	},
}

// -- list --

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List points, optionally filtered",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		search, _ := cmd.Flags().GetString("search")
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")

		env.Points.SetFilter(search, category)
		view := env.Points.View()

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		if len(view.Features) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No points found.")
			return nil
		}
		formatFeatureList(cmd.OutOrStdout(), view)
		return nil
	},
}

// -- show --

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a point as GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, ok := env.Points.Get(args[0])
		if !ok {
			return eris.Errorf("show: feature %q not found", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	},
}

// -- categories --

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List distinct categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, c := range env.Points.Categories() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

// -- clear --

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every point and the persisted state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return eris.New("clear: refusing to delete all points without --yes")
		}

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n := env.Points.Len()
		if err := env.Points.Clear(ctx); err != nil {
			return eris.Wrap(err, "clear")
		}
		zap.L().Info("points cleared", zap.Int("removed", n))
		return nil
	},
}

func init() {
	addCmd.Flags().Float64("lon", 0, "longitude in degrees (required)")
	addCmd.Flags().Float64("lat", 0, "latitude in degrees (required)")
	addCmd.Flags().String("name", "", "point name (required)")
	addCmd.Flags().String("category", "", "point category")
	_ = addCmd.MarkFlagRequired("lon")
	_ = addCmd.MarkFlagRequired("lat")
	_ = addCmd.MarkFlagRequired("name")

	editCmd.Flags().String("name", "", "new name")
	editCmd.Flags().String("category", "", "new category")
	editCmd.Flags().StringArray("set", nil, "extra property as key=value (repeatable, JSON values allowed)")

	listCmd.Flags().String("search", "", "case-insensitive name filter")
	listCmd.Flags().String("category", "", "case-insensitive category filter")
	listCmd.Flags().Bool("json", false, "print the filtered view as JSON")

	clearCmd.Flags().Bool("yes", false, "confirm deletion of every point")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(clearCmd)
}

// formatFeatureList writes a tabular list of features to out.
func formatFeatureList(out io.Writer, view feature.FilteredView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tLON\tLAT\tCREATED")
	for _, f := range view.Features {
		c := f.Coordinates()
		created := "-"
		if !f.CreatedAt.IsZero() {
			created = f.CreatedAt.UTC().Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%.6f\t%s\n",
			f.ID.String(), f.Name(), f.Category(), c.Lon(), c.Lat(), created)
	}
	_ = w.Flush()
	if view.Filtered != view.Total {
		_, _ = fmt.Fprintf(out, "\n%d of %d points\n", view.Filtered, view.Total)
	} else {
		_, _ = fmt.Fprintf(out, "\n%d points\n", view.Total)
	}
}
