package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/surface"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Render the points on a map and print the resulting view",
	Long: "Initializes the map with the configured style and viewport, pushes the filtered points, " +
		"frames them and prints the map state as JSON. --select opens the popup of a point.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPoints(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		search, _ := cmd.Flags().GetString("search")
		category, _ := cmd.Flags().GetString("category")
		selectID, _ := cmd.Flags().GetString("select")
		env.Points.SetFilter(search, category)

		ms, loop, err := initMap(env.Points, cfg.Server.Container)
		if err != nil {
			return eris.Wrap(err, "init map")
		}
		defer ms.Destroy()

		if selectID != "" {
			if err := ms.Select(selectID); err != nil {
				return err
			}
			loop.Flush()
		}

		view := struct {
			State   mapsync.State     `json:"state"`
			Surface *surface.Snapshot `json:"surface,omitempty"`
		}{State: ms.State()}
		if h, ok := ms.Surface().(*surface.Headless); ok {
			snap := h.Snapshot()
			view.Surface = &snap
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

func init() {
	mapCmd.Flags().String("search", "", "case-insensitive name filter")
	mapCmd.Flags().String("category", "", "case-insensitive category filter")
	mapCmd.Flags().String("select", "", "id of a point to select")
	rootCmd.AddCommand(mapCmd)
}
