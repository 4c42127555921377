package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	hotspotsTop    int
	hotspotsFormat string
)

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots [run-id]",
	Short: "Show the hotspot ranking of a run",
	Long:  "Prints the composite hotspot ranking of the given run, or of the most recent run when no run id is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := resolveRun(ctx, st, args)
		if err != nil {
			return err
		}

		hotspots, err := st.GetHotspots(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "get hotspots")
		}
		if hotspotsTop > 0 && len(hotspots) > hotspotsTop {
			hotspots = hotspots[:hotspotsTop]
		}

		if hotspotsFormat == "table" {
			formatHotspots(os.Stdout, hotspots)
			return nil
		}
		return writeOut(hotspots, hotspotsFormat)
	},
}

func init() {
	hotspotsCmd.Flags().IntVar(&hotspotsTop, "top", 20, "number of hotspots to show (0 for all)")
	hotspotsCmd.Flags().StringVar(&hotspotsFormat, "format", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(hotspotsCmd)
}
