package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/msi-cli/internal/export"
	"github.com/sells-group/msi-cli/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a run's result tables to an xlsx workbook",
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

		rs := &model.ResultSet{Ingest: run.Ingest}
		if rs.Aggregates, err = st.GetAggregates(ctx, run.ID); err != nil {
			return eris.Wrap(err, "get aggregates")
		}
		if rs.Scores, err = st.GetScores(ctx, run.ID); err != nil {
			return eris.Wrap(err, "get scores")
		}
		if rs.Waves, err = st.GetWaves(ctx, run.ID); err != nil {
			return eris.Wrap(err, "get waves")
		}
		if rs.Hotspots, err = st.GetHotspots(ctx, run.ID); err != nil {
			return eris.Wrap(err, "get hotspots")
		}

		path := exportOut
		if path == "" {
			path = cfg.Export.Path
		}
		return export.WriteWorkbook(path, rs)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default from config)")
	rootCmd.AddCommand(exportCmd)
}
