package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/analysis"
	"github.com/sells-group/msi-cli/internal/export"
	"github.com/sells-group/msi-cli/internal/ingest"
)

var (
	runExportPath string
	runTop        int
)

var runCmd = &cobra.Command{
	Use:   "run <file.csv> [file.csv...]",
	Short: "Ingest activity exports and run the full signal analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, summary, err := ingest.NewReader(cfg.Ingest).ReadFiles(ctx, args)
		if err != nil {
			return err
		}
		zap.L().Info("ingest complete",
			zap.Int("files", summary.Files),
			zap.Int("parsed", summary.Parsed),
			zap.Int("dropped", summary.Dropped),
		)

		p := analysis.NewPipeline(cfg.Analysis, st)
		result, err := p.Run(ctx, sourceLabel(args), records, summary)
		if err != nil {
			return eris.Wrap(err, "analysis run")
		}

		if err := st.SaveResults(ctx, result.Run.ID, result.ResultSet); err != nil {
			return eris.Wrap(err, "save results")
		}

		if runExportPath != "" {
			if err := export.WriteWorkbook(runExportPath, result.ResultSet); err != nil {
				return err
			}
		}

		top := result.ResultSet.Hotspots
		if len(top) > runTop {
			top = top[:runTop]
		}

		out := struct {
			RunID      string `json:"run_id"`
			Aggregates int    `json:"aggregates"`
			Scores     int    `json:"scores"`
			Waves      int    `json:"waves"`
			Hotspots   int    `json:"hotspots"`
		}{
			RunID:      result.Run.ID,
			Aggregates: len(result.ResultSet.Aggregates),
			Scores:     len(result.ResultSet.Scores),
			Waves:      len(result.ResultSet.Waves),
			Hotspots:   len(result.ResultSet.Hotspots),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}

		if len(top) > 0 {
			formatHotspots(os.Stdout, top)
		}
		return nil
	},
}

// sourceLabel condenses the input file list into a short run source tag.
func sourceLabel(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}
	return paths[0] + " (+more)"
}

func init() {
	runCmd.Flags().StringVar(&runExportPath, "export", "", "also write an xlsx workbook to this path")
	runCmd.Flags().IntVar(&runTop, "top", 10, "number of top hotspots to print")
	rootCmd.AddCommand(runCmd)
}
