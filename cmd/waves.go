package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var wavesFormat string

var wavesCmd = &cobra.Command{
	Use:   "waves [run-id]",
	Short: "Show the wave patterns of a run",
	Long:  "Prints the detected wave patterns of the given run in score order, or of the most recent run when no run id is given.",
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

		waves, err := st.GetWaves(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "get waves")
		}

		if wavesFormat == "table" {
			formatWaves(os.Stdout, waves)
			return nil
		}
		return writeOut(waves, wavesFormat)
	},
}

func init() {
	wavesCmd.Flags().StringVar(&wavesFormat, "format", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(wavesCmd)
}
