package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.yaml with the current effective configuration",
	Long:  "Writes the effective configuration (defaults merged with environment overrides) to config.yaml as a starting point for customization.",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if _, err := os.Stat(path); err == nil && !initForce {
			return eris.Errorf("%s already exists (use --force to overwrite)", path)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}

		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
