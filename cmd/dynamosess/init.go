package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the session table if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("read-capacity") {
			cfg.ReadCapacityUnits, _ = flags.GetInt64("read-capacity")
		}
		if flags.Changed("write-capacity") {
			cfg.WriteCapacityUnits, _ = flags.GetInt64("write-capacity")
		}
		store, err := newStore(cmd, cfg, false)
		if err != nil {
			return err
		}
		defer store.ClearInterval()
		fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", cfg.Table)
		return nil
	},
}

func init() {
	initCmd.Flags().Int64("read-capacity", 0, "read capacity units for a new table")
	initCmd.Flags().Int64("write-capacity", 0, "write capacity units for a new table")
	rootCmd.AddCommand(initCmd)
}
