package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <id>...",
	Short: "Delete sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd, false)
		if err != nil {
			return err
		}
		defer store.ClearInterval()

		for _, id := range args {
			if err := store.Destroy(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "destroyed %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(destroyCmd)
}
