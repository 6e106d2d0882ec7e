package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd, false)
		if err != nil {
			return err
		}
		defer store.ClearInterval()

		sess, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("session %s not found", args[0])
		}
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
