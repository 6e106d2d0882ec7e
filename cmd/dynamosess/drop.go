package main

import (
	"fmt"

	"github.com/jjeffery/dynamosessions/dynamodbstore"
	"github.com/spf13/cobra"
)

var dropTableCmd = &cobra.Command{
	Use:   "drop-table",
	Short: "Delete the session table and every session in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := storeOptions(cfg)
		if err != nil {
			return err
		}
		provider, err := dynamodbstore.NewProvider(opts)
		if err != nil {
			return err
		}
		if err := provider.DropTable(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "table %s dropped\n", provider.TableName())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dropTableCmd)
}
