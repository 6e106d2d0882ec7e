package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete expired sessions",
	Long: `Delete every expired session carrying the configured prefix.

With --watch the sweep is repeated on the configured reap interval until the
process is interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		store, cfg, err := openStore(cmd, watch)
		if err != nil {
			return err
		}
		defer store.ClearInterval()

		if err := store.Reap(cmd.Context()); err != nil {
			return err
		}
		if !watch {
			fmt.Fprintln(cmd.OutOrStdout(), "reap complete")
			return nil
		}
		if cfg.ReapInterval < 0 {
			return fmt.Errorf("reap interval %v disables the sweep", cfg.ReapInterval)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "sweeping every %v\n", cfg.ReapInterval)
		<-ctx.Done()
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(cmd.OutOrStdout(), "stopped")
		}
		return nil
	},
}

func init() {
	reapCmd.Flags().Bool("watch", false, "keep sweeping until interrupted")
	rootCmd.AddCommand(reapCmd)
}
