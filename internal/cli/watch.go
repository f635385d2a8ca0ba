package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lecture-pipeline/internal/pipeline"
	"lecture-pipeline/internal/watcher"
)

// watchDebounce lets a file finish copying in before processing starts.
const watchDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the input folder and process new audio files automatically",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, err := newProcessor()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		files, err := watcher.Start(ctx, watcher.Config{
			Dir:         cfg.InputDir,
			InitialScan: true,
			Debounce:    watchDebounce,
		}, logger)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s — press Ctrl+C to stop.\n", cfg.InputDir)
		for file := range files {
			output, err := proc.Process(ctx, file, pipeline.Options{})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", file, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s → %s\n", file, output)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
