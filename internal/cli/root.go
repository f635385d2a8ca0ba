// Package cli defines the command-line interface: process and resume for
// direct runs, watch for folder automation, and serve for the HTTP service.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lecture-pipeline/internal/config"
	"lecture-pipeline/internal/llm"
	"lecture-pipeline/internal/pipeline"
	"lecture-pipeline/internal/transcribe"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "lecture-pipeline",
	Short:        "Turn long audio recordings into structured Markdown documents",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		logger = newLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process-wide structured logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newProcessor assembles the pipeline from the loaded configuration.
func newProcessor() (*pipeline.Processor, error) {
	client, err := llm.New(cfg)
	if err != nil {
		return nil, err
	}
	service := transcribe.NewService(func() (transcribe.Backend, error) {
		return transcribe.NewBackend(cfg)
	})
	return pipeline.NewProcessor(cfg, client, service, logger), nil
}

// runBatch applies fn to each file, reporting per-file results, and returns
// an error when any file failed.
func runBatch(cmd *cobra.Command, files []string, fn func(string) (string, error)) error {
	var failed int
	for _, file := range files {
		output, err := fn(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", file, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s → %s\n", file, output)
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}
