package cli

import (
	"github.com/spf13/cobra"

	"lecture-pipeline/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process <file>...",
	Short: "Process one or more audio files immediately",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, err := newProcessor()
		if err != nil {
			return err
		}
		return runBatch(cmd, args, func(file string) (string, error) {
			return proc.Process(cmd.Context(), file, pipeline.Options{})
		})
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
