package cli

import (
	"github.com/spf13/cobra"

	"lecture-pipeline/internal/pipeline"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <file>...",
	Short: "Resume processing from the last incomplete stage",
	Long: `Resume processing from the last incomplete stage.

Intermediate artifacts (.stt.txt, .clean.txt, chunk caches) are reused when
present. A file already moved to the processed directory is found there by
its base name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, err := newProcessor()
		if err != nil {
			return err
		}
		return runBatch(cmd, args, func(file string) (string, error) {
			return proc.Resume(cmd.Context(), file, pipeline.Options{})
		})
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
