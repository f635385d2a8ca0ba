package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lecture-pipeline/internal/jobs"
	"lecture-pipeline/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service: upload, SSE progress, download",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, err := newProcessor()
		if err != nil {
			return err
		}
		registry := jobs.NewRegistry(logger)
		srv := server.New(cfg, registry, proc, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			logger.Info("server.shutdown")
			_ = srv.Shutdown()
		}()

		return srv.Listen()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
