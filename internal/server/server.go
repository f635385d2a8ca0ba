// Package server exposes the pipeline over HTTP: upload an audio file, follow
// its progress as a server-sent event stream, and download the result.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"lecture-pipeline/internal/config"
	"lecture-pipeline/internal/domain"
	"lecture-pipeline/internal/jobs"
	"lecture-pipeline/internal/pipeline"
)

// uploadLimit bounds request bodies; lecture recordings run long.
const uploadLimit = 1 << 30

// Processor runs the pipeline for one uploaded file.
type Processor interface {
	Process(ctx context.Context, audioPath string, opts pipeline.Options) (string, error)
}

// Server wires the HTTP routes to the job registry and the processor.
type Server struct {
	cfg       *config.Config
	registry  *jobs.Registry
	processor Processor
	logger    *slog.Logger
	app       *fiber.App
}

// New builds the server and registers its routes.
func New(cfg *config.Config, registry *jobs.Registry, processor Processor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		processor: processor,
		logger:    logger,
		app: fiber.New(fiber.Config{
			BodyLimit:             uploadLimit,
			DisableStartupMessage: true,
		}),
	}

	s.app.Post("/upload", s.handleUpload)
	s.app.Get("/status/:id", s.handleStatus)
	s.app.Get("/download/:id", s.handleDownload)
	return s
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("server.listen", "addr", s.cfg.ListenAddr)
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleUpload accepts an audio file, stores it under the input directory as
// <jobID><ext>, and starts processing in the background.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file field"})
	}
	if file.Filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing filename"})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !domain.IsAudioExt(ext) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unsupported file type: %s", ext),
		})
	}

	jobID := s.registry.Create(file.Filename)
	savePath := filepath.Join(s.cfg.InputDir, jobID+ext)
	if err := c.SaveFile(file, savePath); err != nil {
		s.logger.Error("server.upload.save_failed", "job", jobID, "error", err)
		// Terminate the job; nothing will ever process it.
		s.registry.Push(jobID, domain.Event{
			Status:  domain.JobStatusFailed,
			Message: "Failed to store upload",
			Error:   err.Error(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store upload"})
	}

	stem := strings.TrimSuffix(file.Filename, ext)
	title := pipeline.TitleFromStem(stem)
	s.logger.Info("server.upload", "job", jobID, "file", file.Filename)

	go s.runJob(jobID, savePath, title)

	return c.JSON(fiber.Map{"job_id": jobID, "filename": file.Filename})
}

// runJob executes the pipeline for one job, translating progress callbacks
// into registry events and pushing the terminal event at the end.
func (s *Server) runJob(jobID, audioPath, title string) {
	outputPath, err := s.processor.Process(context.Background(), audioPath, pipeline.Options{
		Title: title,
		OnProgress: func(status domain.JobStatus, message string, percent int) {
			s.registry.Push(jobID, domain.Event{Status: status, Message: message, Percent: percent})
		},
	})
	if err != nil {
		percent := 0
		if job, ok := s.registry.Get(jobID); ok {
			percent = job.Percent
		}
		s.registry.Push(jobID, domain.Event{
			Status:  domain.JobStatusFailed,
			Message: "Processing failed",
			Percent: percent,
			Error:   err.Error(),
		})
		return
	}

	s.registry.Push(jobID, domain.Event{
		Status:     domain.JobStatusDone,
		Message:    "Done. Ready to download.",
		Percent:    100,
		OutputPath: outputPath,
	})
}

// handleStatus streams the job's events as SSE: history replay first, then
// live events, with comment heartbeats on idle. The stream ends after the
// terminal event.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	sub, err := s.registry.Subscribe(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown job"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeatEvery := s.cfg.HeartbeatInterval
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		for {
			ev, heartbeat, ok := sub.Next(context.Background(), heartbeatEvery)
			if !ok {
				return
			}
			if heartbeat {
				// A comment line keeps proxies and clients alive without
				// surfacing as a message event.
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
			} else {
				payload, err := json.Marshal(ev)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}

// handleDownload serves the finished Markdown document, named after the
// originally uploaded file rather than the job ID.
func (s *Server) handleDownload(c *fiber.Ctx) error {
	job, ok := s.registry.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown job"})
	}
	if job.Status != domain.JobStatusDone {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "job not finished"})
	}

	outputPath := job.OutputPath
	if _, err := os.Stat(outputPath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "output file not found"})
	}

	stem := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.Download(outputPath, stem+".md")
}
