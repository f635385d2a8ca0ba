package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"lecture-pipeline/internal/config"
	"lecture-pipeline/internal/llm"
	"lecture-pipeline/internal/retry"
	"lecture-pipeline/internal/stage"
	"lecture-pipeline/internal/textsplit"
)

// hintChars is how much of the previous chunk's result grounds the next call.
const hintChars = 300

// Cleaner runs LLM pass 1: correct STT output — punctuation, filler removal,
// mis-recognitions. It never summarises or restructures.
type Cleaner struct {
	llm    llm.Client
	cfg    *config.Config
	logger *slog.Logger
}

// NewCleaner builds the pass-1 stage wrapper.
func NewCleaner(client llm.Client, cfg *config.Config, logger *slog.Logger) *Cleaner {
	return &Cleaner{llm: client, cfg: cfg, logger: logger}
}

// Clean splits the raw transcript into chunks and corrects each, with
// per-chunk checkpoints under cacheDir.
func (c *Cleaner) Clean(ctx context.Context, sttText, cacheDir string, onChunk stage.ProgressFn) (string, error) {
	chunks := textsplit.Split(sttText, c.cfg.ChunkSize, c.cfg.ChunkOverlap)
	c.logger.Info("pipeline.clean.start", "chunks", len(chunks))

	runner := &stage.Runner{
		CacheDir: cacheDir,
		Prefix:   "clean",
		Retry:    llmRetryPolicy(c.cfg, c.logger),
		Logger:   c.logger,
	}
	return runner.Run(ctx, chunks, c.cleanChunk, onChunk)
}

func (c *Cleaner) cleanChunk(ctx context.Context, chunk, prior string) (string, error) {
	return c.llm.Call(ctx, llm.Request{
		System:      llm.CleanupPrompt,
		User:        withHint(prior, "Text to correct", chunk),
		MaxTokens:   4096,
		Temperature: 0.2,
	})
}

// withHint prefixes the chunk with the previous result's tail so the model
// keeps context across chunk boundaries.
func withHint(prior, label, chunk string) string {
	hint := textsplit.ContinuationHint(prior, hintChars)
	if hint == "" {
		return chunk
	}
	return fmt.Sprintf("[Previous context hint:]\n%s\n\n[%s:]\n%s", hint, label, chunk)
}

// llmRetryPolicy builds the shared back-off policy for model calls.
func llmRetryPolicy(cfg *config.Config, logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		MinWait:     cfg.RetryMinWait,
		MaxWait:     cfg.RetryMaxWait,
		Retryable:   llm.IsTransient,
		Logger:      logger,
	}
}
