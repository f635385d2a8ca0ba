package pipeline

import (
	"context"
	"log/slog"

	"lecture-pipeline/internal/config"
	"lecture-pipeline/internal/llm"
	"lecture-pipeline/internal/stage"
	"lecture-pipeline/internal/textsplit"
)

// Structurer runs LLM pass 2: convert cleaned text into structured Markdown.
// All content is preserved; no summarisation.
type Structurer struct {
	llm    llm.Client
	cfg    *config.Config
	logger *slog.Logger
}

// NewStructurer builds the pass-2 stage wrapper.
func NewStructurer(client llm.Client, cfg *config.Config, logger *slog.Logger) *Structurer {
	return &Structurer{llm: client, cfg: cfg, logger: logger}
}

// Structure splits the cleaned text into chunks, structures each with
// per-chunk checkpoints under cacheDir, and prepends the title header.
func (s *Structurer) Structure(ctx context.Context, cleanText, title, cacheDir string, onChunk stage.ProgressFn) (string, error) {
	chunks := textsplit.Split(cleanText, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	s.logger.Info("pipeline.structure.start", "chunks", len(chunks))

	runner := &stage.Runner{
		CacheDir: cacheDir,
		Prefix:   "struct",
		Retry:    llmRetryPolicy(s.cfg, s.logger),
		Logger:   s.logger,
	}
	body, err := runner.Run(ctx, chunks, s.structureChunk, onChunk)
	if err != nil {
		return "", err
	}

	if title != "" {
		return "# " + title + "\n\n" + body, nil
	}
	return body, nil
}

func (s *Structurer) structureChunk(ctx context.Context, chunk, prior string) (string, error) {
	return s.llm.Call(ctx, llm.Request{
		System:      llm.StructurePrompt,
		User:        withHint(prior, "Text to structure", chunk),
		MaxTokens:   4096,
		Temperature: 0.3,
	})
}
