// Package stage runs an ordered list of text chunks through an external
// computation with per-chunk checkpointing, so an interrupted run resumes
// with at most one repeated external call.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lecture-pipeline/internal/retry"
)

// ComputeFn performs one chunk's external call. prior carries the previous
// chunk's full result so implementations can build a continuation hint.
type ComputeFn func(ctx context.Context, chunk, prior string) (string, error)

// ProgressFn receives (done, total) after every handled chunk.
type ProgressFn func(done, total int)

// Runner executes chunks in order with caching and retry.
type Runner struct {
	// CacheDir holds one file per chunk; empty disables checkpointing.
	CacheDir string
	// Prefix names cache entries: <Prefix>.NNNN.txt.
	Prefix string
	Retry  retry.Policy
	Logger *slog.Logger
}

// Run processes every chunk, loading cached results where present and
// persisting fresh ones before the next chunk starts. The final result joins
// all chunk results with a blank line.
func (r *Runner) Run(ctx context.Context, chunks []string, compute ComputeFn, onProgress ProgressFn) (string, error) {
	total := len(chunks)
	log := r.log()

	if r.CacheDir != "" {
		if err := os.MkdirAll(r.CacheDir, 0o755); err != nil {
			return "", fmt.Errorf("create chunk cache dir: %w", err)
		}
	}

	results := make([]string, 0, total)
	prior := ""

	for i, chunk := range chunks {
		cachePath := r.cachePath(i)

		if cached, ok := readComplete(cachePath); ok {
			log.Debug("stage.chunk.cached", "prefix", r.Prefix, "chunk", i+1, "total", total)
			results = append(results, cached)
			prior = cached
			emitProgress(onProgress, i+1, total)
			continue
		}

		log.Debug("stage.chunk.compute", "prefix", r.Prefix, "chunk", i+1, "total", total, "chars", len(chunk))
		result, err := retry.Do(ctx, r.Retry, func() (string, error) {
			return compute(ctx, chunk, prior)
		})
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, total, err)
		}

		if cachePath != "" {
			// Persist before advancing so a crash loses at most this chunk.
			if err := os.WriteFile(cachePath, []byte(result), 0o644); err != nil {
				return "", fmt.Errorf("write chunk cache %s: %w", cachePath, err)
			}
		}

		results = append(results, result)
		prior = result
		emitProgress(onProgress, i+1, total)
	}

	return strings.Join(results, "\n\n"), nil
}

// cachePath returns the checkpoint file for chunk index i, or "" when
// checkpointing is disabled.
func (r *Runner) cachePath(i int) string {
	if r.CacheDir == "" {
		return ""
	}
	return filepath.Join(r.CacheDir, fmt.Sprintf("%s.%04d.txt", r.Prefix, i))
}

// readComplete loads a cache entry, treating missing or empty files as absent.
func readComplete(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func emitProgress(cb ProgressFn, done, total int) {
	if cb != nil {
		cb(done, total)
	}
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
