// Package pipeline drives the three-stage audio-to-document pipeline:
// transcribe, clean, structure. Each stage's artifact on disk doubles as its
// resume checkpoint, so a restarted run skips completed work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"lecture-pipeline/internal/config"
	"lecture-pipeline/internal/domain"
	"lecture-pipeline/internal/llm"
	"lecture-pipeline/internal/transcribe"
)

// ErrAudioNotFound is returned by Resume when neither the given path nor the
// processed directory holds the file.
var ErrAudioNotFound = errors.New("audio file not found")

// ProcessingError marks an unrecoverable failure for one file. The source
// file has already been moved to the failed directory when it surfaces.
type ProcessingError struct {
	File string
	Err  error
}

// Error names the file; the cause carries the stage detail.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("failed to process %s: %v", e.File, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ProgressFn receives status, human-readable message, and global percent.
type ProgressFn func(status domain.JobStatus, message string, percent int)

// Transcriber is the external speech-to-text collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, onSegment transcribe.SegmentFn) (transcribe.Transcript, error)
}

// Options tune one processing run.
type Options struct {
	// Title overrides the H1 header of the output document. Empty derives
	// it from the filename.
	Title string
	// OnProgress, when set, receives every progress update.
	OnProgress ProgressFn
}

// Processor orchestrates the full pipeline for one file at a time.
// It is safe for concurrent use across distinct files.
type Processor struct {
	cfg        *config.Config
	cleaner    *Cleaner
	structurer *Structurer
	trans      Transcriber
	logger     *slog.Logger
}

// NewProcessor wires the orchestrator with its collaborators.
func NewProcessor(cfg *config.Config, client llm.Client, trans Transcriber, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:        cfg,
		cleaner:    NewCleaner(client, cfg, logger),
		structurer: NewStructurer(client, cfg, logger),
		trans:      trans,
		logger:     logger,
	}
}

// Process runs the full pipeline for audioPath and returns the output
// document path. On success the source file moves to the processed
// directory; on failure it moves to the failed directory and a
// *ProcessingError is returned.
func (p *Processor) Process(ctx context.Context, audioPath string, opts Options) (string, error) {
	name := filepath.Base(audioPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	p.logger.Info("pipeline.start", "file", name)

	cb := func(status domain.JobStatus, message string, percent int) {
		if opts.OnProgress != nil {
			opts.OnProgress(status, message, percent)
		}
	}

	outputPath, err := p.runPipeline(ctx, audioPath, stem, opts.Title, cb)
	if err != nil {
		p.logger.Error("pipeline.failed", "file", name, "error", err)
		p.relocate(audioPath, p.cfg.FailedDir)
		return "", &ProcessingError{File: name, Err: err}
	}

	p.relocate(audioPath, p.cfg.ProcessedDir)
	p.logger.Info("pipeline.done", "file", name, "output", outputPath)
	return outputPath, nil
}

// Resume behaves like Process but first resolves a missing input against the
// processed directory, so files already moved by a prior success can re-run
// their remaining stages.
func (p *Processor) Resume(ctx context.Context, audioPath string, opts Options) (string, error) {
	if _, err := os.Stat(audioPath); err != nil {
		candidate := filepath.Join(p.cfg.ProcessedDir, filepath.Base(audioPath))
		if _, err := os.Stat(candidate); err != nil {
			return "", fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
		}
		audioPath = candidate
	}
	return p.Process(ctx, audioPath, opts)
}

// runPipeline executes the state machine: each stage is skipped when its
// artifact is already complete, otherwise runs and writes the artifact.
func (p *Processor) runPipeline(ctx context.Context, audioPath, stem, title string, cb ProgressFn) (string, error) {
	sttPath := filepath.Join(p.cfg.IntermediateDir, stem+".stt.txt")
	cleanPath := filepath.Join(p.cfg.IntermediateDir, stem+".clean.txt")
	outputPath := filepath.Join(p.cfg.OutputDir, stem+".md")

	// Stage 1: transcription.
	var sttText string
	if artifactComplete(sttPath) {
		p.logger.Info("pipeline.stage.skip", "stage", "transcribe", "artifact", sttPath)
		cb(domain.JobStatusTranscribing, "Reusing existing transcription", 35)
		data, err := os.ReadFile(sttPath)
		if err != nil {
			return "", fmt.Errorf("read transcription artifact: %w", err)
		}
		sttText = string(data)
	} else {
		cb(domain.JobStatusTranscribing, "Transcribing audio...", 5)
		text, err := p.transcribeStage(ctx, audioPath, sttPath, cb)
		if err != nil {
			return "", fmt.Errorf("transcribe: %w", err)
		}
		sttText = text
		p.logger.Info("pipeline.stage.done", "stage", "transcribe", "chars", len(sttText))
		cb(domain.JobStatusTranscribing, "Transcription finished", 35)
	}

	// Stage 2: LLM pass 1 — clean.
	var cleanText string
	if artifactComplete(cleanPath) {
		p.logger.Info("pipeline.stage.skip", "stage", "clean", "artifact", cleanPath)
		cb(domain.JobStatusCleaning, "Reusing cleaned text", 65)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("read clean artifact: %w", err)
		}
		cleanText = string(data)
	} else {
		cb(domain.JobStatusCleaning, "Cleaning text...", 40)
		text, err := p.cleaner.Clean(ctx, sttText,
			filepath.Join(p.cfg.IntermediateDir, stem+".clean_chunks"),
			func(done, total int) {
				pct := 40 + scale(done, total, 25)
				cb(domain.JobStatusCleaning, fmt.Sprintf("Cleaning text... (%d/%d chunks)", done, total), pct)
			})
		if err != nil {
			return "", fmt.Errorf("clean: %w", err)
		}
		if err := os.WriteFile(cleanPath, []byte(text), 0o644); err != nil {
			return "", fmt.Errorf("write clean artifact: %w", err)
		}
		cleanText = text
		p.logger.Info("pipeline.stage.done", "stage", "clean", "chars", len(cleanText))
		cb(domain.JobStatusCleaning, "Text cleanup finished", 65)
	}

	// Stage 3: LLM pass 2 — structure.
	if artifactComplete(outputPath) {
		p.logger.Info("pipeline.stage.skip", "stage", "structure", "artifact", outputPath)
		cb(domain.JobStatusStructuring, "Reusing structured document", 95)
	} else {
		cb(domain.JobStatusStructuring, "Structuring document...", 70)
		md, err := p.structurer.Structure(ctx, cleanText, deriveTitle(title, stem),
			filepath.Join(p.cfg.IntermediateDir, stem+".struct_chunks"),
			func(done, total int) {
				pct := 70 + scale(done, total, 25)
				cb(domain.JobStatusStructuring, fmt.Sprintf("Structuring document... (%d/%d chunks)", done, total), pct)
			})
		if err != nil {
			return "", fmt.Errorf("structure: %w", err)
		}
		if err := os.WriteFile(outputPath, []byte(md), 0o644); err != nil {
			return "", fmt.Errorf("write output document: %w", err)
		}
		p.logger.Info("pipeline.stage.done", "stage", "structure", "chars", len(md))
		cb(domain.JobStatusStructuring, "Document structuring finished", 95)
	}

	return outputPath, nil
}

// transcribeStage runs the external transcription, appending each segment to
// the artifact as it arrives so a partial transcript survives a shutdown.
// The returned text is byte-identical to the artifact, so a resumed run feeds
// the clean stage exactly what this run did.
func (p *Processor) transcribeStage(ctx context.Context, audioPath, sttPath string, cb ProgressFn) (string, error) {
	out, err := os.Create(sttPath)
	if err != nil {
		return "", fmt.Errorf("create transcription artifact: %w", err)
	}
	defer out.Close()

	var text strings.Builder
	start := time.Now()
	_, err = p.trans.Transcribe(ctx, audioPath, func(seg transcribe.Segment, totalSec float64) {
		line := seg.Text + "\n"
		_, _ = out.WriteString(line)
		_ = out.Sync()
		text.WriteString(line)

		if totalSec <= 0 {
			return
		}
		ratio := seg.EndSec / totalSec
		if ratio > 1 {
			ratio = 1
		}
		pct := 5 + int(ratio*30)
		cb(domain.JobStatusTranscribing,
			fmt.Sprintf("Transcribing audio... %s / %s (%s)",
				clock(seg.EndSec), clock(totalSec), estimateRemaining(start, seg.EndSec, totalSec)),
			pct)
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}

// relocate moves a source file best-effort; failure never changes the
// pipeline outcome.
func (p *Processor) relocate(audioPath, destDir string) {
	dest := filepath.Join(destDir, filepath.Base(audioPath))
	if err := os.Rename(audioPath, dest); err != nil {
		p.logger.Warn("pipeline.relocate.failed", "file", audioPath, "dest", dest, "error", err)
		return
	}
	p.logger.Info("pipeline.relocate", "file", filepath.Base(audioPath), "dest", destDir)
}

// artifactComplete reports whether path exists with non-zero size. This is
// the sole resume-decision signal; no manifest or checksum is kept.
func artifactComplete(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// scale maps done/total onto [0, span].
func scale(done, total, span int) int {
	if total <= 0 {
		return span
	}
	return done * span / total
}

// clock formats seconds as M:SS.
func clock(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// estimateRemaining projects time left from the processing speed so far.
func estimateRemaining(start time.Time, processedSec, totalSec float64) string {
	elapsed := time.Since(start).Seconds()
	if elapsed < 0.5 || processedSec <= 0 {
		return "estimating..."
	}
	speed := processedSec / elapsed
	remaining := (totalSec - processedSec) / speed
	if remaining >= 60 {
		return fmt.Sprintf("about %dm left", int(remaining/60))
	}
	return fmt.Sprintf("about %ds left", int(remaining))
}

// deriveTitle returns the explicit title, falling back to the filename stem.
func deriveTitle(title, stem string) string {
	if title != "" {
		return title
	}
	return TitleFromStem(stem)
}

// TitleFromStem turns a filename stem into a document title: separators
// become spaces and each word is capitalised.
func TitleFromStem(stem string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	words := strings.Fields(cleaned)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
