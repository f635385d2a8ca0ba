// Package transcribe turns an audio file into timestamped text through a
// pluggable speech-to-text backend.
package transcribe

import (
	"context"
	"fmt"
	"strings"

	"lecture-pipeline/internal/config"
)

// Segment is one timestamped portion of transcribed audio.
type Segment struct {
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
	Text     string  `json:"text"`
}

// Transcript bundles all segments of one transcription run.
type Transcript struct {
	Language    string
	DurationSec float64
	Segments    []Segment
}

// Text joins all segment texts into the full transcript.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// SegmentFn receives each segment as it is produced, together with the total
// audio duration, so callers can report progress and persist partial output.
type SegmentFn func(seg Segment, totalSec float64)

// Backend is a pluggable speech-to-text engine.
type Backend interface {
	Transcribe(ctx context.Context, audioPath string, onSegment SegmentFn) (Transcript, error)
}

// NewBackend builds the configured backend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.TranscribeBackend {
	case "whisper-cli":
		return NewWhisperCLIBackend(cfg.WhisperBin, cfg.WhisperModel, cfg.WhisperDevice), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai transcription backend requires OPENAI_API_KEY")
		}
		return NewOpenAIBackend(cfg.OpenAIKey), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend: %q", cfg.TranscribeBackend)
	}
}
