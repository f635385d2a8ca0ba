package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// WhisperCLIBackend shells out to a local whisper helper that prints the
// transcript as JSON on stdout.
type WhisperCLIBackend struct {
	bin    string
	model  string
	device string
	runner commandRunner
}

// NewWhisperCLIBackend builds the local backend with OS process execution.
func NewWhisperCLIBackend(bin, model, device string) *WhisperCLIBackend {
	return &WhisperCLIBackend{
		bin:    bin,
		model:  model,
		device: device,
		runner: &execRunner{},
	}
}

// whisperOutput is the helper's JSON stdout contract.
type whisperOutput struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Transcribe runs the helper and replays its segments through onSegment.
func (b *WhisperCLIBackend) Transcribe(ctx context.Context, audioPath string, onSegment SegmentFn) (Transcript, error) {
	args := buildWhisperArgs(b.model, b.device, audioPath)

	result, runErr := b.runner.Run(ctx, b.bin, args...)
	if runErr != nil {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = runErr.Error()
		}
		return Transcript{}, fmt.Errorf("whisper helper failed (exit=%d): %s", result.ExitCode, detail)
	}

	var parsed whisperOutput
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}

	transcript := Transcript{
		Language:    parsed.Language,
		DurationSec: parsed.Duration,
	}
	for _, seg := range parsed.Segments {
		seg.Text = strings.TrimSpace(seg.Text)
		transcript.Segments = append(transcript.Segments, seg)
		if onSegment != nil {
			onSegment(seg, parsed.Duration)
		}
	}
	return transcript, nil
}

// buildWhisperArgs builds helper CLI args for JSON transcript output.
func buildWhisperArgs(model, device, audioPath string) []string {
	args := []string{
		"--audio", audioPath,
		"--model", model,
		"--output", "json",
	}
	if device != "" && !strings.EqualFold(device, "auto") {
		args = append(args, "--device", device)
	}
	return args
}
