package transcribe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"lecture-pipeline/internal/config"
)

// fakeRunner simulates helper process execution.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

const helperJSON = `{
	"language": "en",
	"duration": 120.5,
	"segments": [
		{"start": 0, "end": 4.2, "text": " Welcome to the lecture. "},
		{"start": 4.2, "end": 9.8, "text": "Today we cover graphs."}
	]
}`

// TestWhisperCLITranscribeParsesSegments checks JSON parsing and callbacks.
func TestWhisperCLITranscribeParsesSegments(t *testing.T) {
	var gotName string
	var gotArgs []string
	b := NewWhisperCLIBackend("whisper-transcribe", "large-v3", "auto")
	b.runner = &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			gotName = name
			gotArgs = append([]string{}, args...)
			return commandResult{Stdout: helperJSON}, nil
		},
	}

	var seen []Segment
	var totals []float64
	transcript, err := b.Transcribe(context.Background(), "lec01.mp3", func(seg Segment, total float64) {
		seen = append(seen, seg)
		totals = append(totals, total)
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if gotName != "whisper-transcribe" {
		t.Fatalf("command = %q", gotName)
	}
	if !hasArgPair(gotArgs, "--model", "large-v3") || !hasArgPair(gotArgs, "--audio", "lec01.mp3") {
		t.Fatalf("args = %v", gotArgs)
	}
	if hasArg(gotArgs, "--device") {
		t.Fatalf("auto device should not pass --device, args=%v", gotArgs)
	}

	if transcript.Language != "en" || transcript.DurationSec != 120.5 {
		t.Fatalf("transcript meta = %q/%v", transcript.Language, transcript.DurationSec)
	}
	if len(seen) != 2 || totals[0] != 120.5 {
		t.Fatalf("segments seen = %d, totals = %v", len(seen), totals)
	}
	if transcript.Text() != "Welcome to the lecture. Today we cover graphs." {
		t.Fatalf("text = %q", transcript.Text())
	}
}

// TestWhisperCLITranscribeExplicitDevice checks the --device flag passthrough.
func TestWhisperCLITranscribeExplicitDevice(t *testing.T) {
	b := NewWhisperCLIBackend("whisper-transcribe", "base", "cuda")
	var gotArgs []string
	b.runner = &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			gotArgs = append([]string{}, args...)
			return commandResult{Stdout: `{"language":"en","duration":1,"segments":[]}`}, nil
		},
	}

	if _, err := b.Transcribe(context.Background(), "a.wav", nil); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if !hasArgPair(gotArgs, "--device", "cuda") {
		t.Fatalf("args = %v", gotArgs)
	}
}

// TestWhisperCLITranscribeHelperFailure checks stderr surfaces in the error.
func TestWhisperCLITranscribeHelperFailure(t *testing.T) {
	b := NewWhisperCLIBackend("whisper-transcribe", "base", "auto")
	b.runner = &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{Stderr: "model file not found", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	_, err := b.Transcribe(context.Background(), "a.wav", nil)
	if err == nil || !strings.Contains(err.Error(), "model file not found") {
		t.Fatalf("err = %v, want helper stderr detail", err)
	}
}

// TestServiceBuildsOnceAndPropagatesBuildError checks lazy init semantics.
func TestServiceBuildsOnceAndPropagatesBuildError(t *testing.T) {
	builds := 0
	boom := errors.New("no model")
	s := NewService(func() (Backend, error) {
		builds++
		return nil, boom
	})

	for i := 0; i < 3; i++ {
		if _, err := s.Transcribe(context.Background(), "a.wav", nil); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
	}
	if builds != 1 {
		t.Fatalf("builds = %d, want 1", builds)
	}
}

// countingBackend records concurrent invocations.
type countingBackend struct {
	active  atomic.Int32
	overlap atomic.Bool
	calls   atomic.Int32
}

func (c *countingBackend) Transcribe(ctx context.Context, audioPath string, onSegment SegmentFn) (Transcript, error) {
	if c.active.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.active.Add(-1)
	c.calls.Add(1)
	return Transcript{}, nil
}

// TestServiceSerializesConcurrentJobs checks single-construction and mutual
// exclusion under concurrent first use.
func TestServiceSerializesConcurrentJobs(t *testing.T) {
	backend := &countingBackend{}
	builds := atomic.Int32{}
	s := NewService(func() (Backend, error) {
		builds.Add(1)
		return backend, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Transcribe(context.Background(), "a.wav", nil)
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Fatalf("builds = %d, want 1", builds.Load())
	}
	if backend.calls.Load() != 8 {
		t.Fatalf("calls = %d, want 8", backend.calls.Load())
	}
	if backend.overlap.Load() {
		t.Fatal("backend invoked concurrently; calls must serialize")
	}
}

// TestNewBackendSelection checks factory dispatch.
func TestNewBackendSelection(t *testing.T) {
	if _, err := NewBackend(&config.Config{TranscribeBackend: "whisper-cli", WhisperBin: "w", WhisperModel: "m"}); err != nil {
		t.Fatalf("whisper-cli: %v", err)
	}
	if _, err := NewBackend(&config.Config{TranscribeBackend: "openai", OpenAIKey: "k"}); err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, err := NewBackend(&config.Config{TranscribeBackend: "openai"}); err == nil {
		t.Fatal("openai without key should fail")
	}
	if _, err := NewBackend(&config.Config{TranscribeBackend: "siri"}); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

