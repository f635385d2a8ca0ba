package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// TestRunBatchReportsPerFile verifies ✓/✗ lines and the aggregate error.
func TestRunBatchReportsPerFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := runBatch(cmd, []string{"a.mp3", "b.mp3", "c.mp3"}, func(file string) (string, error) {
		if file == "b.mp3" {
			return "", errors.New("boom")
		}
		return "out/" + file + ".md", nil
	})
	if err == nil || !strings.Contains(err.Error(), "1 file(s) failed") {
		t.Fatalf("err = %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "✓ a.mp3 → out/a.mp3.md") || !strings.Contains(out, "✓ c.mp3 → out/c.mp3.md") {
		t.Fatalf("stdout = %q", out)
	}
	if got := stderr.String(); !strings.Contains(got, "✗ b.mp3: boom") {
		t.Fatalf("stderr = %q", got)
	}
}

// TestRunBatchAllOK verifies the no-failure case returns nil.
func TestRunBatchAllOK(t *testing.T) {
	var stdout bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)

	if err := runBatch(cmd, []string{"a.mp3"}, func(string) (string, error) {
		return "out/a.md", nil
	}); err != nil {
		t.Fatalf("err = %v", err)
	}
}

// TestNewLoggerLevelFallback verifies unknown levels fall back to info.
func TestNewLoggerLevelFallback(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if newLogger(level) == nil {
			t.Fatalf("newLogger(%q) returned nil", level)
		}
	}
}
