package exec

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRunner(timeout time.Duration) *Runner {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewRunner(Config{Logger: &logger, Timeout: timeout})
}

func TestUnsupportedLanguage(t *testing.T) {
	r := newTestRunner(0)

	result := r.Run(context.Background(), "puts 1", "ruby")
	if result.Error == "" {
		t.Fatal("unsupported language must yield an error result")
	}
	if result.Output != "" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestPythonRun(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	r := newTestRunner(0)

	result := r.Run(context.Background(), "print(2 + 2)", "python")
	if result.Error != "" {
		t.Fatalf("unexpected error: %q", result.Error)
	}
	if strings.TrimSpace(result.Output) != "4" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestPythonRuntimeErrorIsData(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	r := newTestRunner(0)

	result := r.Run(context.Background(), "raise ValueError('boom')", "python")
	if !strings.Contains(result.Error, "ValueError") {
		t.Fatalf("expected the traceback in the error field, got %q", result.Error)
	}
}

func TestRunTimeout(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	r := newTestRunner(200 * time.Millisecond)

	result := r.Run(context.Background(), "import time; time.sleep(5)", "python")
	if result.Error != "execution timed out" {
		t.Fatalf("expected timeout error, got %q", result.Error)
	}
}
