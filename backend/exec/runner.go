package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultRunTimeout = 10 * time.Second
)

// Runner executes candidate code in a subprocess. The result is always
// expressed as {output, error} — a failed run is data, not a Go error,
// because it gets relayed to the peer as-is.
type Runner struct {
	logger  zerolog.Logger
	timeout time.Duration
}

type Config struct {
	Logger  *zerolog.Logger
	Timeout time.Duration
}

func NewRunner(cfg Config) *Runner {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRunTimeout
	}
	return &Runner{
		logger:  cfg.Logger.With().Str("component", "runner").Logger(),
		timeout: timeout,
	}
}

func (r *Runner) Run(ctx context.Context, code, language string) model.ExecutionResult {
	var cmdName string
	var args []string
	switch language {
	case "python":
		cmdName, args = "python3", []string{"-c", code}
	case "javascript":
		cmdName, args = "node", []string{"-e", code}
	default:
		return model.ExecutionResult{
			Error: fmt.Sprintf("execution for %s is not supported", language),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, cmdName, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := model.ExecutionResult{
		Output: stdout.String(),
		Error:  stderr.String(),
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result.Error = "execution timed out"
		} else if result.Error == "" {
			result.Error = err.Error()
		}
		r.logger.Debug().Err(err).Str("language", language).Msg("run finished with error")
	}
	return result
}
