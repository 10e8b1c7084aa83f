package sorter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// CommandError carries a failed sorter invocation together with the tail of
// its stderr, which is what the run summary shows for the session.
type CommandError struct {
	Cmd    string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Cmd, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

const stderrTailLines = 10

// execute runs the sorter argv. When verbose, stderr is tee'd to the
// terminal in real time; otherwise it is captured silently and only the
// tail is surfaced on failure. A sorting run can take tens of minutes, so
// the context is wired straight into the process.
func execute(ctx context.Context, argv []string, verbose bool) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stderrBuf bytes.Buffer
	if verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
		cmd.Stdout = os.Stdout
	} else {
		cmd.Stderr = &stderrBuf
	}

	if err := cmd.Run(); err != nil {
		return &CommandError{
			Cmd:    argv[0],
			Err:    err,
			Stderr: stderrTail(stderrBuf.String()),
		}
	}
	return nil
}

func stderrTail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	lines := strings.Split(stderr, "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, " | ")
}
