package hardware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandCamera captures stills by running an external capture tool that
// writes a JPEG to stdout (libcamera-still by default).
type CommandCamera struct {
	path    string
	args    []string
	warmup  time.Duration
	timeout time.Duration
}

// NewCommandCamera locates command on PATH. A missing binary means no
// camera stack is installed and is reported as ErrCameraNotFound.
func NewCommandCamera(command string, args []string, warmup, timeout time.Duration) (*CommandCamera, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCameraNotFound, command, err)
	}
	return &CommandCamera{
		path:    path,
		args:    captureArgs(args, warmup),
		warmup:  warmup,
		timeout: timeout,
	}, nil
}

// captureArgs appends the warm-up time, in milliseconds, as the tool's
// --timeout flag unless the caller set one.
func captureArgs(args []string, warmup time.Duration) []string {
	out := append([]string(nil), args...)
	for _, a := range out {
		if a == "-t" || a == "--timeout" || strings.HasPrefix(a, "--timeout=") {
			return out
		}
	}
	if warmup > 0 {
		out = append(out, "--timeout", strconv.FormatInt(warmup.Milliseconds(), 10))
	}
	return out
}

// Capture runs the capture tool and returns its stdout.
func (c *CommandCamera) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.warmup+c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if noCamera(stderr.String()) {
			return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, firstLine(stderr.String()))
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: capture timed out after %s", ErrCamera, c.warmup+c.timeout)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrCamera, err, firstLine(stderr.String()))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: capture produced no image", ErrCameraNotFound)
	}
	return stdout.Bytes(), nil
}

func noCamera(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no cameras available") || strings.Contains(s, "no camera")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
