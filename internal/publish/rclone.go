package publish

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// CommandRunner runs an external command and returns its trimmed standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Rclone publishes with the rclone CLI: "rclone copy" followed by "rclone link".
type Rclone struct {
	remote string
	run    CommandRunner
	logger *zap.Logger
}

// RcloneOption configures an Rclone publisher.
type RcloneOption func(*Rclone)

// WithRunner replaces the command runner (used by tests).
func WithRunner(run CommandRunner) RcloneOption {
	return func(r *Rclone) { r.run = run }
}

// WithRcloneLogger sets a logger for command debug output.
func WithRcloneLogger(l *zap.Logger) RcloneOption {
	return func(r *Rclone) { r.logger = l }
}

// NewRclone returns a publisher for an rclone remote such as "remote:folder".
func NewRclone(remote string, opts ...RcloneOption) *Rclone {
	r := &Rclone{remote: remote, run: execCommand}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish implements Publisher.
func (r *Rclone) Publish(ctx context.Context, localPath string) (string, error) {
	if _, err := r.command(ctx, "copy", localPath, r.remote); err != nil {
		return "", err
	}
	target := strings.TrimRight(r.remote, "/") + "/" + filepath.Base(localPath)
	link, err := r.command(ctx, "link", target)
	if err != nil {
		return "", err
	}
	return link, nil
}

func (r *Rclone) command(ctx context.Context, args ...string) (string, error) {
	if r.logger != nil {
		r.logger.Debug("running rclone", zap.Strings("args", args))
	}
	return r.run(ctx, "rclone", args...)
}

func execCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command failed: %s %s: %w\n%s", name, strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}
