package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// GitUpdater updates a worker checked out from git: fetch with a
// fast-forward pull, then run an optional install command (dependency
// install, build step) in the worker directory.
type GitUpdater struct {
	dir        string
	installCmd string
	logger     *slog.Logger
}

// NewGitUpdater creates an updater for the git checkout at dir.
// installCmd may be empty.
func NewGitUpdater(dir, installCmd string, logger *slog.Logger) *GitUpdater {
	return &GitUpdater{dir: dir, installCmd: installCmd, logger: logger}
}

// CurrentRef returns the HEAD commit hash.
func (g *GitUpdater) CurrentRef(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return out, nil
}

// Apply fast-forwards the checkout and runs the install command.
// Returns the new HEAD commit hash.
func (g *GitUpdater) Apply(ctx context.Context) (string, error) {
	g.logger.Info("Pulling worker repository", "dir", g.dir)
	if _, err := g.git(ctx, "pull", "--ff-only"); err != nil {
		return "", fmt.Errorf("git pull failed: %w", err)
	}
	if err := g.install(ctx); err != nil {
		return "", err
	}
	return g.CurrentRef(ctx)
}

// Rollback hard-resets the checkout to ref and reinstalls.
func (g *GitUpdater) Rollback(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("no previous ref to roll back to")
	}
	g.logger.Warn("Rolling back worker repository", "ref", ref)
	if _, err := g.git(ctx, "reset", "--hard", ref); err != nil {
		return fmt.Errorf("git reset failed: %w", err)
	}
	return g.install(ctx)
}

func (g *GitUpdater) install(ctx context.Context) error {
	if g.installCmd == "" {
		return nil
	}
	g.logger.Info("Running install command", "command", g.installCmd)
	cmd := exec.CommandContext(ctx, "sh", "-c", g.installCmd)
	cmd.Dir = g.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("install command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (g *GitUpdater) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
