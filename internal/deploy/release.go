package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

// ReleaseUpdater replaces the worker artifact with the latest GitHub
// release asset. The previous artifact is backed up before every apply
// so a failed deployment can be rolled back.
type ReleaseUpdater struct {
	repository   selfupdate.Repository
	updater      *selfupdate.Updater
	artifactPath string
	refFile      string
	backup       *backupManager
	logger       *slog.Logger
}

// ReleaseOptions configures a ReleaseUpdater.
type ReleaseOptions struct {
	Repository   string // "owner/name" slug
	ArtifactPath string
	Prerelease   bool
	BackupDir    string // empty for the default cache location
}

// NewReleaseUpdater creates an updater fetching releases for the worker.
func NewReleaseUpdater(opts ReleaseOptions, logger *slog.Logger) (*ReleaseUpdater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	backup, err := newBackupManager(opts.BackupDir, logger)
	if err != nil {
		return nil, err
	}

	return &ReleaseUpdater{
		repository:   selfupdate.ParseSlug(opts.Repository),
		updater:      updater,
		artifactPath: opts.ArtifactPath,
		refFile:      opts.ArtifactPath + ".ref",
		backup:       backup,
		logger:       logger,
	}, nil
}

// CurrentRef returns the installed release version, or "unknown" when
// the artifact was never deployed through this updater.
func (r *ReleaseUpdater) CurrentRef(_ context.Context) (string, error) {
	data, err := os.ReadFile(r.refFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "unknown", nil
		}
		return "", fmt.Errorf("failed to read ref file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Apply downloads the latest release and installs it over the artifact.
func (r *ReleaseUpdater) Apply(ctx context.Context) (string, error) {
	release, found, err := r.updater.DetectLatest(ctx, r.repository)
	if err != nil {
		return "", fmt.Errorf("failed to check for releases: %w", err)
	}
	if !found {
		return "", fmt.Errorf("repository has no releases")
	}

	currentRef, _ := r.CurrentRef(ctx)
	if _, statErr := os.Stat(r.artifactPath); statErr == nil {
		if err := r.backup.createBackup(r.artifactPath, currentRef); err != nil {
			return "", fmt.Errorf("failed to back up artifact: %w", err)
		}
	}

	r.logger.Info("Applying release", "version", release.Version(), "path", r.artifactPath)
	if err := r.updater.UpdateTo(ctx, release, r.artifactPath); err != nil {
		return "", fmt.Errorf("failed to apply release: %w", err)
	}

	if err := r.writeRef(release.Version()); err != nil {
		return "", err
	}
	return release.Version(), nil
}

// Rollback restores the backed-up artifact. The ref argument is
// informational; the backup holds whatever was installed before Apply.
func (r *ReleaseUpdater) Rollback(_ context.Context, ref string) error {
	if !r.backup.hasBackup() {
		return fmt.Errorf("no backup available for rollback")
	}
	if err := r.backup.restore(); err != nil {
		return err
	}
	restored := r.backup.backupRef()
	if restored == "" {
		restored = ref
	}
	return r.writeRef(restored)
}

func (r *ReleaseUpdater) writeRef(ref string) error {
	if err := os.WriteFile(r.refFile, []byte(ref+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write ref file: %w", err)
	}
	return nil
}
