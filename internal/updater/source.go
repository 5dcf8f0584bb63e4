package updater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"
)

// Release is one published build.
type Release struct {
	Version     string
	Notes       string
	URL         string
	PublishedAt time.Time
	AssetSize   int
	// Newer is true when the release is ahead of the running version.
	Newer bool
}

// Source finds and installs releases.
type Source interface {
	Latest(ctx context.Context, current string) (Release, bool, error)
	Install(ctx context.Context, rel Release, exe string) error
}

// GitHubSource serves releases from a GitHub repository.
type GitHubSource struct {
	updater *selfupdate.Updater
	repo    selfupdate.Repository

	mu    sync.Mutex
	found map[string]*selfupdate.Release
}

// NewGitHubSource creates a source for the repository slug.
func NewGitHubSource(slug string, prerelease bool) (*GitHubSource, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	u, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}
	return &GitHubSource{
		updater: u,
		repo:    selfupdate.ParseSlug(slug),
		found:   make(map[string]*selfupdate.Release),
	}, nil
}

// Latest implements Source. Development builds are always outdated.
func (g *GitHubSource) Latest(ctx context.Context, current string) (Release, bool, error) {
	rel, found, err := g.updater.DetectLatest(ctx, g.repo)
	if err != nil || !found {
		return Release{}, found, err
	}

	g.mu.Lock()
	g.found[rel.Version()] = rel
	g.mu.Unlock()

	return Release{
		Version:     rel.Version(),
		Notes:       rel.ReleaseNotes,
		URL:         rel.URL,
		PublishedAt: rel.PublishedAt,
		AssetSize:   rel.AssetByteSize,
		Newer:       current == "dev" || rel.GreaterThan(current),
	}, true, nil
}

// Install implements Source. The release must have come from Latest.
func (g *GitHubSource) Install(ctx context.Context, rel Release, exe string) error {
	g.mu.Lock()
	found := g.found[rel.Version]
	g.mu.Unlock()
	if found == nil {
		return fmt.Errorf("release %s was not detected", rel.Version)
	}
	return g.updater.UpdateTo(ctx, found, exe)
}

// ExecutablePath is the running binary with symlinks resolved.
func ExecutablePath() (string, error) {
	return selfupdate.ExecutablePath()
}
