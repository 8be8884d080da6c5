package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"originware/guardrail/pkg/rule"
)

// GitConfig configures a git-backed pack source.
type GitConfig struct {
	// URL is the repository to clone.
	URL string
	// Branch is the branch to track.
	// Default: main
	Branch string
	// Path is the pack directory inside the repository.
	// Default: the repository root
	Path string
	// LocalPath is where the repository is cloned.
	// Default: a guardrail-packs directory under the OS temp dir
	LocalPath string
	// Token is an optional access token for HTTPS authentication.
	Token string
	// PollInterval is how often Poll pulls the remote.
	// Default: 1m
	PollInterval time.Duration
	// FetchTimeout bounds each clone and pull.
	// Default: 30s
	FetchTimeout time.Duration
}

func (c *GitConfig) applyDefaults() {
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.LocalPath == "" {
		c.LocalPath = filepath.Join(os.TempDir(), "guardrail-packs")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

// GitStore serves rule sets from pack files tracked in a git repository.
// The checkout is refreshed by polling; rule changes ship as commits and
// take effect without a redeploy. The store is read-only: SaveRule is an
// error, edits happen through review on the rule repository.
type GitStore struct {
	config  GitConfig
	logger  *slog.Logger
	metrics *Metrics

	mu    sync.Mutex
	repo  *gogit.Repository
	files *FileStore
}

// NewGitStore clones (or opens) the configured repository and loads its
// packs. Metrics may be nil.
func NewGitStore(ctx context.Context, config GitConfig, logger *slog.Logger, metrics *Metrics) (*GitStore, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("git pack source requires a repository URL")
	}
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default().With("component", "repository")
	}

	s := &GitStore{config: config, logger: logger, metrics: metrics}
	if err := s.clone(ctx); err != nil {
		return nil, err
	}

	files, err := NewFileStore(s.packDir(), logger, metrics)
	if err != nil {
		return nil, err
	}
	s.files = files

	head, err := s.head()
	if err != nil {
		return nil, err
	}
	logger.Info("git pack source ready",
		"url", config.URL,
		"branch", config.Branch,
		"commit", head)
	return s, nil
}

// clone clones the repository, or opens an existing checkout left by a
// previous run.
func (s *GitStore) clone(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing checkout: %w", err)
		}
		s.repo = repo
		return nil
	}

	if err := os.MkdirAll(s.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, s.config.LocalPath, false, &gogit.CloneOptions{
		URL:           s.config.URL,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Depth:         1,
		Auth:          s.auth(),
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", s.config.URL, err)
	}
	s.repo = repo
	return nil
}

// Pull fetches the tracked branch and reloads the packs when the head
// moved. It returns true when new commits were applied.
func (s *GitStore) Pull(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.head()
	if err != nil {
		return false, err
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName: "origin",
		Auth:       s.auth(),
	})
	if err == gogit.NoErrAlreadyUpToDate {
		return false, nil
	}
	if err != nil {
		s.metrics.RecordReload("git", "error")
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	after, err := s.head()
	if err != nil {
		return false, err
	}
	if before == after {
		return false, nil
	}

	s.logger.Info("rule pack repository advanced", "from", before, "to", after)
	if err := s.files.Reload(); err != nil {
		// The checkout moved but its packs are broken; FileStore kept
		// the previous index, so keep serving that.
		return false, err
	}
	s.metrics.RecordReload("git", "ok")
	return true, nil
}

// Poll pulls on the configured interval until the context is cancelled.
// Pull failures are logged and polling continues.
func (s *GitStore) Poll(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info("git pack polling started",
		"interval", s.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("git pack polling stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Pull(ctx); err != nil {
				s.logger.Error("git pack pull failed, keeping previous packs", "error", err)
			}
		}
	}
}

// GetRuleSet implements Repository.
func (s *GitStore) GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error) {
	return s.files.GetRuleSet(ctx, ruleType, area)
}

// SaveRule implements Repository.
func (s *GitStore) SaveRule(ctx context.Context, def rule.Definition) error {
	return fmt.Errorf("git store %s: %w", s.config.URL, ErrReadOnly)
}

// ListAreas implements Repository.
func (s *GitStore) ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error) {
	return s.files.ListAreas(ctx, ruleType)
}

func (s *GitStore) packDir() string {
	if s.config.Path == "" {
		return s.config.LocalPath
	}
	return filepath.Join(s.config.LocalPath, s.config.Path)
}

func (s *GitStore) head() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// auth returns HTTPS token auth when a token is configured, nil
// otherwise. The username is ignored by token-accepting hosts.
func (s *GitStore) auth() transport.AuthMethod {
	if s.config.Token == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "git",
		Password: s.config.Token,
	}
}
