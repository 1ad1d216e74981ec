package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
)

// GitSource keeps an Engine's rulebook in sync with a file in a Git
// repository maintained by the compliance team.
type GitSource struct {
	cfg    config.GitRulesConfig
	engine *Engine
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
	head string
}

// NewGitSource creates a GitSource. Call Sync to clone and load.
func NewGitSource(cfg config.GitRulesConfig, engine *Engine, logger *slog.Logger) (*GitSource, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("rulebook path cannot be empty")
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "jarvish-rulebook")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GitSource{
		cfg:    cfg,
		engine: engine,
		logger: logger.With("component", "rules.git"),
	}, nil
}

// Sync clones the repository on first use, pulls afterwards, and reloads
// the engine when HEAD moved. It reports whether the rulebook changed.
func (s *GitSource) Sync(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.repo == nil {
		if err := s.open(ctx); err != nil {
			return false, err
		}
	} else if err := s.pull(ctx); err != nil {
		return false, err
	}

	ref, err := s.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get HEAD: %w", err)
	}
	sha := ref.Hash().String()
	if sha == s.head {
		return false, nil
	}

	rb, err := LoadRulebook(filepath.Join(s.cfg.LocalPath, s.cfg.Path))
	if err == nil {
		err = s.engine.Reload(rb)
	}
	if err != nil {
		metrics.RulebookReloads.WithLabelValues("git", "error").Inc()
		return false, fmt.Errorf("commit %s: %w", shortSHA(sha), err)
	}

	metrics.RulebookReloads.WithLabelValues("git", "success").Inc()
	s.logger.Info("rulebook loaded from git",
		"commit", shortSHA(sha),
		"previous", shortSHA(s.head),
		"version", rb.Version,
	)
	s.head = sha
	return true, nil
}

// Run syncs every poll interval until ctx is cancelled. Sync errors are
// logged and the previous rulebook stays active.
func (s *GitSource) Run(ctx context.Context) error {
	if s.cfg.PollInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil {
				s.logger.Error("rulebook sync failed", "error", err)
			}
		}
	}
}

// Head returns the commit the active rulebook was loaded from.
func (s *GitSource) Head() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

func (s *GitSource) auth() transport.AuthMethod {
	if s.cfg.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "git", Password: s.cfg.Token}
}

func (s *GitSource) open(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		s.repo = repo
		return s.pull(ctx)
	}

	if err := os.MkdirAll(s.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	repo, err := gogit.PlainCloneContext(ctx, s.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           s.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Auth:          s.auth(),
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	s.repo = repo
	return nil
}

func (s *GitSource) pull(ctx context.Context) error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Auth:          s.auth(),
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
