package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

func commitRulebook(t *testing.T, repo *gogit.Repository, dir, version string) {
	t.Helper()

	writeRulebook(t, filepath.Join(dir, "rulebook.yaml"), version)

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add("rulebook.yaml"); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	_, err = worktree.Commit("rulebook "+version, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Compliance Team",
			Email: "compliance@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func TestNewGitSource_Validation(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := NewGitSource(config.GitRulesConfig{Branch: "main", Path: "r.yaml"}, engine, nil); err == nil {
		t.Error("expected error for empty repository")
	}
	if _, err := NewGitSource(config.GitRulesConfig{Repository: "x", Path: "r.yaml"}, engine, nil); err == nil {
		t.Error("expected error for empty branch")
	}
	if _, err := NewGitSource(config.GitRulesConfig{Repository: "x", Branch: "main"}, engine, nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestGitSource_Sync(t *testing.T) {
	remoteDir := t.TempDir()
	remote, err := gogit.PlainInit(remoteDir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitRulebook(t, remote, remoteDir, "git-v1")

	head, err := remote.Head()
	if err != nil {
		t.Fatalf("failed to read HEAD: %v", err)
	}

	engine := newTestEngine(t)
	src, err := NewGitSource(config.GitRulesConfig{
		Repository: remoteDir,
		Branch:     head.Name().Short(),
		Path:       "rulebook.yaml",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    10 * time.Second,
	}, engine, nil)
	if err != nil {
		t.Fatalf("NewGitSource: %v", err)
	}

	ctx := context.Background()
	changed, err := src.Sync(ctx)
	if err != nil {
		t.Fatalf("initial sync: %v", err)
	}
	if !changed || engine.Rulebook().Version != "git-v1" {
		t.Fatalf("expected git-v1 to be loaded, changed=%v version=%q", changed, engine.Rulebook().Version)
	}

	changed, err = src.Sync(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if changed {
		t.Error("expected no change without new commits")
	}

	commitRulebook(t, remote, remoteDir, "git-v2")
	changed, err = src.Sync(ctx)
	if err != nil {
		t.Fatalf("sync after commit: %v", err)
	}
	if !changed || engine.Rulebook().Version != "git-v2" {
		t.Errorf("expected git-v2, changed=%v version=%q", changed, engine.Rulebook().Version)
	}
	if src.Head() == "" {
		t.Error("expected head to be recorded")
	}

	if _, err := os.Stat(filepath.Join(src.cfg.LocalPath, "rulebook.yaml")); err != nil {
		t.Errorf("expected rulebook in clone: %v", err)
	}
}
