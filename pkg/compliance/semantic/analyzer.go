package semantic

import (
	"context"
	"log/slog"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// Scores is the semantic assessment of a piece of content.
type Scores = compliance.SemanticScores

// Analyzer scores content tone, misleading-claim risk and clarity.
// Implementations return *AIServiceError on failure.
type Analyzer interface {
	Analyze(ctx context.Context, text, language string) (*Scores, error)
}

// StaticAnalyzer returns fixed scores, or Err when set. It backs offline
// validation and tests.
type StaticAnalyzer struct {
	Scores Scores
	Err    error
}

// Analyze implements Analyzer.
func (a *StaticAnalyzer) Analyze(ctx context.Context, _, _ string) (*Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewAIServiceError(ReasonTimeout, 0, err)
	}
	if a.Err != nil {
		return nil, a.Err
	}
	s := a.Scores
	return &s, nil
}

// Disabled returns an analyzer that always fails with ReasonDisabled, so
// every verdict is a rules-only fallback.
func Disabled() *StaticAnalyzer {
	return &StaticAnalyzer{Err: NewAIServiceError(ReasonDisabled, 0, nil)}
}

// New builds the analyzer described by cfg: the HTTP client wrapped in a
// content-hash cache, or Disabled when the service is switched off.
func New(cfg config.SemanticConfig, logger *slog.Logger) (Analyzer, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}
	client, err := NewHTTPAnalyzer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewCachedAnalyzer(client, cfg.CacheTTL, cfg.CacheCleanupInterval), nil
}
