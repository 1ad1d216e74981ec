package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/rules"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/semantic"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/tracing"
)

// misleadingThreshold is the misleading-claim score at which the semantic
// stage reports a blocking violation.
const misleadingThreshold = 0.7

// Config controls verdict aggregation.
type Config struct {
	SemanticTimeout     time.Duration
	ComplianceThreshold int
	RuleWeight          float64
	SemanticWeight      float64
	FallbackPenalty     int
	Strict              bool
}

// ConfigFrom builds a pipeline Config from the loaded configuration.
func ConfigFrom(p config.PipelineConfig, r config.RulesConfig) Config {
	return Config{
		SemanticTimeout:     p.SemanticTimeout,
		ComplianceThreshold: p.ComplianceThreshold,
		RuleWeight:          p.RuleWeight,
		SemanticWeight:      p.SemanticWeight,
		FallbackPenalty:     p.FallbackPenalty,
		Strict:              r.Strict,
	}
}

// DefaultConfig returns the default aggregation settings.
func DefaultConfig() Config {
	return Config{
		SemanticTimeout:     config.DefaultPipelineSemanticTimeout,
		ComplianceThreshold: config.DefaultPipelineComplianceThreshold,
		RuleWeight:          config.DefaultPipelineRuleWeight,
		SemanticWeight:      config.DefaultPipelineSemanticWeight,
		FallbackPenalty:     config.DefaultPipelineFallbackPenalty,
	}
}

// Recorder receives every verdict the pipeline produces.
type Recorder interface {
	RecordValidation(ctx context.Context, item *compliance.ContentItem, result *compliance.ValidationResult, autofixed bool) error
}

// Options adjust a single validation.
type Options struct {
	// Strict forces strict rule checking regardless of configuration.
	Strict bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sets the verdict recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs content through the rule engine, the semantic analyzer and
// aggregation to produce one verdict per content item.
type Pipeline struct {
	engine   *rules.Engine
	analyzer semantic.Analyzer
	cfg      Config
	recorder Recorder
	tracer   *tracing.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Pipeline.
func New(engine *rules.Engine, analyzer semantic.Analyzer, cfg Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if analyzer == nil {
		analyzer = semantic.Disabled()
	}
	p := &Pipeline{
		engine:   engine,
		analyzer: analyzer,
		cfg:      cfg,
		tracer:   tracing.Noop(),
		logger:   logger.With("component", "pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the rule engine used by the pipeline.
func (p *Pipeline) Engine() *rules.Engine {
	return p.engine
}

// run carries the state of one validation through the state machine.
type run struct {
	item     *compliance.ContentItem
	strict   bool
	rules    *rules.CheckResult
	scores   *compliance.SemanticScores
	fallback bool
	stages   map[compliance.StageName]compliance.StageResult
	result   *compliance.ValidationResult
}

// Validate produces a verdict for item and records it.
func (p *Pipeline) Validate(ctx context.Context, item *compliance.ContentItem, opts Options) (*compliance.ValidationResult, error) {
	result, err := p.evaluate(ctx, item, opts)
	if err != nil {
		return nil, err
	}
	if err := p.record(ctx, item, result, false); err != nil {
		return nil, err
	}
	return result, nil
}

// FixResult is the outcome of AutoFixAndRevalidate.
type FixResult struct {
	Original  *compliance.ValidationResult `json:"original"`
	Fixed     *compliance.ValidationResult `json:"fixed,omitempty"`
	FixedText string                       `json:"fixed_text,omitempty"`
	Applied   bool                         `json:"applied"`
}

// AutoFixAndRevalidate validates item and, if it is not compliant and has
// no critical violation, rewrites it once with the rule engine's auto-fix
// and validates the rewritten text. Content with a critical violation is
// never rewritten.
func (p *Pipeline) AutoFixAndRevalidate(ctx context.Context, item *compliance.ContentItem, opts Options) (*FixResult, error) {
	original, err := p.Validate(ctx, item, opts)
	if err != nil {
		return nil, err
	}

	out := &FixResult{Original: original}
	if original.IsCompliant || compliance.HasCritical(original.Violations) {
		return out, nil
	}

	fixedText, ok := p.engine.AutoFix(item.Text, language(item), original.Violations, original.MissingDisclaimers)
	if !ok || fixedText == item.Text {
		return out, nil
	}

	fixedItem := *item
	fixedItem.Text = fixedText

	fixed, err := p.evaluate(ctx, &fixedItem, opts)
	if err != nil {
		return nil, err
	}
	if err := p.record(ctx, &fixedItem, fixed, true); err != nil {
		return nil, err
	}

	out.Fixed = fixed
	out.FixedText = fixedText
	out.Applied = true
	return out, nil
}

func (p *Pipeline) evaluate(ctx context.Context, item *compliance.ContentItem, opts Options) (*compliance.ValidationResult, error) {
	if item == nil || item.Text == "" {
		return nil, fmt.Errorf("content item text is required")
	}

	start := p.now()
	hash := compliance.HashContent(item.Text)

	ctx, span := p.tracer.Start(ctx, "pipeline.validate")
	defer span.End()
	span.SetAttributes(tracing.ContentAttributes(item.ID, item.AdvisorID, hash)...)

	r := &run{
		item:   item,
		strict: p.cfg.Strict || opts.Strict,
		stages: make(map[compliance.StageName]compliance.StageResult, len(compliance.Stages)),
	}

	for state := StateRuleCheck; state != StateDone; state = next(state, r) {
		p.step(ctx, state, r)
	}

	result := p.finish(r, hash)
	result.ProcessingTime = p.now().Sub(start)
	result.ValidatedAt = start

	metrics.ValidationsTotal.WithLabelValues(string(result.ColorCode), strconv.FormatBool(result.FallbackUsed)).Inc()
	span.SetAttributes(
		attribute.Int(tracing.AttrRiskScore, result.RiskScore),
		attribute.String(tracing.AttrColorCode, string(result.ColorCode)),
		attribute.Bool(tracing.AttrFallback, result.FallbackUsed),
	)

	p.logger.InfoContext(ctx, "content validated",
		"content_id", item.ID,
		"advisor_id", item.AdvisorID,
		"risk_score", result.RiskScore,
		"color", result.ColorCode,
		"compliant", result.IsCompliant,
		"fallback", result.FallbackUsed,
		"stages_run", result.ExecutedStages(),
		"duration", result.ProcessingTime,
	)

	return result, nil
}

func (p *Pipeline) step(ctx context.Context, state State, r *run) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+state.String())
	defer span.End()

	start := p.now()
	var stage compliance.StageResult

	switch state {
	case StateRuleCheck:
		stage = p.ruleCheck(r)
	case StateSemanticCheck:
		stage = p.semanticCheck(ctx, r)
	case StateAggregate:
		stage = p.aggregate(r)
	}

	stage.Duration = p.now().Sub(start)
	r.stages[stage.Name] = stage
	metrics.StageDuration.WithLabelValues(string(stage.Name)).Observe(stage.Duration.Seconds())
	span.SetAttributes(attribute.String(tracing.AttrStage, string(stage.Name)), attribute.Bool("passed", stage.Passed))
}

func (p *Pipeline) ruleCheck(r *run) compliance.StageResult {
	r.rules = p.engine.Check(r.item.Text, language(r.item), r.strict)

	return compliance.StageResult{
		Name:    compliance.StageRuleCheck,
		Passed:  !r.rules.Critical && !blocking(r.rules.Violations),
		Details: fmt.Sprintf("%d violation(s), rule risk %d", len(r.rules.Violations), r.rules.RiskScore),
	}
}

func (p *Pipeline) semanticCheck(ctx context.Context, r *run) compliance.StageResult {
	stage := compliance.StageResult{Name: compliance.StageSemanticCheck}

	if p.cfg.SemanticTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SemanticTimeout)
		defer cancel()
	}

	scores, err := p.analyzer.Analyze(ctx, r.item.Text, language(r.item))
	if err != nil {
		r.fallback = true
		reason := semantic.ReasonOf(err)
		if reason == "" {
			reason = semantic.ReasonUnavailable
		}
		if reason != semantic.ReasonDisabled {
			p.logger.WarnContext(ctx, "semantic analysis failed, using rules-only verdict",
				"content_id", r.item.ID,
				"reason", reason,
				"error", err,
			)
		}
		stage.Details = fmt.Sprintf("analyzer %s, rules-only fallback", reason)
		return stage
	}

	r.scores = scores
	stage.Passed = scores.MisleadingClaimScore < misleadingThreshold
	stage.Details = fmt.Sprintf("tone %.2f, misleading %.2f, clarity %.2f", scores.Tone, scores.MisleadingClaimScore, scores.Clarity)
	return stage
}

func (p *Pipeline) aggregate(r *run) compliance.StageResult {
	r.result = p.verdict(r)
	return compliance.StageResult{
		Name:    compliance.StageAggregate,
		Passed:  r.result.IsCompliant,
		Details: fmt.Sprintf("risk %d (%s)", r.result.RiskScore, r.result.ColorCode),
	}
}

// verdict combines stage outputs. The final score is never below the rule
// stage's score, so a critical 100 can never be lowered.
func (p *Pipeline) verdict(r *run) *compliance.ValidationResult {
	violations := append([]compliance.Violation(nil), r.rules.Violations...)
	ruleRisk := r.rules.RiskScore
	risk := ruleRisk

	switch {
	case r.rules.Critical:
		risk = compliance.MaxRisk
	case r.fallback:
		risk = compliance.ClampRisk(ruleRisk + p.cfg.FallbackPenalty)
	case r.scores != nil:
		blended := int(math.Round(p.cfg.RuleWeight*float64(ruleRisk) + p.cfg.SemanticWeight*SemanticRisk(r.scores)))
		risk = max(ruleRisk, compliance.ClampRisk(blended))
		if r.scores.MisleadingClaimScore >= misleadingThreshold {
			violations = append(violations, compliance.Violation{
				Type:     compliance.ViolationMisleadingClaim,
				Severity: compliance.SeverityHigh,
				Message:  fmt.Sprintf("Semantic analysis flags misleading claims (score %.2f)", r.scores.MisleadingClaimScore),
			})
		}
	}

	return &compliance.ValidationResult{
		Violations:         violations,
		MissingDisclaimers: r.rules.MissingDisclaimers,
		RiskScore:          risk,
		ColorCode:          compliance.ColorFor(risk),
		IsCompliant:        !r.rules.Critical && risk <= p.cfg.ComplianceThreshold && !blocking(violations),
		FallbackUsed:       r.fallback,
		Semantic:           r.scores,
	}
}

// finish assembles the final result, reporting every stage including the
// ones the state machine skipped.
func (p *Pipeline) finish(r *run, hash string) *compliance.ValidationResult {
	result := r.result
	if result == nil {
		result = p.verdict(r)
	}

	result.ContentID = r.item.ID
	result.AdvisorID = r.item.AdvisorID
	result.ContentHash = hash
	result.Stages = make([]compliance.StageResult, 0, len(compliance.Stages))
	for _, name := range compliance.Stages {
		stage, ok := r.stages[name]
		if !ok {
			stage = compliance.StageResult{Name: name, Skipped: true, Details: "skipped: critical violation"}
		}
		result.Stages = append(result.Stages, stage)
	}
	return result
}

func (p *Pipeline) record(ctx context.Context, item *compliance.ContentItem, result *compliance.ValidationResult, autofixed bool) error {
	if p.recorder == nil {
		return nil
	}
	if err := p.recorder.RecordValidation(ctx, item, result, autofixed); err != nil {
		return fmt.Errorf("failed to record verdict for content %s: %w", item.ID, err)
	}
	return nil
}

// SemanticRisk converts semantic scores to a 0-100 risk: misleading claims
// dominate, followed by poor clarity and negative tone.
func SemanticRisk(s *compliance.SemanticScores) float64 {
	negativeTone := math.Max(0, -s.Tone)
	risk := 100 * (0.6*s.MisleadingClaimScore + 0.25*(1-s.Clarity) + 0.15*negativeTone)
	return math.Min(100, math.Max(0, risk))
}

func blocking(vs []compliance.Violation) bool {
	for _, v := range vs {
		if v.Severity == compliance.SeverityCritical || v.Severity == compliance.SeverityHigh {
			return true
		}
	}
	return false
}

func language(item *compliance.ContentItem) string {
	if item.Language == "" {
		return "en"
	}
	return item.Language
}
