// Package pipeline runs the R&D soundboard from a concept to a scored report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/haleyos/haley/internal/extract"
	"github.com/haleyos/haley/internal/llm"
	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/metrics"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/rd"
	"github.com/haleyos/haley/internal/score"
	"go.uber.org/zap"
)

// Stage names reported through Options.OnStage
const (
	StageClaims    = "claims"
	StageQuestions = "questions"
	StageDeltas    = "deltas"
	StageBuild     = "build"
	StageScore     = "score"
)

// Options configures a Pipeline
type Options struct {
	Call        llm.Call
	Provider    string // Recorded on the report and as default delta assignee
	Temperature float32
	Sequential  bool
	Workers     int

	Metrics *metrics.Metrics
	Logger  *zap.Logger

	OnStage func(stage string)
	OnDelta func(model.Delta)
}

// Input is one soundboard request
type Input struct {
	Concept string
	Omega   string
	Answers []model.Answer

	// Extract adds constraint claims found in the concept text
	Extract bool
	// SkipBuild stops after delta planning
	SkipBuild bool
}

// Pipeline orchestrates claims → questions → deltas → build → score
type Pipeline struct {
	opts           Options
	claimExtractor *extract.ClaimExtractor
	scorer         *score.Scorer
	logger         *zap.Logger
	now            func() time.Time
}

// NewPipeline creates a new pipeline
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		opts:           opts,
		claimExtractor: extract.NewClaimExtractor(),
		scorer:         score.NewScorer(),
		logger:         logging.OrNop(opts.Logger),
		now:            time.Now,
	}
}

// Claims derives the claims for a concept. Template claims come first,
// extracted constraint claims are appended when requested.
func (p *Pipeline) Claims(in Input) []model.Claim {
	claims := extract.GenerateClaims(in.Concept, in.Omega)
	if !in.Extract || len(claims) == 0 {
		return claims
	}

	extra, err := p.claimExtractor.Extract(in.Concept)
	if err != nil {
		p.logger.Warn("Constraint extraction failed", zap.Error(err))
		return claims
	}
	return extract.AppendClaims(claims, extra)
}

// Questions runs only the questionizer over the claims of in
func (p *Pipeline) Questions(ctx context.Context, in Input) ([]model.Claim, *rd.QuestionizeResult, error) {
	claims := p.Claims(in)
	result, err := rd.Questionize(ctx, claims, p.opts.Call, p.opts.Temperature)
	if err != nil {
		return claims, nil, err
	}
	return claims, result, nil
}

// Run executes the full soundboard and returns the report
func (p *Pipeline) Run(ctx context.Context, in Input) (*model.SoundboardReport, error) {
	report := &model.SoundboardReport{
		Concept:   in.Concept,
		Omega:     in.Omega,
		Provider:  p.opts.Provider,
		StartedAt: p.now().UTC(),
		Answers:   in.Answers,
	}

	// 1. Claims
	p.stage(StageClaims)
	report.Claims = p.Claims(in)
	if len(report.Claims) == 0 {
		return nil, fmt.Errorf("concept and omega are required")
	}
	p.logger.Debug("Generated claims", zap.Int("count", len(report.Claims)))

	// 2. Questions
	p.stage(StageQuestions)
	questions, err := rd.Questionize(ctx, report.Claims, p.opts.Call, p.opts.Temperature)
	if err != nil {
		return nil, err
	}
	report.Questions = questions.Questions
	report.SkippedClaimIDs = questions.SkippedClaimIDs

	// 3. Deltas
	p.stage(StageDeltas)
	deltas, err := rd.GenerateDeltas(ctx, report.Claims, report.Questions, in.Answers, p.opts.Call, p.opts.Provider)
	if err != nil {
		return nil, err
	}
	report.Deltas = deltas.Deltas
	// The executor logs cycles itself when the plan is built
	if in.SkipBuild {
		if err := rd.CheckCycles(report.Deltas); err != nil {
			p.logger.Warn("Delta plan has cycles", zap.Error(err))
		}
	}

	// 4. Build
	if !in.SkipBuild {
		p.stage(StageBuild)
		exec := rd.NewExecutor(rd.ExecutorOptions{
			Call:        p.opts.Call,
			Concept:     in.Concept,
			Omega:       in.Omega,
			Claims:      report.Claims,
			Parallel:    !p.opts.Sequential,
			Concurrency: p.opts.Workers,
			Metrics:     p.opts.Metrics,
			Logger:      p.logger,
			OnStatus:    p.opts.OnDelta,
		})
		built, err := exec.Run(ctx, report.Deltas)
		report.Deltas = built
		if err != nil {
			return nil, fmt.Errorf("build deltas: %w", err)
		}
	}

	// 5. Score
	p.stage(StageScore)
	report.Score = p.scorer.Calculate(score.Input{
		Claims:          report.Claims,
		Questions:       report.Questions,
		SkippedClaimIDs: report.SkippedClaimIDs,
		Answers:         report.Answers,
		Deltas:          report.Deltas,
	})
	report.EndedAt = p.now().UTC()

	return report, nil
}

func (p *Pipeline) stage(name string) {
	p.logger.Debug("Soundboard stage", zap.String("stage", name))
	if p.opts.OnStage != nil {
		p.opts.OnStage(name)
	}
}
