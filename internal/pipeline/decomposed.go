package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cvlab/rankpipe/internal/candidate"
	"github.com/cvlab/rankpipe/internal/util"
)

// Default retry budget for one criterion call in the decomposed strategy.
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// Decomposed evaluates each candidate against every criterion in its own
// completion call and combines the ratings deterministically, with no
// synthesis call. Criterion calls that fail or return unusable output are
// retried up to the configured budget with a fixed delay.
type Decomposed struct {
	base
}

func (p *Decomposed) Name() string { return NameDecomposed }

func (p *Decomposed) Analyze(ctx context.Context, candidates []candidate.Candidate, jobAd, criteria string) (*Result, error) {
	rankings := make([]RankingResult, len(candidates))
	analyses := make([]map[string]any, len(candidates))
	usage := &usageTracker{}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		g.Go(func() error {
			rankings[i], analyses[i] = p.analyzeOne(gctx, c, jobAd, criteria, usage)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analysis := make(map[string]any, len(candidates))
	for i, c := range candidates {
		analysis[c.ID] = analyses[i]
	}

	return p.newResult(NameDecomposed, rankings, analysis, usage.metadata()), nil
}

func (p *Decomposed) analyzeOne(ctx context.Context, c candidate.Candidate, jobAd, criteria string, usage *usageTracker) (RankingResult, map[string]any) {
	name := p.displayName(c)
	evaluations := make([]*CriterionEvaluation, len(Criteria))

	g, gctx := errgroup.WithContext(ctx)
	for i, criterion := range Criteria {
		g.Go(func() error {
			evaluations[i] = p.evaluateWithRetries(gctx, c, criterion, jobAd, criteria, usage)
			return nil
		})
	}
	_ = g.Wait() // workers capture their own failures

	keyed := make(map[string]*CriterionEvaluation, len(Criteria))
	for i, criterion := range Criteria {
		keyed[criterion.Key] = evaluations[i]
	}

	ranking, reasoning := Aggregate(keyed)

	return RankingResult{CVID: c.ID, Name: name, Ranking: ranking, Reasoning: reasoning},
		map[string]any{"criterion_evaluations": keyed}
}

// evaluateWithRetries runs one criterion call, retrying failed attempts up
// to the budget. The last evaluation is returned even when every attempt
// failed, so aggregation always has something to score.
func (p *Decomposed) evaluateWithRetries(ctx context.Context, c candidate.Candidate, criterion Criterion, jobAd, criteria string, usage *usageTracker) *CriterionEvaluation {
	var eval *CriterionEvaluation

	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := util.WaitFor(ctx, p.opts.RetryDelay); err != nil {
				return eval
			}
		}

		var err error
		eval, err = p.evaluateCriterion(ctx, c, criterion, jobAd, criteria, usage)
		if err == nil {
			return eval
		}

		p.logger.Warn("criterion evaluation attempt failed",
			zap.String("cv_id", c.ID),
			zap.String("criterion", criterion.Key),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return eval
}
