package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cvlab/rankpipe/internal/candidate"
)

// ChainOfThought ranks each candidate with a single completion call that
// instructs the model to reason through five explicit steps before
// answering.
type ChainOfThought struct {
	base
}

func (p *ChainOfThought) Name() string { return NameChainOfThought }

func (p *ChainOfThought) Analyze(ctx context.Context, candidates []candidate.Candidate, jobAd, criteria string) (*Result, error) {
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

	return p.newResult(NameChainOfThought, rankings, analysis, usage.metadata()), nil
}

func (p *ChainOfThought) analyzeOne(ctx context.Context, c candidate.Candidate, jobAd, criteria string, usage *usageTracker) (RankingResult, map[string]any) {
	name := p.displayName(c)
	prompt := renderSingleCall(chainOfThoughtTemplate, jobAd, criteria, c.Content)

	resp, err := p.generate(ctx, "chain_of_thought", c.ID, prompt)
	if err != nil {
		p.logger.Warn("candidate evaluation failed", zap.String("cv_id", c.ID), zap.Error(err))
		return failedUnit(c.ID, name, err), map[string]any{"error": fmt.Sprint(err)}
	}
	usage.add(resp.Usage)

	return rankingFromText(c.ID, name, resp.Content)
}
