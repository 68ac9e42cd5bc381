package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cvlab/rankpipe/internal/candidate"
	"github.com/cvlab/rankpipe/internal/extract"
)

// MultiLayer evaluates each candidate against every criterion in its own
// completion call, then asks the model to synthesize those evaluations into
// a final ranking.
type MultiLayer struct {
	base
}

func (p *MultiLayer) Name() string { return NameMultiLayer }

func (p *MultiLayer) Analyze(ctx context.Context, candidates []candidate.Candidate, jobAd, criteria string) (*Result, error) {
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

	return p.newResult(NameMultiLayer, rankings, analysis, usage.metadata()), nil
}

func (p *MultiLayer) analyzeOne(ctx context.Context, c candidate.Candidate, jobAd, criteria string, usage *usageTracker) (RankingResult, map[string]any) {
	name := p.displayName(c)
	evaluations := p.evaluateCriteria(ctx, c, jobAd, criteria, usage)

	evaluationsJSON, err := json.MarshalIndent(evaluations, "", "  ")
	if err != nil {
		return failedUnit(c.ID, name, err), map[string]any{"error": fmt.Sprint(err)}
	}

	resp, err := p.generate(ctx, "synthesis", c.ID, renderSynthesis(jobAd, string(evaluationsJSON)))
	if err != nil {
		p.logger.Warn("synthesis failed", zap.String("cv_id", c.ID), zap.Error(err))
		return failedUnit(c.ID, name, err), map[string]any{
			"criterion_evaluations": evaluations,
			"error":                 fmt.Sprint(err),
		}
	}
	usage.add(resp.Usage)

	ranking, analysis := rankingFromText(c.ID, name, resp.Content)
	analysis["criterion_evaluations"] = evaluations
	return ranking, analysis
}

// evaluateCriteria fans the per-criterion calls out concurrently. Failed
// calls land as Unknown evaluations so synthesis still sees every criterion.
func (p *MultiLayer) evaluateCriteria(ctx context.Context, c candidate.Candidate, jobAd, criteria string, usage *usageTracker) map[string]*CriterionEvaluation {
	evaluations := make([]*CriterionEvaluation, len(Criteria))

	g, gctx := errgroup.WithContext(ctx)
	for i, criterion := range Criteria {
		g.Go(func() error {
			eval, err := p.evaluateCriterion(gctx, c, criterion, jobAd, criteria, usage)
			if err != nil {
				p.logger.Warn("criterion evaluation failed",
					zap.String("cv_id", c.ID),
					zap.String("criterion", criterion.Key),
					zap.Error(err),
				)
			}
			evaluations[i] = eval
			return nil
		})
	}
	_ = g.Wait() // workers capture their own failures

	keyed := make(map[string]*CriterionEvaluation, len(Criteria))
	for i, criterion := range Criteria {
		keyed[criterion.Key] = evaluations[i]
	}
	return keyed
}

// evaluateCriterion issues one criterion call and decodes the answer. The
// returned evaluation is always usable; the error reports whether the
// attempt failed to yield a recognizable rating and should count against a
// retry budget. Failed attempts carry an explicit Error marker.
func (b *base) evaluateCriterion(ctx context.Context, c candidate.Candidate, criterion Criterion, jobAd, criteria string, usage *usageTracker) (*CriterionEvaluation, error) {
	section := ExtractCriterionSection(criteria, criterion.Name)
	prompt := renderCriterion(jobAd, criterion.Name, section, c.ID, c.Content)

	resp, err := b.generate(ctx, "criterion:"+criterion.Key, c.ID, prompt)
	if err != nil {
		return &CriterionEvaluation{CVID: c.ID, Rating: "Unknown", Error: fmt.Sprint(err)}, err
	}
	usage.add(resp.Usage)

	parsed, ok := extract.Object(resp.Content)
	if !ok {
		eval := &CriterionEvaluation{CVID: c.ID, Rating: "Unknown", Error: "response is not a JSON object", Raw: resp.Content}
		return eval, fmt.Errorf("criterion %s: %s", criterion.Key, eval.Error)
	}

	eval := decodeEvaluation(c.ID, parsed)
	if eval.Error != "" || eval.Rating == "Unknown" {
		if eval.Error == "" {
			eval.Error = "no recognizable rating in response"
		}
		eval.Raw = resp.Content
		return eval, fmt.Errorf("criterion %s: %s", criterion.Key, eval.Error)
	}

	return eval, nil
}
