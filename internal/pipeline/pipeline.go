// Package pipeline implements the ranking strategies that turn a batch of
// candidates plus a job context into per-candidate rankings. Four strategies
// exist, differing in how many completion calls they issue per candidate and
// how they combine the answers. All of them preserve input order, emit
// exactly one ranking per candidate, and capture per-unit failures as
// sentinel values instead of failing the batch.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/candidate"
	"github.com/cvlab/rankpipe/internal/extract"
	"github.com/cvlab/rankpipe/internal/llm"
	"github.com/cvlab/rankpipe/internal/util"
)

// Pipeline names, used for selection and result labeling.
const (
	NameOneShot        = "one_shot"
	NameChainOfThought = "chain_of_thought"
	NameMultiLayer     = "multi_layer"
	NameDecomposed     = "decomposed_algorithmic"
)

const defaultMaxLogLength = 200

// Pipeline is one ranking strategy.
type Pipeline interface {
	Name() string
	Analyze(ctx context.Context, candidates []candidate.Candidate, jobAd, criteria string) (*Result, error)
}

// RankingResult is the final judgment for one candidate. Ranking 0 means the
// answer could not be determined and is preserved so failures stay visible
// in reports.
type RankingResult struct {
	CVID      string `json:"cv_id"`
	Name      string `json:"name"`
	Ranking   int    `json:"ranking"`
	Reasoning string `json:"reasoning"`
}

// Result is the outcome of one pipeline run over a candidate batch.
type Result struct {
	PipelineName string          `json:"pipeline_name"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Rankings     []RankingResult `json:"rankings"`
	Analysis     map[string]any  `json:"analysis"`
	Metadata     map[string]any  `json:"metadata"`
}

// CriterionEvaluation is a qualitative judgment of one candidate against one
// hiring criterion. Unknown ratings and error markers are valid states that
// flow into aggregation without crashing it.
type CriterionEvaluation struct {
	CVID     string `json:"cv_id" mapstructure:"cv_id"`
	Rating   string `json:"rating" mapstructure:"rating"`
	Evidence string `json:"evidence,omitempty" mapstructure:"evidence"`
	Error    string `json:"error,omitempty" mapstructure:"-"`
	Raw      string `json:"raw,omitempty" mapstructure:"-"`
}

// Options tune behavior shared by the strategies.
type Options struct {
	// BlindNames replaces every display name with a redaction marker.
	BlindNames bool
	// MaxLogLength caps prompt/response previews in debug logs.
	MaxLogLength int
	// MaxRetries is the per-criterion retry budget of the decomposed
	// strategy.
	MaxRetries int
	// RetryDelay is the fixed backoff between criterion retries.
	RetryDelay time.Duration
}

// New constructs a pipeline by name. The set of strategies is closed, so
// unknown names are an error rather than a plugin lookup.
func New(name string, provider llm.Provider, logger *zap.Logger, opts Options) (Pipeline, error) {
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	b := base{provider: provider, logger: logger, opts: opts}

	switch name {
	case NameOneShot:
		return &OneShot{base: b}, nil
	case NameChainOfThought:
		return &ChainOfThought{base: b}, nil
	case NameMultiLayer:
		return &MultiLayer{base: b}, nil
	case NameDecomposed:
		return &Decomposed{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline: %s", name)
	}
}

// Names lists the available pipelines in their canonical order.
func Names() []string {
	return []string{NameOneShot, NameChainOfThought, NameMultiLayer, NameDecomposed}
}

// base carries the dependencies shared by all strategies.
type base struct {
	provider llm.Provider
	logger   *zap.Logger
	opts     Options
}

func (b *base) displayName(c candidate.Candidate) string {
	if b.opts.BlindNames {
		return candidate.RedactedName
	}
	return c.DisplayName()
}

// generate wraps the provider call with debug previews of the prompt and
// response.
func (b *base) generate(ctx context.Context, op, cvID, prompt string) (*llm.Response, error) {
	b.logger.Debug("generate content request",
		zap.String("operation", op),
		zap.String("cv_id", cvID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, b.opts.MaxLogLength)),
	)

	resp, err := b.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("generate content response",
		zap.String("operation", op),
		zap.String("cv_id", cvID),
		zap.Int("response_length", utf8.RuneCountInString(resp.Content)),
		zap.String("response_preview", util.TruncateForLog(resp.Content, b.opts.MaxLogLength)),
	)

	return resp, nil
}

// newResult labels a run result with the pipeline and provider identity.
func (b *base) newResult(name string, rankings []RankingResult, analysis, metadata map[string]any) *Result {
	return &Result{
		PipelineName: name,
		Provider:     b.provider.Name(),
		Model:        b.provider.Model(),
		Rankings:     rankings,
		Analysis:     analysis,
		Metadata:     metadata,
	}
}

// rankingFromText applies the extraction ladder to raw model output: strict
// JSON with ranking coercion, then the degraded text scan, then the sentinel
// ranking 0 with the raw text retained as reasoning.
func rankingFromText(cvID, name, raw string) (RankingResult, map[string]any) {
	parsed, ok := extract.Object(raw)
	if !ok {
		if n, found := extract.ScanRanking(raw); found {
			return RankingResult{CVID: cvID, Name: name, Ranking: n, Reasoning: raw}, map[string]any{"raw_response": raw}
		}
		return RankingResult{CVID: cvID, Name: name, Ranking: 0, Reasoning: raw}, map[string]any{"raw_response": raw}
	}

	ranking := extract.CoerceRanking(parsed["ranking"])
	if ranking == 0 {
		if n, found := extract.ScanRanking(raw); found {
			ranking = n
		}
	}

	reasoning := stringField(parsed, "reasoning")
	if reasoning == "" {
		reasoning = raw
	}

	return RankingResult{CVID: cvID, Name: name, Ranking: ranking, Reasoning: reasoning}, parsed
}

// failedUnit is the sentinel for a candidate whose completion call failed
// outright.
func failedUnit(cvID, name string, err error) RankingResult {
	return RankingResult{CVID: cvID, Name: name, Ranking: 0, Reasoning: fmt.Sprintf("evaluation failed: %v", err)}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// decodeEvaluation converts a parsed JSON object into a typed criterion
// evaluation. A missing rating yields Unknown; callers decide whether that
// counts as a failed attempt.
func decodeEvaluation(cvID string, parsed map[string]any) *CriterionEvaluation {
	eval := &CriterionEvaluation{CVID: cvID, Rating: "Unknown"}
	if err := mapstructure.WeakDecode(parsed, eval); err != nil {
		return &CriterionEvaluation{CVID: cvID, Rating: "Unknown", Error: fmt.Sprintf("decode evaluation: %v", err)}
	}
	if eval.Rating == "" {
		eval.Rating = "Unknown"
	}
	eval.CVID = cvID
	return eval
}

// usageTracker accumulates token usage across concurrent calls.
type usageTracker struct {
	mu    sync.Mutex
	total llm.Usage
}

func (t *usageTracker) add(u *llm.Usage) {
	if u == nil {
		return
	}
	t.mu.Lock()
	t.total.Add(u)
	t.mu.Unlock()
}

func (t *usageTracker) metadata() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return map[string]any{"usage": map[string]any{
		"prompt_tokens":     t.total.PromptTokens,
		"completion_tokens": t.total.CompletionTokens,
		"total_tokens":      t.total.TotalTokens,
	}}
}
