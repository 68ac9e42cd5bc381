// Package comparison persists pipeline runs as flat per-run snapshots and
// derives cross-pipeline reports from them.
package comparison

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/pipeline"
)

// Framework stores and loads experiment results under a root directory,
// one subdirectory per named run.
type Framework struct {
	resultsDir string
	logger     *zap.Logger
}

func New(resultsDir string, logger *zap.Logger) *Framework {
	return &Framework{resultsDir: resultsDir, logger: logger}
}

// RunDir is the directory holding one named run.
func (f *Framework) RunDir(name string) string {
	return filepath.Join(f.resultsDir, name)
}

// RunExists reports whether a run with this name was saved before.
func (f *Framework) RunExists(name string) bool {
	info, err := os.Stat(f.RunDir(name))
	return err == nil && info.IsDir()
}

// RankingLabel names a ranking value for human-facing listings.
func RankingLabel(ranking int) string {
	switch ranking {
	case 4:
		return "Excellent Fit"
	case 3:
		return "Good Fit"
	case 2:
		return "Borderline"
	case 1:
		return "Not a Fit"
	default:
		return "Unknown"
	}
}

// SaveResults writes every pipeline result of a run plus the derived
// summary and comparison artifacts. An empty result set is an error and
// leaves no artifacts behind. An existing run with the same name is
// overwritten.
func (f *Framework) SaveResults(results []*pipeline.Result, name string) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to save for run %q", name)
	}

	dir := f.RunDir(name)
	if f.RunExists(name) {
		f.logger.Warn("run already exists, overwriting", zap.String("run", name), zap.String("dir", dir))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	for _, result := range results {
		base := resultBaseName(result)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", base, err)
		}
		if err := os.WriteFile(filepath.Join(dir, base+".json"), data, 0o644); err != nil {
			return fmt.Errorf("write result %s: %w", base, err)
		}

		listing := formatRankings(result)
		if err := os.WriteFile(filepath.Join(dir, base+"_rankings.txt"), []byte(listing), 0o644); err != nil {
			return fmt.Errorf("write rankings %s: %w", base, err)
		}
	}

	if err := f.writeSummary(dir, name, results); err != nil {
		return err
	}
	if err := f.writeComparisonCSV(dir, results); err != nil {
		return err
	}

	f.logger.Info("run saved",
		zap.String("run", name),
		zap.String("dir", dir),
		zap.Int("results", len(results)),
	)
	return nil
}

// LoadResults reads the per-result JSON dumps of a saved run.
func (f *Framework) LoadResults(name string) ([]*pipeline.Result, error) {
	dir := f.RunDir(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read run %q: %w", name, err)
	}

	var results []*pipeline.Result
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || entry.Name() == "summary.json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read result %s: %w", entry.Name(), err)
		}
		var result pipeline.Result
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("parse result %s: %w", entry.Name(), err)
		}
		results = append(results, &result)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("run %q contains no results", name)
	}
	return results, nil
}

// resultBaseName builds a filesystem-safe file stem for one result.
func resultBaseName(r *pipeline.Result) string {
	sanitize := strings.NewReplacer("/", "-", ":", "-", " ", "_", ".", "-")
	return fmt.Sprintf("%s_%s_%s", r.PipelineName, r.Provider, sanitize.Replace(r.Model))
}

// formatRankings renders a human-readable listing sorted best-first.
func formatRankings(r *pipeline.Result) string {
	sorted := make([]pipeline.RankingResult, len(r.Rankings))
	copy(sorted, r.Rankings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ranking != sorted[j].Ranking {
			return sorted[i].Ranking > sorted[j].Ranking
		}
		return sorted[i].Name < sorted[j].Name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline: %s\n", r.PipelineName)
	fmt.Fprintf(&b, "Provider: %s (%s)\n", r.Provider, r.Model)
	fmt.Fprintf(&b, "Candidates: %d\n\n", len(sorted))
	for _, ranking := range sorted {
		fmt.Fprintf(&b, "%d - %s: %s [%s]\n", ranking.Ranking, RankingLabel(ranking.Ranking), ranking.Name, ranking.CVID)
	}
	return b.String()
}

type pipelineSummary struct {
	Results     int      `json:"results"`
	Models      []string `json:"models"`
	CVIDs       []string `json:"cv_ids"`
	TotalTokens int64    `json:"total_tokens"`
}

type runSummary struct {
	Run       string                      `json:"run"`
	CreatedAt string                      `json:"created_at"`
	Results   int                         `json:"results"`
	Pipelines map[string]*pipelineSummary `json:"pipelines"`
}

func (f *Framework) writeSummary(dir, name string, results []*pipeline.Result) error {
	summary := runSummary{
		Run:       name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Results:   len(results),
		Pipelines: map[string]*pipelineSummary{},
	}

	for _, result := range results {
		ps := summary.Pipelines[result.PipelineName]
		if ps == nil {
			ps = &pipelineSummary{}
			summary.Pipelines[result.PipelineName] = ps
		}
		ps.Results++
		ps.Models = appendUnique(ps.Models, result.Model)
		for _, ranking := range result.Rankings {
			ps.CVIDs = appendUnique(ps.CVIDs, ranking.CVID)
		}
		_, _, total := usageFromMetadata(result.Metadata)
		ps.TotalTokens += total
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (f *Framework) writeComparisonCSV(dir string, results []*pipeline.Result) error {
	file, err := os.Create(filepath.Join(dir, "comparison.csv"))
	if err != nil {
		return fmt.Errorf("create comparison.csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"cv_id", "name", "pipeline", "provider", "model",
		"ranking", "ranking_label", "reasoning",
		"prompt_tokens", "completion_tokens", "total_tokens",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write comparison.csv: %w", err)
	}

	for _, result := range results {
		prompt, completion, total := usageFromMetadata(result.Metadata)
		for _, ranking := range result.Rankings {
			row := []string{
				ranking.CVID,
				ranking.Name,
				result.PipelineName,
				result.Provider,
				result.Model,
				strconv.Itoa(ranking.Ranking),
				RankingLabel(ranking.Ranking),
				ranking.Reasoning,
				strconv.FormatInt(prompt, 10),
				strconv.FormatInt(completion, 10),
				strconv.FormatInt(total, 10),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("write comparison.csv: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush comparison.csv: %w", err)
	}
	return nil
}

// usageFromMetadata digs token totals out of run metadata, tolerating the
// numeric widening a JSON round-trip applies.
func usageFromMetadata(metadata map[string]any) (prompt, completion, total int64) {
	usage, ok := metadata["usage"].(map[string]any)
	if !ok {
		return 0, 0, 0
	}
	return asInt64(usage["prompt_tokens"]), asInt64(usage["completion_tokens"]), asInt64(usage["total_tokens"])
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
