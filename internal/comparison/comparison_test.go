package comparison

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/pipeline"
)

func sampleResults() []*pipeline.Result {
	return []*pipeline.Result{
		{
			PipelineName: "one_shot",
			Provider:     "openai",
			Model:        "gpt-4o",
			Rankings: []pipeline.RankingResult{
				{CVID: "CV1", Name: "Alice Chen", Ranking: 4, Reasoning: "founder profile"},
				{CVID: "CV2", Name: "Bob Diaz", Ranking: 2, Reasoning: "narrow background"},
			},
			Metadata: map[string]any{"usage": map[string]any{
				"prompt_tokens": int64(100), "completion_tokens": int64(50), "total_tokens": int64(150),
			}},
		},
		{
			PipelineName: "decomposed_algorithmic",
			Provider:     "anthropic",
			Model:        "claude-sonnet-4-20250514",
			Rankings: []pipeline.RankingResult{
				{CVID: "CV1", Name: "Alice Chen", Ranking: 3, Reasoning: "good across criteria"},
				{CVID: "CV2", Name: "Bob Diaz", Ranking: 0, Reasoning: "evaluation failed"},
			},
			Metadata: map[string]any{"usage": map[string]any{
				"prompt_tokens": int64(300), "completion_tokens": int64(90), "total_tokens": int64(390),
			}},
		},
	}
}

func newTestFramework(t *testing.T) *Framework {
	t.Helper()
	return New(t.TempDir(), zap.NewNop())
}

func TestSaveResultsEmpty(t *testing.T) {
	f := newTestFramework(t)
	err := f.SaveResults(nil, "empty-run")
	require.Error(t, err)
	assert.False(t, f.RunExists("empty-run"))
}

func TestSaveAndLoadResults(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))
	require.True(t, f.RunExists("exp1"))

	dir := f.RunDir("exp1")
	for _, name := range []string{
		"one_shot_openai_gpt-4o.json",
		"one_shot_openai_gpt-4o_rankings.txt",
		"decomposed_algorithmic_anthropic_claude-sonnet-4-20250514.json",
		"summary.json",
		"comparison.csv",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	loaded, err := f.LoadResults("exp1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byPipeline := map[string]*pipeline.Result{}
	for _, r := range loaded {
		byPipeline[r.PipelineName] = r
	}
	require.Contains(t, byPipeline, "one_shot")
	assert.Equal(t, "gpt-4o", byPipeline["one_shot"].Model)
	assert.Len(t, byPipeline["one_shot"].Rankings, 2)
}

func TestRankingsListingSortedBestFirst(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))

	data, err := os.ReadFile(filepath.Join(f.RunDir("exp1"), "one_shot_openai_gpt-4o_rankings.txt"))
	require.NoError(t, err)
	listing := string(data)

	aliceIdx := strings.Index(listing, "4 - Excellent Fit: Alice Chen [CV1]")
	bobIdx := strings.Index(listing, "2 - Borderline: Bob Diaz [CV2]")
	require.GreaterOrEqual(t, aliceIdx, 0)
	require.GreaterOrEqual(t, bobIdx, 0)
	assert.Less(t, aliceIdx, bobIdx)
}

func TestSummaryContents(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))

	data, err := os.ReadFile(filepath.Join(f.RunDir("exp1"), "summary.json"))
	require.NoError(t, err)

	var summary runSummary
	require.NoError(t, json.Unmarshal(data, &summary))

	assert.Equal(t, "exp1", summary.Run)
	assert.Equal(t, 2, summary.Results)
	require.Contains(t, summary.Pipelines, "one_shot")
	assert.Equal(t, int64(150), summary.Pipelines["one_shot"].TotalTokens)
	assert.ElementsMatch(t, []string{"CV1", "CV2"}, summary.Pipelines["one_shot"].CVIDs)
}

func TestComparisonCSV(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))

	file, err := os.Open(filepath.Join(f.RunDir("exp1"), "comparison.csv"))
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	// header plus one row per candidate-ranking observation
	require.Len(t, rows, 5)
	assert.Equal(t, []string{
		"cv_id", "name", "pipeline", "provider", "model",
		"ranking", "ranking_label", "reasoning",
		"prompt_tokens", "completion_tokens", "total_tokens",
	}, rows[0])
	assert.Equal(t, "CV1", rows[1][0])
	assert.Equal(t, "Excellent Fit", rows[1][6])
	assert.Equal(t, "150", rows[1][10])
}

func TestSaveResultsOverwrites(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))
	require.NoError(t, f.SaveResults(sampleResults()[:1], "exp1"))

	loaded, err := f.LoadResults("exp1")
	require.NoError(t, err)
	// old dumps for other combinations remain, but the shared files were
	// rewritten without error
	assert.NotEmpty(t, loaded)
}

func TestLoadResultsMissingRun(t *testing.T) {
	f := newTestFramework(t)
	_, err := f.LoadResults("nope")
	require.Error(t, err)
}

func TestRankingLabel(t *testing.T) {
	assert.Equal(t, "Excellent Fit", RankingLabel(4))
	assert.Equal(t, "Good Fit", RankingLabel(3))
	assert.Equal(t, "Borderline", RankingLabel(2))
	assert.Equal(t, "Not a Fit", RankingLabel(1))
	assert.Equal(t, "Unknown", RankingLabel(0))
	assert.Equal(t, "Unknown", RankingLabel(7))
}

func TestWriteReport(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))

	summary, err := f.WriteReport("exp1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 2, summary.Runs)
	// CV1 ranks 4 vs 3 across runs; CV2's zero ranking is excluded from
	// spread so it never qualifies
	assert.Equal(t, 1, summary.HighVariance)

	file, err := os.Open(summary.PivotPath)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"cv_id", "name",
		"decomposed_algorithmic/anthropic/claude-sonnet-4-20250514",
		"one_shot/openai/gpt-4o",
	}, rows[0])
	assert.Equal(t, []string{"CV1", "Alice Chen", "3", "4"}, rows[1])
	assert.Equal(t, []string{"CV2", "Bob Diaz", "0", "2"}, rows[2])

	varianceFile, err := os.Open(summary.HighVariancePath)
	require.NoError(t, err)
	defer varianceFile.Close()
	varianceRows, err := csv.NewReader(varianceFile).ReadAll()
	require.NoError(t, err)
	require.Len(t, varianceRows, 2)
	assert.Equal(t, []string{"CV1", "Alice Chen", "3", "4", "1"}, varianceRows[1])
}

func TestWriteReportThreshold(t *testing.T) {
	f := newTestFramework(t)
	require.NoError(t, f.SaveResults(sampleResults(), "exp1"))

	summary, err := f.WriteReport("exp1", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.HighVariance)
}
