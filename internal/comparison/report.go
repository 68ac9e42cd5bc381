package comparison

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/pipeline"
)

// ReportSummary is what the report command prints after writing the CSVs.
type ReportSummary struct {
	Run              string
	Candidates       int
	Runs             int
	HighVariance     int
	PivotPath        string
	HighVariancePath string
}

// runLabel identifies one (pipeline, provider, model) column in the pivot.
func runLabel(r *pipeline.Result) string {
	return fmt.Sprintf("%s/%s/%s", r.PipelineName, r.Provider, r.Model)
}

// WriteReport loads a saved run and writes ranking_pivot.csv (candidate ×
// run matrix) and high_variance.csv (candidates whose rankings spread at
// least threshold apart across runs). Undetermined rankings (0) appear in
// the pivot but are excluded from spread computation.
func (f *Framework) WriteReport(name string, threshold int) (*ReportSummary, error) {
	results, err := f.LoadResults(name)
	if err != nil {
		return nil, err
	}
	if threshold < 1 {
		threshold = 1
	}

	labels := make([]string, 0, len(results))
	names := map[string]string{}
	rankings := map[string]map[string]int{}

	for _, result := range results {
		label := runLabel(result)
		labels = append(labels, label)
		for _, ranking := range result.Rankings {
			if names[ranking.CVID] == "" {
				names[ranking.CVID] = ranking.Name
			}
			if rankings[ranking.CVID] == nil {
				rankings[ranking.CVID] = map[string]int{}
			}
			rankings[ranking.CVID][label] = ranking.Ranking
		}
	}
	sort.Strings(labels)

	cvIDs := make([]string, 0, len(rankings))
	for cvID := range rankings {
		cvIDs = append(cvIDs, cvID)
	}
	sort.Strings(cvIDs)

	dir := f.RunDir(name)
	pivotPath := filepath.Join(dir, "ranking_pivot.csv")
	if err := writePivot(pivotPath, labels, cvIDs, names, rankings); err != nil {
		return nil, err
	}

	variancePath := filepath.Join(dir, "high_variance.csv")
	highVariance, err := writeHighVariance(variancePath, labels, cvIDs, names, rankings, threshold)
	if err != nil {
		return nil, err
	}

	f.logger.Info("report written",
		zap.String("run", name),
		zap.Int("candidates", len(cvIDs)),
		zap.Int("runs", len(labels)),
		zap.Int("high_variance", highVariance),
	)

	return &ReportSummary{
		Run:              name,
		Candidates:       len(cvIDs),
		Runs:             len(labels),
		HighVariance:     highVariance,
		PivotPath:        pivotPath,
		HighVariancePath: variancePath,
	}, nil
}

func writePivot(path string, labels, cvIDs []string, names map[string]string, rankings map[string]map[string]int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ranking_pivot.csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := append([]string{"cv_id", "name"}, labels...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write ranking_pivot.csv: %w", err)
	}

	for _, cvID := range cvIDs {
		row := []string{cvID, names[cvID]}
		for _, label := range labels {
			ranking, ok := rankings[cvID][label]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.Itoa(ranking))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write ranking_pivot.csv: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ranking_pivot.csv: %w", err)
	}
	return nil
}

func writeHighVariance(path string, labels, cvIDs []string, names map[string]string, rankings map[string]map[string]int, threshold int) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create high_variance.csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"cv_id", "name", "min", "max", "spread"}); err != nil {
		return 0, fmt.Errorf("write high_variance.csv: %w", err)
	}

	count := 0
	for _, cvID := range cvIDs {
		low, high, observed := 0, 0, 0
		for _, label := range labels {
			ranking, ok := rankings[cvID][label]
			if !ok || ranking == 0 {
				continue
			}
			if observed == 0 || ranking < low {
				low = ranking
			}
			if ranking > high {
				high = ranking
			}
			observed++
		}
		if observed < 2 || high-low < threshold {
			continue
		}
		row := []string{cvID, names[cvID], strconv.Itoa(low), strconv.Itoa(high), strconv.Itoa(high - low)}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("write high_variance.csv: %w", err)
		}
		count++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush high_variance.csv: %w", err)
	}
	return count, nil
}
