package pipeline

import (
	"fmt"
	"math"
	"strings"
)

// ScoreForRating maps a free-text criterion rating onto the 1-4 scale.
// Matching is case-insensitive and substring-based, so "Very Good" and
// "good fit" both score 3. Unrecognized ratings land on 2.
func ScoreForRating(rating string) int {
	lower := strings.ToLower(rating)
	switch {
	case strings.Contains(lower, "excellent"):
		return 4
	case strings.Contains(lower, "good"):
		return 3
	case strings.Contains(lower, "weak"), strings.Contains(lower, "borderline"):
		return 2
	case strings.Contains(lower, "not a fit"), strings.Contains(lower, "not fit"):
		return 1
	default:
		return 2
	}
}

// Aggregate combines per-criterion evaluations into a final ranking
// without an extra model call. A missing evaluation contributes a forced
// score of 2 so one failed criterion cannot sink the candidate. The
// average is rounded half-up and clamped to [1,4].
func Aggregate(evaluations map[string]*CriterionEvaluation) (int, string) {
	var (
		sum   int
		parts []string
	)

	for _, criterion := range Criteria {
		eval := evaluations[criterion.Key]
		if eval == nil {
			sum += 2
			parts = append(parts, fmt.Sprintf("%s: Error in evaluation (score: 2)", criterion.Key))
			continue
		}
		score := ScoreForRating(eval.Rating)
		sum += score
		parts = append(parts, fmt.Sprintf("%s: %s (score: %d)", criterion.Key, eval.Rating, score))
	}

	average := float64(sum) / float64(len(Criteria))
	ranking := int(math.Round(average))
	if ranking < 1 {
		ranking = 1
	}
	if ranking > 4 {
		ranking = 4
	}

	reasoning := fmt.Sprintf("Algorithmic aggregation: Average of criteria scores = %.2f → %d\n", average, ranking) +
		strings.Join(parts, "\n")

	return ranking, reasoning
}
