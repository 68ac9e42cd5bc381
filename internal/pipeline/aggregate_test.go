package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreForRating(t *testing.T) {
	cases := []struct {
		rating string
		want   int
	}{
		{"Excellent", 4},
		{"excellent fit", 4},
		{"EXCELLENT", 4},
		{"Good", 3},
		{"Very Good", 3},
		{"Weak", 2},
		{"Borderline", 2},
		{"Not a Fit", 1},
		{"not fit", 1},
		{"NOT A FIT", 1},
		{"Unknown", 2},
		{"", 2},
		{"stellar", 2},
	}

	for _, tc := range cases {
		t.Run(tc.rating, func(t *testing.T) {
			assert.Equal(t, tc.want, ScoreForRating(tc.rating))
		})
	}
}

func evals(ratings ...string) map[string]*CriterionEvaluation {
	m := make(map[string]*CriterionEvaluation, len(ratings))
	for i, rating := range ratings {
		m[Criteria[i].Key] = &CriterionEvaluation{CVID: "CV1", Rating: rating}
	}
	return m
}

func TestAggregate(t *testing.T) {
	cases := []struct {
		name    string
		ratings []string
		want    int
	}{
		{"all excellent", []string{"Excellent", "Excellent", "Excellent"}, 4},
		{"all not a fit", []string{"Not a Fit", "Not a Fit", "Not a Fit"}, 1},
		{"mixed averages to three", []string{"Excellent", "Good", "Weak"}, 3},
		{"rounds down below half", []string{"Excellent", "Weak", "Not a Fit"}, 2},
		{"rounds up above half", []string{"Excellent", "Weak", "Weak"}, 3},
		{"case insensitive", []string{"EXCELLENT", "excellent", "ExCeLlEnT"}, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Aggregate(evals(tc.ratings...))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAggregateReasoningFormat(t *testing.T) {
	ranking, reasoning := Aggregate(evals("Excellent", "Good", "Weak"))
	require.Equal(t, 3, ranking)

	lines := strings.Split(reasoning, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Algorithmic aggregation: Average of criteria scores = 3.00 → 3", lines[0])
	assert.Equal(t, "zero_to_one: Excellent (score: 4)", lines[1])
	assert.Equal(t, "technical_t_shape: Good (score: 3)", lines[2])
	assert.Equal(t, "recruitment_mastery: Weak (score: 2)", lines[3])
}

func TestAggregateMissingEvaluation(t *testing.T) {
	m := evals("Excellent", "Excellent", "Excellent")
	m[Criteria[1].Key] = nil

	ranking, reasoning := Aggregate(m)

	// (4 + 2 + 4) / 3 = 3.33 rounds to 3
	assert.Equal(t, 3, ranking)
	assert.Contains(t, reasoning, "technical_t_shape: Error in evaluation (score: 2)")
}

func TestAggregateAllMissing(t *testing.T) {
	ranking, reasoning := Aggregate(map[string]*CriterionEvaluation{})
	assert.Equal(t, 2, ranking)
	assert.Contains(t, reasoning, "Average of criteria scores = 2.00 → 2")
}
