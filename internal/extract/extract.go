// Package extract turns free-form model output into structured data. Models
// wrap JSON in prose and code fences, or return something else entirely, so
// every entry point degrades to a "no structure found" signal instead of an
// error.
package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Object extracts a JSON object from raw model output. It prefers the
// interior of a ```json fence, then any fenced block, then the raw text.
// The boolean is false when no strict JSON object could be decoded.
func Object(raw string) (map[string]any, bool) {
	candidate := CandidateJSON(raw)

	decoder := json.NewDecoder(strings.NewReader(candidate))
	decoder.UseNumber()

	var parsed map[string]any
	if err := decoder.Decode(&parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// CandidateJSON returns the slice of raw most likely to hold JSON, applying
// the fence-stripping policy without attempting a parse.
func CandidateJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if inner, ok := innerFence(raw, "json"); ok {
		return inner
	}
	if inner, ok := innerFence(raw, ""); ok {
		return inner
	}
	return raw
}

func innerFence(s, tag string) (string, bool) {
	marker := "```" + tag
	idx := strings.Index(s, marker)
	if idx == -1 {
		return "", false
	}
	rest := s[idx+len(marker):]
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

var rankingPattern = regexp.MustCompile(`"ranking"\s*:\s*(-?\d+)`)

// ScanRanking is the last line of defense before declaring a ranking
// undeterminable: a direct text scan for a `"ranking": <integer>` fragment
// anywhere in the raw output.
func ScanRanking(raw string) (int, bool) {
	match := rankingPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return clampRanking(n), true
}

// CoerceRanking normalizes whatever shape a model put in a "ranking" field
// into an integer ranking. Integers pass through, floats and numeric strings
// truncate, a mapping of sub-scores averages its numeric values, anything
// else is 0 (undeterminable). Positive results are clamped into [1,4].
func CoerceRanking(v any) int {
	switch value := v.(type) {
	case int:
		return clampRanking(value)
	case int64:
		return clampRanking(int(value))
	case float64:
		return clampRanking(int(value))
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return clampRanking(int(n))
		}
		if f, err := value.Float64(); err == nil {
			return clampRanking(int(f))
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return clampRanking(int(f))
	case map[string]any:
		return clampRanking(averageNumeric(value))
	default:
		return 0
	}
}

func averageNumeric(scores map[string]any) int {
	var sum float64
	var count int
	for _, v := range scores {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		sum += f
		count++
	}
	if count == 0 {
		return 0
	}
	return int(math.Round(sum / float64(count)))
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clampRanking(n int) int {
	if n <= 0 {
		return 0
	}
	if n > 4 {
		return 4
	}
	return n
}
