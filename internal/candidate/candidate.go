// Package candidate holds the CV records flowing through the ranking
// pipelines. Candidates are immutable inputs: transforms like sanitization
// produce new values instead of mutating in place.
package candidate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RedactedName replaces display names when blind evaluation is requested.
const RedactedName = "[REDACTED]"

// Candidate is one CV record.
type Candidate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// DisplayName derives a human-readable name from the CV content: the first
// line with markdown heading and underscore characters stripped.
func (c Candidate) DisplayName() string {
	content := strings.TrimSpace(c.Content)
	if content == "" {
		return "Unknown"
	}

	firstLine, _, _ := strings.Cut(content, "\n")
	name := strings.NewReplacer("#", "", "_", "").Replace(firstLine)
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown"
	}
	return name
}

// Load reads an ordered candidate list from a JSON file.
func Load(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidates from %q: %w", path, err)
	}

	var candidates []Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("parsing candidates from %q: %w", path, err)
	}
	return candidates, nil
}

// FilterByIDs returns the candidates whose IDs appear in ids, preserving the
// original order. An empty filter returns the input unchanged.
func FilterByIDs(candidates []Candidate, ids []string) []Candidate {
	if len(ids) == 0 {
		return candidates
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[strings.TrimSpace(id)] = struct{}{}
	}

	filtered := make([]Candidate, 0, len(ids))
	for _, c := range candidates {
		if _, ok := wanted[c.ID]; ok {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// IDs returns the candidate identifiers in input order.
func IDs(candidates []Candidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
