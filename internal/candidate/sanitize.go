package candidate

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const idLength = 8

// MappingEntry associates a sanitized ID with the original identifying
// metadata so reports can be de-anonymized later.
type MappingEntry struct {
	OriginalID   string `json:"original_id"`
	OriginalName string `json:"original_name"`
}

// Sanitize produces a blinded copy of the candidate list: randomized IDs,
// shuffled order, and content-only records. The returned mapping allows
// reversing the blinding.
func Sanitize(candidates []Candidate, rng *rand.Rand) ([]Candidate, map[string]MappingEntry) {
	shuffled := make([]Candidate, len(candidates))
	copy(shuffled, candidates)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	mapping := make(map[string]MappingEntry, len(shuffled))
	sanitized := make([]Candidate, 0, len(shuffled))

	for _, c := range shuffled {
		newID := randomID(rng)
		for _, taken := mapping[newID]; taken; _, taken = mapping[newID] {
			newID = randomID(rng)
		}

		mapping[newID] = MappingEntry{
			OriginalID:   c.ID,
			OriginalName: c.DisplayName(),
		}
		sanitized = append(sanitized, Candidate{ID: newID, Content: c.Content})
	}

	return sanitized, mapping
}

func randomID(rng *rand.Rand) string {
	id := make([]byte, idLength)
	for i := range id {
		id[i] = idAlphabet[rng.Intn(len(idAlphabet))]
	}
	return string(id)
}

// WriteJSON dumps v to path with indentation, for both sanitized candidate
// lists and ID mappings.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %q: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadMapping reads a previously written ID mapping.
func LoadMapping(path string) (map[string]MappingEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading id mapping from %q: %w", path, err)
	}

	var mapping map[string]MappingEntry
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parsing id mapping from %q: %w", path, err)
	}
	return mapping, nil
}
