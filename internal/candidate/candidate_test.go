package candidate

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		expect  string
	}{
		{"markdown heading", "# Jane Doe\nEngineer at Acme", "Jane Doe"},
		{"underscored", "__Bob Smith__\nRecruiter", "Bob Smith"},
		{"plain first line", "Alice Jones\nCTO", "Alice Jones"},
		{"empty content", "", "Unknown"},
		{"decoration only", "###\nbody", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Candidate{ID: "X", Content: tt.content}
			require.Equal(t, tt.expect, c.DisplayName())
		})
	}
}

func TestLoadAndFilter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cvs.json")
	payload := `[{"id": "A1", "content": "# One"}, {"id": "B2", "content": "# Two"}, {"id": "C3", "content": "# Three"}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	candidates, err := Load(path)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	filtered := FilterByIDs(candidates, []string{"C3", "A1"})
	require.Equal(t, []string{"A1", "C3"}, IDs(filtered))

	require.Equal(t, candidates, FilterByIDs(candidates, nil))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestSanitizeBlindsAndMaps(t *testing.T) {
	t.Parallel()

	original := []Candidate{
		{ID: "cv_jane", Content: "# Jane Doe\nEngineer"},
		{ID: "cv_bob", Content: "# Bob Smith\nRecruiter"},
		{ID: "cv_alice", Content: "# Alice Jones\nCTO"},
	}

	sanitized, mapping := Sanitize(original, rand.New(rand.NewSource(42)))
	require.Len(t, sanitized, 3)
	require.Len(t, mapping, 3)

	seenOriginals := make(map[string]bool)
	for _, c := range sanitized {
		require.Len(t, c.ID, idLength)

		entry, ok := mapping[c.ID]
		require.True(t, ok, "sanitized id %s missing from mapping", c.ID)
		require.NotEmpty(t, entry.OriginalName)
		seenOriginals[entry.OriginalID] = true
	}
	require.Len(t, seenOriginals, 3)

	// Input list is never mutated.
	require.Equal(t, "cv_jane", original[0].ID)
}

func TestSanitizeRoundTripThroughFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sanitized, mapping := Sanitize([]Candidate{{ID: "one", Content: "# A"}}, rand.New(rand.NewSource(1)))

	cvsPath := filepath.Join(dir, "cvs_sanitized.json")
	mappingPath := filepath.Join(dir, "cv_id_mapping.json")
	require.NoError(t, WriteJSON(cvsPath, sanitized))
	require.NoError(t, WriteJSON(mappingPath, mapping))

	loaded, err := Load(cvsPath)
	require.NoError(t, err)
	require.Equal(t, sanitized, loaded)

	loadedMapping, err := LoadMapping(mappingPath)
	require.NoError(t, err)
	require.Equal(t, mapping, loadedMapping)
}
