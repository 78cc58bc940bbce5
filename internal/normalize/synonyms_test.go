package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func originSynonyms() *Synonyms {
	return NewSynonyms(map[string][]string{
		"usa": {"United States", "America", "US"},
	})
}

func TestExpandCanonicalKey(t *testing.T) {
	s := originSynonyms()

	out := s.Expand([]string{"made", "usa"})
	assert.Equal(t, []string{"made", "usa", "america", "states", "united", "us"}, out)
}

func TestExpandAlternateAddsCanonical(t *testing.T) {
	s := originSynonyms()

	out := s.Expand([]string{"america"})
	assert.Equal(t, []string{"america", "states", "united", "us", "usa"}, out)
}

func TestExpandPreservesOriginalOrder(t *testing.T) {
	s := originSynonyms()

	out := s.Expand([]string{"dark", "chocolate", "usa"})
	assert.Equal(t, []string{"dark", "chocolate", "usa"}, out[:3])
}

func TestExpandNoMatchIsIdentity(t *testing.T) {
	s := originSynonyms()

	in := []string{"dark", "chocolate"}
	assert.Equal(t, in, s.Expand(in))
}

func TestExpandIsIdempotent(t *testing.T) {
	s := NewSynonyms(map[string][]string{
		"usa":         {"United States", "America", "US"},
		"switzerland": {"Swiss Confederation", "Suisse"},
	})

	once := s.Expand([]string{"usa", "swiss"})
	twice := s.Expand(once)
	assert.Equal(t, once, twice)
}

func TestExpandEmptyTokens(t *testing.T) {
	s := originSynonyms()
	assert.Empty(t, s.Expand(nil))
}

func TestLoadSynonymsMissingFile(t *testing.T) {
	s, err := LoadSynonyms(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"usa"}, s.Expand([]string{"usa"}))
}

func TestLoadSynonymsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "origin_synonyms.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"usa": ["America", "US"]}`), 0o644))

	s, err := LoadSynonyms(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"us", "america", "usa"}, s.Expand([]string{"us"}))
}

func TestLoadSynonymsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadSynonyms(path)
	assert.Error(t, err)
}
