package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrie() *Trie {
	return FromVocabulary(map[string]int{
		"chocolate":  10,
		"chocolatey": 2,
		"chorizo":    4,
		"cookie":     7,
		"cocoa":      7,
	})
}

func TestSuggestOrdersByFrequency(t *testing.T) {
	trie := sampleTrie()

	got := trie.Suggest("cho", 10)
	require.Len(t, got, 3)
	assert.Equal(t, Suggestion{Term: "chocolate", Freq: 10}, got[0])
	assert.Equal(t, Suggestion{Term: "chorizo", Freq: 4}, got[1])
	assert.Equal(t, Suggestion{Term: "chocolatey", Freq: 2}, got[2])
}

func TestSuggestHonorsLimit(t *testing.T) {
	trie := sampleTrie()

	got := trie.Suggest("cho", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "chocolate", got[0].Term)
}

func TestSuggestTiesBreakLexicographically(t *testing.T) {
	trie := sampleTrie()

	got := trie.Suggest("co", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "cocoa", got[0].Term)
	assert.Equal(t, "cookie", got[1].Term)
}

func TestSuggestUnknownPrefix(t *testing.T) {
	assert.Empty(t, sampleTrie().Suggest("xyz", 5))
}

func TestSuggestEmptyPrefix(t *testing.T) {
	assert.Empty(t, sampleTrie().Suggest("", 5))
}

func TestSuggestPrefixIsItsOwnCompletion(t *testing.T) {
	trie := New()
	trie.Insert("tea", 3)
	trie.Insert("teapot", 1)

	got := trie.Suggest("tea", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "tea", got[0].Term)
	assert.Equal(t, "teapot", got[1].Term)
}

func TestInsertKeepsLargerFrequency(t *testing.T) {
	trie := New()
	trie.Insert("tea", 1)
	trie.Insert("tea", 9)
	trie.Insert("tea", 4)

	assert.Equal(t, 1, trie.Len())
	got := trie.Suggest("t", 1)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Freq)
}

func TestContains(t *testing.T) {
	trie := sampleTrie()
	assert.True(t, trie.Contains("chocolate"))
	assert.False(t, trie.Contains("choc"))
	assert.False(t, trie.Contains("vanilla"))
}
