package normalize

import (
	"sort"
)

// DefaultMinSimilarity is the similarity threshold below which a fuzzy
// candidate is rejected and the original term returned unchanged.
// Similarity is 1 - editDistance/max(len). The value is pinned because it
// affects ranked order and test determinism.
const DefaultMinSimilarity = 0.75

// Corrector fixes query-term misspellings against the index vocabulary.
// Correction is attempted in two stages: a symmetric-delete dictionary
// lookup (all single-character deletions of each vocabulary term are
// precomputed), then a full fuzzy edit-distance scan as a fallback. Both
// stages degrade to identity; Correct never fails.
type Corrector struct {
	vocab         map[string]int
	deletes       map[string][]string
	minSimilarity float64
}

// NewCorrector builds a Corrector for the given vocabulary, where map values
// are corpus term frequencies used to break candidate ties.
func NewCorrector(vocab map[string]int) *Corrector {
	c := &Corrector{
		vocab:         vocab,
		deletes:       make(map[string][]string),
		minSimilarity: DefaultMinSimilarity,
	}
	for term := range vocab {
		for _, d := range deletions(term) {
			c.deletes[d] = append(c.deletes[d], term)
		}
	}
	for d := range c.deletes {
		sort.Strings(c.deletes[d])
	}
	return c
}

// Correct returns the best in-vocabulary replacement for term, or term
// itself when it is already known or no candidate clears the similarity
// threshold.
func (c *Corrector) Correct(term string) string {
	if term == "" {
		return term
	}
	if _, ok := c.vocab[term]; ok {
		return term
	}
	if best, ok := c.dictionaryCandidate(term); ok {
		return best
	}
	if best, ok := c.fuzzyCandidate(term); ok {
		return best
	}
	return term
}

// dictionaryCandidate collects vocabulary terms reachable through the
// delete map: the term's own deletions and the deletions of each candidate
// overlap for edits of distance one (and common transpositions).
func (c *Corrector) dictionaryCandidate(term string) (string, bool) {
	seen := make(map[string]struct{})
	var candidates []string
	consider := func(words []string) {
		for _, w := range words {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			candidates = append(candidates, w)
		}
	}
	consider(c.deletes[term])
	for _, d := range deletions(term) {
		if _, ok := c.vocab[d]; ok {
			consider([]string{d})
		}
		consider(c.deletes[d])
	}
	return c.pickBest(term, candidates)
}

// fuzzyCandidate scans the whole vocabulary with plain edit distance. It is
// the slow path, only reached when the delete map has nothing to offer.
func (c *Corrector) fuzzyCandidate(term string) (string, bool) {
	candidates := make([]string, 0, len(c.vocab))
	for w := range c.vocab {
		candidates = append(candidates, w)
	}
	return c.pickBest(term, candidates)
}

// pickBest ranks candidates by similarity, then corpus frequency, then
// lexicographic order, and rejects anything below the threshold.
func (c *Corrector) pickBest(term string, candidates []string) (string, bool) {
	best := ""
	bestSim := 0.0
	bestFreq := 0
	for _, w := range candidates {
		sim := similarity(term, w)
		if sim < c.minSimilarity {
			continue
		}
		freq := c.vocab[w]
		switch {
		case sim > bestSim:
		case sim == bestSim && freq > bestFreq:
		case sim == bestSim && freq == bestFreq && best != "" && w < best:
		default:
			continue
		}
		best, bestSim, bestFreq = w, sim, freq
	}
	return best, best != ""
}

// deletions returns every string produced by removing one character from
// term. Single-character terms produce nothing.
func deletions(term string) []string {
	if len(term) < 2 {
		return nil
	}
	runes := []rune(term)
	out := make([]string, 0, len(runes))
	for i := range runes {
		d := make([]rune, 0, len(runes)-1)
		d = append(d, runes[:i]...)
		d = append(d, runes[i+1:]...)
		out = append(out, string(d))
	}
	return out
}

// similarity maps edit distance into [0,1], where 1 is an exact match.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(longest)
}

// editDistance computes the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
