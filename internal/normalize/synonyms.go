package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Synonyms maps a canonical feature value (for example an origin country) to
// its equivalent alternate strings. It is used only for query-time
// expansion; the indexes are never rewritten.
type Synonyms struct {
	canon map[string][]string
}

// NewSynonyms builds a Synonyms table from canonical → alternates entries.
// Keys and values are lower-cased.
func NewSynonyms(entries map[string][]string) *Synonyms {
	canon := make(map[string][]string, len(entries))
	for key, alts := range entries {
		lowered := make([]string, 0, len(alts))
		for _, a := range alts {
			lowered = append(lowered, strings.ToLower(a))
		}
		sort.Strings(lowered)
		canon[strings.ToLower(key)] = lowered
	}
	return &Synonyms{canon: canon}
}

// LoadSynonyms reads a JSON file of canonical → alternates. A missing file
// is not an error: expansion simply becomes a no-op.
func LoadSynonyms(path string) (*Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSynonyms(nil), nil
		}
		return nil, fmt.Errorf("reading synonyms %s: %w", path, err)
	}
	var entries map[string][]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing synonyms %s: %w", path, err)
	}
	return NewSynonyms(entries), nil
}

// Expand returns tokens augmented with every equivalent of any token that
// matches a canonical key or one of its alternates. Expansion is strictly
// additive and idempotent: original tokens keep their order, new terms are
// appended in sorted order, multi-word alternates are tokenized first.
// Additions are applied to a fixpoint so chained synonym classes cannot make
// a second Expand discover anything new.
func (s *Synonyms) Expand(tokens []string) []string {
	if len(tokens) == 0 || len(s.canon) == 0 {
		return tokens
	}
	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}

	added := make(map[string]struct{})
	frontier := tokens
	for len(frontier) > 0 {
		var next []string
		for _, token := range frontier {
			for key, alts := range s.canon {
				if !matches(token, key, alts) {
					continue
				}
				for _, term := range append([]string{key}, alts...) {
					for _, sub := range Terms(term) {
						if _, ok := present[sub]; ok {
							continue
						}
						present[sub] = struct{}{}
						added[sub] = struct{}{}
						next = append(next, sub)
					}
				}
			}
		}
		frontier = next
	}
	if len(added) == 0 {
		return tokens
	}

	extra := make([]string, 0, len(added))
	for term := range added {
		extra = append(extra, term)
	}
	sort.Strings(extra)

	out := make([]string, 0, len(tokens)+len(extra))
	out = append(out, tokens...)
	out = append(out, extra...)
	return out
}

func matches(token, key string, alts []string) bool {
	if token == key {
		return true
	}
	for _, a := range alts {
		if token == a {
			return true
		}
	}
	return false
}
