// Package filter produces the candidate document set for a query: the union
// or intersection, across the searchable fields, of documents containing the
// query tokens.
package filter

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/crauzier/catalogsearch/internal/index"
)

// Mode selects the token-presence policy.
type Mode int

const (
	// ModeAny keeps documents containing at least one query token.
	ModeAny Mode = iota
	// ModeAll keeps documents containing every query token.
	ModeAll
)

// ParseMode maps the config strings "any"/"all" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "any", "":
		return ModeAny, nil
	case "all":
		return ModeAll, nil
	default:
		return ModeAny, fmt.Errorf("unknown filter mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "any"
}

// lookupField names one concurrently queried source. Title and description
// consult the inverted indexes; brand and origin consult the feature index,
// where a token matches a whole feature value.
type lookupField struct {
	name string
	docs func(s *index.Store, token string) *roaring.Bitmap
}

var lookupFields = []lookupField{
	{"title", func(s *index.Store, token string) *roaring.Bitmap {
		return s.DocsForTerm(index.FieldTitle, token)
	}},
	{"description", func(s *index.Store, token string) *roaring.Bitmap {
		return s.DocsForTerm(index.FieldDescription, token)
	}},
	{"brand", func(s *index.Store, token string) *roaring.Bitmap {
		return s.FeatureDocs("brand", token)
	}},
	{"origin", func(s *index.Store, token string) *roaring.Bitmap {
		return s.FeatureDocs("origin", token)
	}},
}

// Filter runs candidate selection over a read-only Store.
type Filter struct {
	store *index.Store
}

// New creates a Filter over the given store.
func New(store *index.Store) *Filter {
	return &Filter{store: store}
}

// Candidates returns the candidate set for the tokens under the given mode.
// Per-field lookups run concurrently; the join below is the synchronization
// barrier before scoring. An empty token set yields an empty set under both
// modes; there is no implicit match-everything.
func (f *Filter) Candidates(ctx context.Context, tokens []string, mode Mode) (*roaring.Bitmap, error) {
	if len(tokens) == 0 {
		return roaring.New(), nil
	}

	perField := make([]map[string]*roaring.Bitmap, len(lookupFields))
	g, _ := errgroup.WithContext(ctx)
	for i, field := range lookupFields {
		g.Go(func() error {
			found := make(map[string]*roaring.Bitmap)
			for _, token := range tokens {
				if bm := field.docs(f.store, token); bm != nil && !bm.IsEmpty() {
					found[token] = bm
				}
			}
			perField[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeAll:
		return intersectAll(tokens, perField), nil
	default:
		return unionAny(tokens, perField), nil
	}
}

// Any is Candidates with ModeAny.
func (f *Filter) Any(ctx context.Context, tokens []string) (*roaring.Bitmap, error) {
	return f.Candidates(ctx, tokens, ModeAny)
}

// All is Candidates with ModeAll.
func (f *Filter) All(ctx context.Context, tokens []string) (*roaring.Bitmap, error) {
	return f.Candidates(ctx, tokens, ModeAll)
}

// tokenDocs merges one token's postings across every field.
func tokenDocs(token string, perField []map[string]*roaring.Bitmap) *roaring.Bitmap {
	sets := make([]*roaring.Bitmap, 0, len(perField))
	for _, found := range perField {
		if bm, ok := found[token]; ok {
			sets = append(sets, bm)
		}
	}
	switch len(sets) {
	case 0:
		return roaring.New()
	case 1:
		// Clone so callers can intersect in place without touching the
		// store's posting set.
		return sets[0].Clone()
	default:
		return roaring.FastOr(sets...)
	}
}

func unionAny(tokens []string, perField []map[string]*roaring.Bitmap) *roaring.Bitmap {
	out := roaring.New()
	for _, token := range tokens {
		out.Or(tokenDocs(token, perField))
	}
	return out
}

func intersectAll(tokens []string, perField []map[string]*roaring.Bitmap) *roaring.Bitmap {
	out := tokenDocs(tokens[0], perField)
	for _, token := range tokens[1:] {
		out.And(tokenDocs(token, perField))
		if out.IsEmpty() {
			return out
		}
	}
	return out
}
