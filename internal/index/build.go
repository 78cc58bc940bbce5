package index

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/crauzier/catalogsearch/internal/catalog"
	"github.com/crauzier/catalogsearch/internal/normalize"
	apperrors "github.com/crauzier/catalogsearch/pkg/errors"
)

// Build constructs every index structure in a single pass over the catalog.
// Indexing uses raw tokenization only, with no spelling correction or synonym
// expansion. Records without a URL are skipped and counted; the first record
// wins when a URL repeats. Build is deterministic: the same input yields
// content-identical indexes regardless of map iteration order.
func Build(records []catalog.Product) (*Store, error) {
	s := newStore()
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.skipped++
			continue
		}
		if _, dup := s.ids[rec.URL]; dup {
			s.skipped++
			continue
		}
		s.addRecord(rec)
	}
	if len(s.urls) == 0 {
		return nil, apperrors.ErrEmptyCorpus
	}
	s.finalize()
	return s, nil
}

func newStore() *Store {
	s := &Store{
		ids:        make(map[string]uint32),
		inverted:   make(map[Field]map[string]*roaring.Bitmap),
		positions:  make(map[Field]map[string]map[uint32][]int),
		reviews:    make(map[uint32]ReviewStats),
		features:   make(map[string]map[string]*roaring.Bitmap),
		docLengths: make(map[Field][]int),
		avgLength:  make(map[Field]float64),
		vocab:      make(map[string]int),
	}
	for _, field := range TextFields {
		s.inverted[field] = make(map[string]*roaring.Bitmap)
		s.positions[field] = make(map[string]map[uint32][]int)
	}
	return s
}

func (s *Store) addRecord(rec catalog.Product) {
	id := uint32(len(s.urls))
	s.urls = append(s.urls, rec.URL)
	s.ids[rec.URL] = id
	s.docs = append(s.docs, Document{
		URL:         rec.URL,
		Title:       rec.Title,
		Description: rec.Description,
		Brand:       rec.Brand(),
	})

	s.indexField(FieldTitle, rec.Title, id)
	s.indexField(FieldDescription, rec.Description, id)
	s.reviews[id] = summarizeReviews(rec.Reviews)
	s.indexFeatures(rec.Features, id)
}

func (s *Store) indexField(field Field, text string, id uint32) {
	tokens := normalize.Tokenize(text)
	s.docLengths[field] = append(s.docLengths[field], len(tokens))

	for _, token := range tokens {
		bm, ok := s.inverted[field][token.Term]
		if !ok {
			bm = roaring.New()
			s.inverted[field][token.Term] = bm
		}
		bm.Add(id)

		byDoc, ok := s.positions[field][token.Term]
		if !ok {
			byDoc = make(map[uint32][]int)
			s.positions[field][token.Term] = byDoc
		}
		byDoc[id] = append(byDoc[id], token.Position)

		s.vocab[token.Term]++
	}
}

func (s *Store) indexFeatures(features map[string]string, id uint32) {
	for feature, value := range features {
		value = strings.ToLower(strings.TrimSpace(value))
		if feature == "" || value == "" {
			continue
		}
		byValue, ok := s.features[feature]
		if !ok {
			byValue = make(map[string]*roaring.Bitmap)
			s.features[feature] = byValue
		}
		bm, ok := byValue[value]
		if !ok {
			bm = roaring.New()
			byValue[value] = bm
		}
		bm.Add(id)
	}
}

// summarizeReviews computes the aggregates of the review index. Zero
// reviews yield a zero-valued entry, not an absent one, matching the
// serialized index format.
func summarizeReviews(reviews []catalog.Review) ReviewStats {
	if len(reviews) == 0 {
		return ReviewStats{}
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return ReviewStats{
		TotalReviews: len(reviews),
		AverageScore: sum / float64(len(reviews)),
		LastScore:    reviews[len(reviews)-1].Rating,
	}
}

// finalize computes the per-field average document lengths once the corpus
// is fully indexed.
func (s *Store) finalize() {
	for _, field := range TextFields {
		lengths := s.docLengths[field]
		if len(lengths) == 0 {
			continue
		}
		var total int
		for _, l := range lengths {
			total += l
		}
		s.avgLength[field] = float64(total) / float64(len(lengths))
	}
}
