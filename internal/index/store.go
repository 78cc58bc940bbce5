// Package index implements the coupled index structures built once from the
// product catalog: per-field inverted and positional indexes, review
// statistics, and feature-value indexes. A Store is immutable after Build or
// Load and is shared read-only by every query.
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Field names an indexed text field of a product record.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
)

// TextFields lists the fields carrying inverted and positional indexes.
var TextFields = []Field{FieldTitle, FieldDescription}

// ReviewStats aggregates a product's reviews.
type ReviewStats struct {
	TotalReviews int     `json:"total_reviews"`
	AverageScore float64 `json:"average_score"`
	LastScore    float64 `json:"last_score"`
}

// Document is the displayable subset of a product record kept for result
// rendering and exact-match scoring.
type Document struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
}

// Store holds every index structure. Documents are addressed internally by
// dense uint32 ids so posting sets can be roaring bitmaps; URLs appear only
// at the edges (persistence and result records).
type Store struct {
	urls []string
	ids  map[string]uint32
	docs []Document

	inverted  map[Field]map[string]*roaring.Bitmap
	positions map[Field]map[string]map[uint32][]int
	reviews   map[uint32]ReviewStats
	features  map[string]map[string]*roaring.Bitmap

	docLengths map[Field][]int
	avgLength  map[Field]float64
	vocab      map[string]int
	skipped    int
}

// TotalDocs returns the number of indexed documents.
func (s *Store) TotalDocs() int {
	return len(s.urls)
}

// SkippedRecords returns how many malformed records Build dropped.
func (s *Store) SkippedRecords() int {
	return s.skipped
}

// URL returns the canonical URL for a document id.
func (s *Store) URL(id uint32) string {
	return s.urls[id]
}

// DocID resolves a URL to its internal document id.
func (s *Store) DocID(url string) (uint32, bool) {
	id, ok := s.ids[url]
	return id, ok
}

// Doc returns the displayable document for an id.
func (s *Store) Doc(id uint32) Document {
	return s.docs[id]
}

// DocsForTerm returns the set of documents containing term in field, or nil
// when the term is absent. The returned bitmap must not be mutated.
func (s *Store) DocsForTerm(field Field, term string) *roaring.Bitmap {
	return s.inverted[field][term]
}

// Positions returns the ordered token positions of term in field for the
// given document. Empty when the term does not occur there.
func (s *Store) Positions(field Field, term string, id uint32) []int {
	return s.positions[field][term][id]
}

// TermFrequency is the number of occurrences of term in field for id,
// taken from the positional index.
func (s *Store) TermFrequency(field Field, term string, id uint32) int {
	return len(s.positions[field][term][id])
}

// DocFrequency is the number of documents containing term in field.
func (s *Store) DocFrequency(field Field, term string) int {
	if bm := s.inverted[field][term]; bm != nil {
		return int(bm.GetCardinality())
	}
	return 0
}

// DocLength is the token count of field for id.
func (s *Store) DocLength(field Field, id uint32) int {
	lengths := s.docLengths[field]
	if int(id) >= len(lengths) {
		return 0
	}
	return lengths[id]
}

// AvgLength is the corpus-wide mean token count of field, fixed at build
// time.
func (s *Store) AvgLength(field Field) float64 {
	return s.avgLength[field]
}

// Reviews returns the aggregated review statistics for id.
func (s *Store) Reviews(id uint32) (ReviewStats, bool) {
	stats, ok := s.reviews[id]
	return stats, ok
}

// FeatureDocs returns the set of documents whose feature (for example
// "brand" or "origin") has the given lower-cased value, or nil.
func (s *Store) FeatureDocs(feature, value string) *roaring.Bitmap {
	return s.features[feature][value]
}

// Vocabulary returns term → total corpus frequency across all text fields.
// The map is shared; callers must not mutate it.
func (s *Store) Vocabulary() map[string]int {
	return s.vocab
}

// InvertedEntries snapshots field's inverted index as term → sorted URLs.
func (s *Store) InvertedEntries(field Field) map[string][]string {
	entries := make(map[string][]string, len(s.inverted[field]))
	for term, bm := range s.inverted[field] {
		urls := make([]string, 0, bm.GetCardinality())
		it := bm.Iterator()
		for it.HasNext() {
			urls = append(urls, s.urls[it.Next()])
		}
		sort.Strings(urls)
		entries[term] = urls
	}
	return entries
}

// PositionEntries snapshots field's positional index as
// term → URL → positions.
func (s *Store) PositionEntries(field Field) map[string]map[string][]int {
	entries := make(map[string]map[string][]int, len(s.positions[field]))
	for term, byDoc := range s.positions[field] {
		perURL := make(map[string][]int, len(byDoc))
		for id, positions := range byDoc {
			perURL[s.urls[id]] = append([]int(nil), positions...)
		}
		entries[term] = perURL
	}
	return entries
}

// ReviewEntries snapshots the review index keyed by URL.
func (s *Store) ReviewEntries() map[string]ReviewStats {
	entries := make(map[string]ReviewStats, len(s.reviews))
	for id, stats := range s.reviews {
		entries[s.urls[id]] = stats
	}
	return entries
}

// FeatureEntries snapshots the feature index as
// feature → value → sorted URLs.
func (s *Store) FeatureEntries() map[string]map[string][]string {
	entries := make(map[string]map[string][]string, len(s.features))
	for feature, byValue := range s.features {
		values := make(map[string][]string, len(byValue))
		for value, bm := range byValue {
			urls := make([]string, 0, bm.GetCardinality())
			it := bm.Iterator()
			for it.HasNext() {
				urls = append(urls, s.urls[it.Next()])
			}
			sort.Strings(urls)
			values[value] = urls
		}
		entries[feature] = values
	}
	return entries
}
