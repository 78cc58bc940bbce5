package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/crauzier/catalogsearch/internal/catalog"
	apperrors "github.com/crauzier/catalogsearch/pkg/errors"
)

// Index file names within the data directory. Each of the six structures is
// serialized as its own JSON object keyed by term, URL, or feature.
const (
	TitleIndexFile           = "title_index.json"
	DescriptionIndexFile     = "description_index.json"
	TitlePositionsFile       = "title_positions.json"
	DescriptionPositionsFile = "description_positions.json"
	ReviewsIndexFile         = "reviews_index.json"
	FeaturesIndexFile        = "features_index.json"
)

// Save serializes all six index structures into dir. Files are written to a
// temp path and renamed, so a crash never leaves a half-written index.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	files := map[string]any{
		TitleIndexFile:           s.InvertedEntries(FieldTitle),
		DescriptionIndexFile:     s.InvertedEntries(FieldDescription),
		TitlePositionsFile:       s.PositionEntries(FieldTitle),
		DescriptionPositionsFile: s.PositionEntries(FieldDescription),
		ReviewsIndexFile:         s.ReviewEntries(),
		FeaturesIndexFile:        s.FeatureEntries(),
	}
	for name, payload := range files {
		if err := writeJSON(filepath.Join(dir, name), payload); err != nil {
			return fmt.Errorf("saving %s: %w", name, err)
		}
	}
	return nil
}

// Load reconstructs a Store from the index files in dir. Document ids are
// reassigned over the sorted URL set, so loaded bitmaps are content-equal to
// the built ones even though the raw id values may differ. The catalog
// records supply the displayable document fields, exactly as the original
// products file accompanies the serialized indexes.
func Load(dir string, records []catalog.Product) (*Store, error) {
	var (
		titleIndex    map[string][]string
		descIndex     map[string][]string
		titlePos      map[string]map[string][]int
		descPos       map[string]map[string][]int
		reviewEntries map[string]ReviewStats
		featEntries   map[string]map[string][]string
	)
	reads := []struct {
		name string
		dst  any
	}{
		{TitleIndexFile, &titleIndex},
		{DescriptionIndexFile, &descIndex},
		{TitlePositionsFile, &titlePos},
		{DescriptionPositionsFile, &descPos},
		{ReviewsIndexFile, &reviewEntries},
		{FeaturesIndexFile, &featEntries},
	}
	for _, r := range reads {
		if err := readJSON(filepath.Join(dir, r.name), r.dst); err != nil {
			return nil, fmt.Errorf("loading %s: %w", r.name, err)
		}
	}

	s := newStore()
	s.assignIDs(collectURLs(titleIndex, descIndex, titlePos, descPos, reviewEntries, featEntries))
	if len(s.urls) == 0 {
		return nil, apperrors.ErrEmptyCorpus
	}

	s.loadInverted(FieldTitle, titleIndex)
	s.loadInverted(FieldDescription, descIndex)
	s.loadPositions(FieldTitle, titlePos)
	s.loadPositions(FieldDescription, descPos)
	for url, stats := range reviewEntries {
		if id, ok := s.ids[url]; ok {
			s.reviews[id] = stats
		}
	}
	for feature, byValue := range featEntries {
		values := make(map[string]*roaring.Bitmap, len(byValue))
		for value, urls := range byValue {
			bm := roaring.New()
			for _, url := range urls {
				if id, ok := s.ids[url]; ok {
					bm.Add(id)
				}
			}
			values[value] = bm
		}
		s.features[feature] = values
	}

	s.attachDocs(records)
	s.deriveStats()
	return s, nil
}

func (s *Store) assignIDs(urls []string) {
	sort.Strings(urls)
	s.urls = urls
	s.docs = make([]Document, len(urls))
	for i, url := range urls {
		s.ids[url] = uint32(i)
		s.docs[i] = Document{URL: url}
	}
}

func (s *Store) loadInverted(field Field, entries map[string][]string) {
	for term, urls := range entries {
		bm := roaring.New()
		for _, url := range urls {
			if id, ok := s.ids[url]; ok {
				bm.Add(id)
			}
		}
		s.inverted[field][term] = bm
	}
}

func (s *Store) loadPositions(field Field, entries map[string]map[string][]int) {
	for term, byURL := range entries {
		byDoc := make(map[uint32][]int, len(byURL))
		for url, positions := range byURL {
			if id, ok := s.ids[url]; ok {
				byDoc[id] = positions
			}
		}
		s.positions[field][term] = byDoc
	}
}

func (s *Store) attachDocs(records []catalog.Product) {
	for _, rec := range records {
		id, ok := s.ids[rec.URL]
		if !ok {
			continue
		}
		s.docs[id] = Document{
			URL:         rec.URL,
			Title:       rec.Title,
			Description: rec.Description,
			Brand:       rec.Brand(),
		}
	}
}

// deriveStats rebuilds the per-document field lengths, average lengths, and
// vocabulary frequencies from the positional indexes. Every token occupies
// exactly one position, so a field's length is the total position count
// across its terms.
func (s *Store) deriveStats() {
	for _, field := range TextFields {
		lengths := make([]int, len(s.urls))
		for term, byDoc := range s.positions[field] {
			for id, positions := range byDoc {
				lengths[id] += len(positions)
				s.vocab[term] += len(positions)
			}
		}
		s.docLengths[field] = lengths
	}
	s.finalize()
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func collectURLs(
	titleIndex, descIndex map[string][]string,
	titlePos, descPos map[string]map[string][]int,
	reviews map[string]ReviewStats,
	features map[string]map[string][]string,
) []string {
	seen := make(map[string]struct{})
	for _, urls := range titleIndex {
		for _, u := range urls {
			seen[u] = struct{}{}
		}
	}
	for _, urls := range descIndex {
		for _, u := range urls {
			seen[u] = struct{}{}
		}
	}
	for _, byURL := range titlePos {
		for u := range byURL {
			seen[u] = struct{}{}
		}
	}
	for _, byURL := range descPos {
		for u := range byURL {
			seen[u] = struct{}{}
		}
	}
	for u := range reviews {
		seen[u] = struct{}{}
	}
	for _, byValue := range features {
		for _, urls := range byValue {
			for _, u := range urls {
				seen[u] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	return out
}
