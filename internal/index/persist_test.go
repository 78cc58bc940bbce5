package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWritesAllSixFiles(t *testing.T) {
	store := buildSample(t)
	dir := t.TempDir()
	require.NoError(t, store.Save(dir))

	for _, name := range []string{
		TitleIndexFile,
		DescriptionIndexFile,
		TitlePositionsFile,
		DescriptionPositionsFile,
		ReviewsIndexFile,
		FeaturesIndexFile,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoErrorf(t, err, "expected %s to exist", name)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	records := sampleCatalog()
	built, err := Build(records)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, built.Save(dir))

	loaded, err := Load(dir, records)
	require.NoError(t, err)

	assert.Equal(t, built.TotalDocs(), loaded.TotalDocs())
	for _, field := range TextFields {
		assert.Equal(t, built.InvertedEntries(field), loaded.InvertedEntries(field))
		assert.Equal(t, built.PositionEntries(field), loaded.PositionEntries(field))
		assert.InDelta(t, built.AvgLength(field), loaded.AvgLength(field), 1e-9)
	}
	assert.Equal(t, built.ReviewEntries(), loaded.ReviewEntries())
	assert.Equal(t, built.FeatureEntries(), loaded.FeatureEntries())
	assert.Equal(t, built.Vocabulary(), loaded.Vocabulary())
}

func TestLoadAttachesCatalogRecords(t *testing.T) {
	records := sampleCatalog()
	built, err := Build(records)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, built.Save(dir))

	loaded, err := Load(dir, records)
	require.NoError(t, err)

	id, ok := loaded.DocID("https://shop.example/choc-bar")
	require.True(t, ok)
	doc := loaded.Doc(id)
	assert.Equal(t, "Dark Chocolate Bar", doc.Title)
	assert.Equal(t, "Rich dark chocolate made from alpine cocoa", doc.Description)
	assert.Equal(t, "Lindt", doc.Brand)
}

func TestLoadDerivesDocLengthsFromPositions(t *testing.T) {
	records := sampleCatalog()
	built, err := Build(records)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, built.Save(dir))

	loaded, err := Load(dir, records)
	require.NoError(t, err)

	for _, field := range TextFields {
		for _, rec := range records {
			builtID, _ := built.DocID(rec.URL)
			loadedID, _ := loaded.DocID(rec.URL)
			assert.Equal(t,
				built.DocLength(field, builtID),
				loaded.DocLength(field, loadedID),
				"doc length of %s for %s", rec.URL, field)
		}
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}
