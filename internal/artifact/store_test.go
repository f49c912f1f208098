package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	rel, err := store.Save(Artifact{
		SourceItemID:   42,
		ItemSlug:       "widget-market",
		ContentType:    "reports",
		TargetLanguage: "fr",
		TranslatedDocument: map[string]any{
			"title": "Rapport sur le marché des widgets",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("reports", "widget-market", "widget-market_fr.json"), rel)

	got, err := store.Load(rel)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.SourceItemID)
	assert.Equal(t, "fr", got.TargetLanguage)
	assert.Equal(t, "Rapport sur le marché des widgets", got.TranslatedDocument["title"])
}

func TestSaveOverwritesExisting(t *testing.T) {
	store := NewStore(t.TempDir())
	a := Artifact{SourceItemID: 1, ItemSlug: "s", ContentType: "reports", TargetLanguage: "de",
		TranslatedDocument: map[string]any{"title": "v1"}}

	_, err := store.Save(a)
	require.NoError(t, err)

	a.TranslatedDocument["title"] = "v2"
	rel, err := store.Save(a)
	require.NoError(t, err)

	got, err := store.Load(rel)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.TranslatedDocument["title"])
}

func TestSaveValidatesIdentity(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Save(Artifact{ItemSlug: "s", ContentType: "reports"})
	require.Error(t, err)
}

func TestLoadMissingArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load(filepath.Join("reports", "nope", "nope_fr.json"))
	require.Error(t, err)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	rel, err := store.Save(Artifact{SourceItemID: 1, ItemSlug: "s", ContentType: "reports", TargetLanguage: "fr",
		TranslatedDocument: map[string]any{}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, rel+".tmp"))
	assert.True(t, os.IsNotExist(err))
}
