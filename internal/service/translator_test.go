package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/contentops/cms-translator/internal/schema"
	"github.com/contentops/cms-translator/internal/tmcache"
	"github.com/contentops/cms-translator/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refusingTranslator struct{ t *testing.T }

func (r refusingTranslator) Translate(_ context.Context, texts []string, _ string) ([]string, error) {
	r.t.Errorf("translator called with %d fragments, expected everything cached", len(texts))
	return nil, fmt.Errorf("unexpected call")
}

func newDocTranslator(t *testing.T, tr translator.Translator) (*DocumentTranslator, *tmcache.Set) {
	t.Helper()
	caches := tmcache.NewSet(filepath.Join(t.TempDir(), "cache.json"))
	return NewDocumentTranslator(schema.Default(), caches, tr), caches
}

func TestDocumentTranslatorPreservesShape(t *testing.T) {
	docs, _ := newDocTranslator(t, suffixTranslator{})
	doc := map[string]any{
		"title": "Widget Market Report",
		"slug":  "widget-report",
		"faqList": []any{
			map[string]any{"title": "What is covered?", "description": "<p>Scope</p>", "id": float64(4)},
		},
	}

	out, err := docs.Translate(context.Background(), "reports", doc, "fr")
	require.NoError(t, err)

	assert.Equal(t, "Widget Market Report_fr", out["title"])
	assert.Equal(t, "widget-report", out["slug"], "untranslatable fields pass through")
	faq := out["faqList"].([]any)[0].(map[string]any)
	assert.Equal(t, "What is covered?_fr", faq["title"])
	assert.Equal(t, float64(4), faq["id"])
	assert.Equal(t, "Widget Market Report", doc["title"], "source document is never mutated")
}

func TestDocumentTranslatorServesRepeatDocumentFromCache(t *testing.T) {
	docs, caches := newDocTranslator(t, suffixTranslator{})
	doc := map[string]any{
		"title": "Widget Market Report",
		"faqList": []any{
			map[string]any{"title": "What is covered?", "description": "<p>Scope</p>"},
		},
	}

	first, err := docs.Translate(context.Background(), "reports", doc, "fr")
	require.NoError(t, err)

	// Same document again: headings and structural items resolve from the
	// cache, so the backend must not be contacted at all.
	cached := NewDocumentTranslator(schema.Default(), caches, refusingTranslator{t: t})
	second, err := cached.Translate(context.Background(), "reports", doc, "fr")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDocumentTranslatorRejectsUnknownContentType(t *testing.T) {
	docs, _ := newDocTranslator(t, suffixTranslator{})

	_, err := docs.Translate(context.Background(), "podcasts", map[string]any{}, "fr")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrConfig))
}

func TestDocumentTranslatorWrapsBackendFailure(t *testing.T) {
	docs, _ := newDocTranslator(t, brokenTranslator{})

	_, err := docs.Translate(context.Background(), "reports",
		map[string]any{"title": "Widget Market Report"}, "fr")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrTranslation))
}
