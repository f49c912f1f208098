package service

import (
	"context"

	"github.com/contentops/cms-translator/internal/fragment"
	"github.com/contentops/cms-translator/internal/schema"
	"github.com/contentops/cms-translator/internal/tmcache"
	"github.com/contentops/cms-translator/internal/translator"
	"github.com/contentops/cms-translator/pkg/log"
)

// DocumentTranslator runs the extract → cache-resolve → translate →
// reconstruct pipeline for one document at a time. It is safe for
// concurrent use; the per-language caches serialize their own writes.
type DocumentTranslator struct {
	types      map[string]schema.ContentType
	caches     *tmcache.Set
	translator translator.Translator
}

func NewDocumentTranslator(types map[string]schema.ContentType, caches *tmcache.Set, tr translator.Translator) *DocumentTranslator {
	return &DocumentTranslator{types: types, caches: caches, translator: tr}
}

// Translate produces the translated counterpart of doc. The result has the
// exact shape of the input.
func (d *DocumentTranslator) Translate(ctx context.Context, contentType string, doc map[string]any, targetLanguage string) (map[string]any, error) {
	ct, ok := d.types[contentType]
	if !ok {
		return nil, NewError(ErrConfig, "no schema declared for content type").
			WithContext("contentType", contentType)
	}
	cache := d.caches.For(targetLanguage)

	ex, err := fragment.NewExtractor(ct, cache).Extract(doc)
	if err != nil {
		return nil, WrapError(err, ErrReconstruction, "extract fragments").
			WithContext("contentType", contentType)
	}
	log.Debug("extracted %d pending fragments, %d cache hits (%s)",
		len(ex.Fragments), len(ex.Cached), targetLanguage)

	var results []string
	if texts := ex.PendingTexts(); len(texts) > 0 {
		results, err = d.translator.Translate(ctx, texts, targetLanguage)
		if err != nil {
			return nil, WrapError(err, ErrTranslation, "translate fragments").
				WithContext("fragments", len(texts)).
				WithContext("language", targetLanguage)
		}
	}

	merged, err := ex.Merge(results)
	if err != nil {
		return nil, WrapError(err, ErrReconstruction, "merge fragment results")
	}
	out, err := fragment.NewReconstructor(ct, cache, targetLanguage).Reconstruct(doc, ex, merged)
	if err != nil {
		return nil, WrapError(err, ErrReconstruction, "reconstruct document").
			WithContext("contentType", contentType)
	}
	return out, nil
}
