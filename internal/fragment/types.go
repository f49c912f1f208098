// Package fragment decomposes structured documents into atomic translatable
// units and reassembles translated units back into the original shape.
package fragment

import (
	"fmt"

	"github.com/contentops/cms-translator/internal/markup"
)

// Fragment is one unit of translatable text at a specific structural
// position. IDs are derived solely from the structural path, so the same
// document shape always yields the same id set.
type Fragment struct {
	ID   string
	Text string
}

// Skeleton is the positionally-addressable residue of extraction that
// reconstruction needs: parsed markup trees, structural cache outcomes,
// and intra-document reuse links. It lives for one pipeline run only.
type Skeleton struct {
	// Trees holds the parsed markup of every rich-text value that needs
	// node-level reinjection, keyed by the fragment id base.
	Trees map[string]*markup.Tree
	// ItemHits maps a structural item key to its cached translation entry.
	ItemHits map[string]map[string]string
	// ItemHashes maps a structural item key to its content hash, used for
	// cache writes after reconstruction.
	ItemHashes map[string]string
	// Aliases maps an item key to an earlier identical item in the same
	// document, so the duplicate is served from the first item's cache
	// write instead of being translated twice.
	Aliases map[string]string
	// TitleReuse maps a fragment id to the fragment id whose translation
	// it reuses (identical source text on two surfaces).
	TitleReuse map[string]string
}

func newSkeleton() *Skeleton {
	return &Skeleton{
		Trees:      make(map[string]*markup.Tree),
		ItemHits:   make(map[string]map[string]string),
		ItemHashes: make(map[string]string),
		Aliases:    make(map[string]string),
		TitleReuse: make(map[string]string),
	}
}

// Extraction is the full result of decomposing one document.
type Extraction struct {
	// Fragments still need translation, in deterministic document order.
	Fragments []Fragment
	// Cached maps fragment ids that were resolved from the translation
	// memory to their translated text.
	Cached map[string]string
	// Skeleton carries everything reconstruction needs beyond the
	// fragment maps.
	Skeleton *Skeleton
}

// PendingTexts returns the untranslated fragment texts in order.
func (e *Extraction) PendingTexts() []string {
	out := make([]string, len(e.Fragments))
	for i, f := range e.Fragments {
		out[i] = f.Text
	}
	return out
}

// Merge combines cache hits with freshly translated texts into the single
// fragment map reconstruction consumes. results must align positionally
// with Fragments.
func (e *Extraction) Merge(results []string) (map[string]string, error) {
	if len(results) != len(e.Fragments) {
		return nil, fmt.Errorf("got %d translations for %d fragments", len(results), len(e.Fragments))
	}
	merged := make(map[string]string, len(e.Cached)+len(results))
	for id, text := range e.Cached {
		merged[id] = text
	}
	for i, f := range e.Fragments {
		merged[f.ID] = results[i]
	}
	return merged, nil
}

func textFieldID(name string) string { return "field::" + name }

func richFieldBase(name string) string { return "html::" + name }

func arrayItemKey(field string, i int) string { return fmt.Sprintf("array::%s::%d", field, i) }

func componentKey(field string) string { return "component::" + field }

func subFieldID(itemKey, sub string) string { return itemKey + "::" + sub }

func nestedFieldID(itemKey, nested, sub string, j int) string {
	return fmt.Sprintf("%s::%s::%s::%d", itemKey, nested, sub, j)
}

func htmlTextID(base string, i int) string { return fmt.Sprintf("%s::html_text_%d", base, i) }

func htmlAltID(base string, i int) string { return fmt.Sprintf("%s::html_alt_%d", base, i) }

func nestedEntryKey(nested, sub string, j int) string {
	return fmt.Sprintf("%s.%d.%s", nested, j, sub)
}
