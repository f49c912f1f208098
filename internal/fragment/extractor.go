package fragment

import (
	"fmt"
	"strings"

	"github.com/contentops/cms-translator/internal/contenthash"
	"github.com/contentops/cms-translator/internal/markup"
	"github.com/contentops/cms-translator/internal/schema"
	"github.com/contentops/cms-translator/internal/tmcache"
)

// Extractor walks a document along its content-type declaration and splits
// it into pending fragments, cache hits, and a skeleton for reassembly.
type Extractor struct {
	contentType schema.ContentType
	cache       *tmcache.Cache
}

func NewExtractor(ct schema.ContentType, cache *tmcache.Cache) *Extractor {
	return &Extractor{contentType: ct, cache: cache}
}

// Extract decomposes doc. It never mutates doc.
func (e *Extractor) Extract(doc map[string]any) (*Extraction, error) {
	ex := &Extraction{Cached: make(map[string]string), Skeleton: newSkeleton()}

	e.extractTextFields(doc, ex)
	if err := e.extractRichFields(doc, ex); err != nil {
		return nil, err
	}
	// Identical items inside one document share a hash; only the first
	// produces fragments, the rest become aliases.
	seen := make(map[string]string)
	if err := e.extractArrays(doc, ex, seen); err != nil {
		return nil, err
	}
	if err := e.extractComponents(doc, ex, seen); err != nil {
		return nil, err
	}
	return ex, nil
}

func (e *Extractor) extractTextFields(doc map[string]any, ex *Extraction) {
	for _, f := range e.contentType.TextFields {
		v, ok := stringValue(doc, f.Name)
		if !ok {
			continue
		}
		id := textFieldID(f.Name)
		if f.Heading {
			if hit, ok := e.cache.Lookup(tmcache.BucketHeadings, v); ok {
				ex.Cached[id] = hit
				continue
			}
		}
		ex.Fragments = append(ex.Fragments, Fragment{ID: id, Text: v})
	}
}

func (e *Extractor) extractRichFields(doc map[string]any, ex *Extraction) error {
	for _, f := range e.contentType.RichFields {
		v, ok := stringValue(doc, f.Name)
		if !ok {
			continue
		}
		if err := e.extractMarkup(richFieldBase(f.Name), v, ex); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

// extractMarkup parses one rich-text value, emits a fragment per text node
// and per image caption, and retains the tree for reinjection. Captions are
// deduplicated globally by exact text, independent of document identity.
func (e *Extractor) extractMarkup(base, value string, ex *Extraction) error {
	tree, err := markup.Parse(value)
	if err != nil {
		return err
	}
	ex.Skeleton.Trees[base] = tree
	for i, text := range tree.Texts() {
		ex.Fragments = append(ex.Fragments, Fragment{ID: htmlTextID(base, i), Text: text})
	}
	for i, alt := range tree.Alts() {
		id := htmlAltID(base, i)
		if hit, ok := e.cache.Lookup(tmcache.BucketAltTags, alt); ok {
			ex.Cached[id] = hit
			continue
		}
		ex.Fragments = append(ex.Fragments, Fragment{ID: id, Text: alt})
	}
	return nil
}

func (e *Extractor) extractArrays(doc map[string]any, ex *Extraction, seen map[string]string) error {
	for _, def := range e.contentType.Arrays {
		arr, ok := doc[def.Name].([]any)
		if !ok {
			continue
		}
		for i, raw := range arr {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			itemKey := arrayItemKey(def.Name, i)
			miss, err := e.resolveItem(def, item, itemKey, ex, seen)
			if err != nil {
				return err
			}
			if !miss {
				continue
			}
			for _, sub := range def.Fields {
				v, ok := stringValue(item, sub.Name)
				if !ok {
					continue
				}
				id := subFieldID(itemKey, sub.Name)
				if sub.Rich {
					if err := e.extractMarkup(id, v, ex); err != nil {
						return fmt.Errorf("item %s field %s: %w", itemKey, sub.Name, err)
					}
					continue
				}
				ex.Fragments = append(ex.Fragments, Fragment{ID: id, Text: v})
			}
		}
	}
	return nil
}

func (e *Extractor) extractComponents(doc map[string]any, ex *Extraction, seen map[string]string) error {
	for _, def := range e.contentType.Components {
		comp, ok := doc[def.Name].(map[string]any)
		if !ok {
			continue
		}
		itemKey := componentKey(def.Name)
		miss, err := e.resolveItem(def, comp, itemKey, ex, seen)
		if err != nil {
			return err
		}
		if !miss {
			continue
		}
		for _, sub := range def.Fields {
			v, ok := stringValue(comp, sub.Name)
			if !ok {
				continue
			}
			id := subFieldID(itemKey, sub.Name)
			if sub.Rich {
				if err := e.extractMarkup(id, v, ex); err != nil {
					return fmt.Errorf("component %s field %s: %w", def.Name, sub.Name, err)
				}
				continue
			}
			ex.Fragments = append(ex.Fragments, Fragment{ID: id, Text: v})
		}
		if def.Nested != nil {
			e.extractNested(comp, def, itemKey, ex)
		}
	}
	return nil
}

// extractNested handles one repeatable sub-array inside a singleton
// component. When a nested entry's title is character-for-character
// identical to the component's own title, the translated component title is
// reused instead of submitting a duplicate fragment.
func (e *Extractor) extractNested(comp map[string]any, def schema.ItemDef, itemKey string, ex *Extraction) {
	arr, ok := comp[def.Nested.Name].([]any)
	if !ok {
		return
	}
	title := ""
	if def.TitleField != "" {
		title, _ = stringValue(comp, def.TitleField)
	}
	for j, raw := range arr {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, sub := range def.Nested.Fields {
			v, ok := stringValue(entry, sub.Name)
			if !ok {
				continue
			}
			id := nestedFieldID(itemKey, def.Nested.Name, sub.Name, j)
			if title != "" && sub.Name == def.Nested.TitleField && v == title {
				ex.Skeleton.TitleReuse[id] = subFieldID(itemKey, def.TitleField)
				continue
			}
			ex.Fragments = append(ex.Fragments, Fragment{ID: id, Text: v})
		}
	}
}

// resolveItem hashes one structural item and records either a cache hit, an
// alias to an identical earlier item, or a miss. Reports whether the caller
// should emit fragments for the item.
func (e *Extractor) resolveItem(def schema.ItemDef, item map[string]any, itemKey string, ex *Extraction, seen map[string]string) (bool, error) {
	hash, err := contenthash.Sum(item, def.HashFields)
	if err != nil {
		return false, fmt.Errorf("hash item %s: %w", itemKey, err)
	}
	ex.Skeleton.ItemHashes[itemKey] = hash
	if entry, ok := e.cache.LookupItem(def.Bucket, hash); ok {
		ex.Skeleton.ItemHits[itemKey] = entry
		return false, nil
	}
	dedupeKey := def.Bucket + "/" + hash
	if first, ok := seen[dedupeKey]; ok {
		ex.Skeleton.Aliases[itemKey] = first
		return false, nil
	}
	seen[dedupeKey] = itemKey
	return true, nil
}

// stringValue reads a trimmed, non-empty string field. Empty and
// whitespace-only values never become fragments.
func stringValue(m map[string]any, key string) (string, bool) {
	raw, ok := m[key].(string)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	return v, true
}
