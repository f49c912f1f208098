package fragment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/contentops/cms-translator/internal/markup"
	"github.com/contentops/cms-translator/internal/schema"
	"github.com/contentops/cms-translator/internal/tmcache"
	"github.com/contentops/cms-translator/pkg/log"
)

// Reconstructor rebuilds a translated document from the original, the
// extraction skeleton, and the merged fragment map. The output is a deep
// copy with the exact shape of the input.
type Reconstructor struct {
	contentType    schema.ContentType
	cache          *tmcache.Cache
	targetLanguage string
}

func NewReconstructor(ct schema.ContentType, cache *tmcache.Cache, targetLanguage string) *Reconstructor {
	return &Reconstructor{contentType: ct, cache: cache, targetLanguage: targetLanguage}
}

// Reconstruct assembles the translated document and writes finished
// structural items back into the cache.
func (r *Reconstructor) Reconstruct(doc map[string]any, ex *Extraction, merged map[string]string) (map[string]any, error) {
	out := copyMap(doc)
	sk := ex.Skeleton

	r.applyTextFields(doc, out, merged)
	if err := r.applyRichFields(out, sk, merged); err != nil {
		return nil, err
	}
	if err := r.applyArrays(out, sk, merged); err != nil {
		return nil, err
	}
	if err := r.applyComponents(out, sk, merged); err != nil {
		return nil, err
	}
	for _, path := range r.contentType.LocalePathFields {
		r.rewriteLocalePath(out, path)
	}
	return out, nil
}

func (r *Reconstructor) applyTextFields(doc, out map[string]any, merged map[string]string) {
	for _, f := range r.contentType.TextFields {
		v, ok := merged[textFieldID(f.Name)]
		if !ok {
			continue
		}
		out[f.Name] = v
		if f.Heading {
			if src, ok := stringValue(doc, f.Name); ok {
				r.cache.Store(tmcache.BucketHeadings, src, v)
			}
		}
	}
}

func (r *Reconstructor) applyRichFields(out map[string]any, sk *Skeleton, merged map[string]string) error {
	for _, f := range r.contentType.RichFields {
		base := richFieldBase(f.Name)
		tree, ok := sk.Trees[base]
		if !ok {
			continue
		}
		rendered, err := r.applyTree(base, tree, merged)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[f.Name] = rendered
	}
	return nil
}

// applyTree reinjects translated text nodes and captions into one parsed
// tree and serializes it. Freshly translated captions feed the global
// caption cache.
func (r *Reconstructor) applyTree(base string, tree *markup.Tree, merged map[string]string) (string, error) {
	sourceAlts := tree.Alts()
	for i := range tree.Texts() {
		v, ok := merged[htmlTextID(base, i)]
		if !ok {
			continue
		}
		if err := tree.SetText(i, v); err != nil {
			return "", err
		}
	}
	for i, src := range sourceAlts {
		v, ok := merged[htmlAltID(base, i)]
		if !ok {
			continue
		}
		if err := tree.SetAlt(i, v); err != nil {
			return "", err
		}
		r.cache.Store(tmcache.BucketAltTags, src, v)
	}
	return tree.Render()
}

func (r *Reconstructor) applyArrays(out map[string]any, sk *Skeleton, merged map[string]string) error {
	for _, def := range r.contentType.Arrays {
		arr, ok := out[def.Name].([]any)
		if !ok {
			continue
		}
		for i := range arr {
			item, ok := arr[i].(map[string]any)
			if !ok {
				continue
			}
			itemKey := arrayItemKey(def.Name, i)
			if entry, ok := sk.ItemHits[itemKey]; ok {
				applyItemEntry(item, def, entry)
				continue
			}
			if _, ok := sk.Aliases[itemKey]; ok {
				// The first identical item has already written the
				// cache entry by the time the alias is reached.
				if entry, ok := r.cache.LookupItem(def.Bucket, sk.ItemHashes[itemKey]); ok {
					applyItemEntry(item, def, entry)
				}
				continue
			}
			entry := make(map[string]string)
			for _, sub := range def.Fields {
				id := subFieldID(itemKey, sub.Name)
				if sub.Rich {
					tree, ok := sk.Trees[id]
					if !ok {
						continue
					}
					rendered, err := r.applyTree(id, tree, merged)
					if err != nil {
						return fmt.Errorf("item %s field %s: %w", itemKey, sub.Name, err)
					}
					item[sub.Name] = rendered
					entry[sub.Name] = rendered
					continue
				}
				if v, ok := merged[id]; ok {
					item[sub.Name] = v
					entry[sub.Name] = v
				}
			}
			r.cache.StoreItem(def.Bucket, sk.ItemHashes[itemKey], entry)
		}
	}
	return nil
}

func (r *Reconstructor) applyComponents(out map[string]any, sk *Skeleton, merged map[string]string) error {
	for _, def := range r.contentType.Components {
		comp, ok := out[def.Name].(map[string]any)
		if !ok {
			continue
		}
		itemKey := componentKey(def.Name)
		if entry, ok := sk.ItemHits[itemKey]; ok {
			applyComponentEntry(comp, def, entry)
			continue
		}
		entry := make(map[string]string)
		for _, sub := range def.Fields {
			id := subFieldID(itemKey, sub.Name)
			if sub.Rich {
				tree, ok := sk.Trees[id]
				if !ok {
					continue
				}
				rendered, err := r.applyTree(id, tree, merged)
				if err != nil {
					return fmt.Errorf("component %s field %s: %w", def.Name, sub.Name, err)
				}
				comp[sub.Name] = rendered
				entry[sub.Name] = rendered
				continue
			}
			if v, ok := merged[id]; ok {
				comp[sub.Name] = v
				entry[sub.Name] = v
			}
		}
		if def.Nested != nil {
			r.applyNested(comp, def, itemKey, sk, merged, entry)
		}
		r.cache.StoreItem(def.Bucket, sk.ItemHashes[itemKey], entry)
	}
	return nil
}

func (r *Reconstructor) applyNested(comp map[string]any, def schema.ItemDef, itemKey string, sk *Skeleton, merged map[string]string, entry map[string]string) {
	arr, ok := comp[def.Nested.Name].([]any)
	if !ok {
		return
	}
	for j := range arr {
		nestedItem, ok := arr[j].(map[string]any)
		if !ok {
			continue
		}
		for _, sub := range def.Nested.Fields {
			id := nestedFieldID(itemKey, def.Nested.Name, sub.Name, j)
			v, ok := merged[id]
			if !ok {
				if srcID, reuse := sk.TitleReuse[id]; reuse {
					v, ok = merged[srcID]
				}
			}
			if !ok {
				continue
			}
			nestedItem[sub.Name] = v
			entry[nestedEntryKey(def.Nested.Name, sub.Name, j)] = v
		}
	}
}

// applyItemEntry copies a cached structural entry into one array item.
func applyItemEntry(item map[string]any, def schema.ItemDef, entry map[string]string) {
	for _, sub := range def.Fields {
		if v, ok := entry[sub.Name]; ok {
			item[sub.Name] = v
		}
	}
}

// applyComponentEntry copies a cached structural entry into a singleton
// component, including its flattened nested keys.
func applyComponentEntry(comp map[string]any, def schema.ItemDef, entry map[string]string) {
	for _, sub := range def.Fields {
		if v, ok := entry[sub.Name]; ok {
			comp[sub.Name] = v
		}
	}
	if def.Nested == nil {
		return
	}
	arr, ok := comp[def.Nested.Name].([]any)
	if !ok {
		return
	}
	for j := range arr {
		nestedItem, ok := arr[j].(map[string]any)
		if !ok {
			continue
		}
		for _, sub := range def.Nested.Fields {
			if v, ok := entry[nestedEntryKey(def.Nested.Name, sub.Name, j)]; ok {
				nestedItem[sub.Name] = v
			}
		}
	}
}

// rewriteLocalePath prefixes the target locale onto the path component of a
// URL-valued field, leaving scheme, host, query and fragment untouched. An
// unparseable value is left as-is with a warning; the job does not fail.
func (r *Reconstructor) rewriteLocalePath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	parent := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := parent[p].(map[string]any)
		if !ok {
			return
		}
		parent = next
	}
	field := parts[len(parts)-1]
	raw, ok := parent[field].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		log.Warn("cannot rewrite locale into %s value %q, keeping original", path, raw)
		return
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u.Path = "/" + r.targetLanguage + p
	parent[field] = u.String()
}

func copyMap(m map[string]any) map[string]any {
	return copyValue(m).(map[string]any)
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = copyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = copyValue(vv)
		}
		return out
	default:
		return v
	}
}
