// Package schema declares which fields of a content type are translatable
// and how. Extraction and reconstruction are driven entirely by these
// descriptors, never by inspecting document values.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TextField is a plain string field. Heading marks fields whose values are
// short recurring labels worth deduplicating across documents.
type TextField struct {
	Name    string `yaml:"name"`
	Heading bool   `yaml:"heading"`
}

// RichField is a field holding markup whose text nodes and image captions
// are translated individually.
type RichField struct {
	Name string `yaml:"name"`
}

// SubField is a translatable property of a structural item.
type SubField struct {
	Name string `yaml:"name"`
	Rich bool   `yaml:"rich"`
}

// NestedDef describes one repeatable sub-array inside a singleton component.
type NestedDef struct {
	Name       string     `yaml:"name"`
	Fields     []SubField `yaml:"fields"`
	TitleField string     `yaml:"titleField"`
}

// ItemDef describes a repeatable structural array or a singleton component.
// HashFields are the content-defining fields the cache key is derived from;
// Bucket names the structural cache partition for items of this type.
type ItemDef struct {
	Name       string     `yaml:"name"`
	Bucket     string     `yaml:"bucket"`
	HashFields []string   `yaml:"hashFields"`
	Fields     []SubField `yaml:"fields"`
	TitleField string     `yaml:"titleField"`
	Nested     *NestedDef `yaml:"nested"`
}

// ContentType is the full declaration for one document shape.
// LocalePathFields name URL-valued fields (dot paths) whose path component
// must be rewritten to embed the target locale after translation.
type ContentType struct {
	Name             string      `yaml:"name"`
	TextFields       []TextField `yaml:"textFields"`
	RichFields       []RichField `yaml:"richFields"`
	Arrays           []ItemDef   `yaml:"arrays"`
	Components       []ItemDef   `yaml:"components"`
	LocalePathFields []string    `yaml:"localePathFields"`
}

// Validate rejects declarations the pipeline cannot act on.
func (c ContentType) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("content type missing name")
	}
	for _, def := range append(append([]ItemDef{}, c.Arrays...), c.Components...) {
		if def.Name == "" || def.Bucket == "" {
			return fmt.Errorf("content type %s: item definition needs name and bucket", c.Name)
		}
		if len(def.HashFields) == 0 {
			return fmt.Errorf("content type %s: item %s needs hash fields", c.Name, def.Name)
		}
	}
	return nil
}

// Buckets returns every structural bucket name the content type uses.
func (c ContentType) Buckets() []string {
	out := make([]string, 0, len(c.Arrays)+len(c.Components))
	for _, d := range c.Arrays {
		out = append(out, d.Bucket)
	}
	for _, d := range c.Components {
		out = append(out, d.Bucket)
	}
	return out
}

// Load reads content-type declarations from a YAML file.
func Load(path string) (map[string]ContentType, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var file struct {
		ContentTypes []ContentType `yaml:"contentTypes"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	out := make(map[string]ContentType, len(file.ContentTypes))
	for _, ct := range file.ContentTypes {
		if err := ct.Validate(); err != nil {
			return nil, err
		}
		out[ct.Name] = ct
	}
	return out, nil
}

// Default returns the built-in declarations used when no schema file is
// configured. The reports shape matches the upstream CMS collection.
func Default() map[string]ContentType {
	reports := ContentType{
		Name: "reports",
		TextFields: []TextField{
			{Name: "title", Heading: true},
			{Name: "shortDescription", Heading: true},
			{Name: "descriptionSectionHeading", Heading: true},
			{Name: "tableOfContentSectionHeading", Heading: true},
			{Name: "researchMethodologySectionHeading", Heading: true},
			{Name: "faqSectionHeading", Heading: true},
			{Name: "variantsSectionHeading", Heading: true},
		},
		RichFields: []RichField{
			{Name: "description"},
			{Name: "researchMethodology"},
		},
		Arrays: []ItemDef{
			{
				Name:       "tableOfContent",
				Bucket:     "tocItems",
				HashFields: []string{"title", "description"},
				Fields: []SubField{
					{Name: "title"},
					{Name: "description", Rich: true},
				},
			},
			{
				Name:       "faqList",
				Bucket:     "faqItems",
				HashFields: []string{"title", "description"},
				Fields: []SubField{
					{Name: "title"},
					{Name: "description", Rich: true},
				},
			},
			{
				Name:       "variants",
				Bucket:     "variantItems",
				HashFields: []string{"title", "description"},
				Fields: []SubField{
					{Name: "title"},
					{Name: "description", Rich: true},
				},
			},
		},
		Components: []ItemDef{
			{
				Name:       "seo",
				Bucket:     "seoComponents",
				HashFields: []string{"metaTitle", "metaDescription", "keywords", "metaSocial"},
				Fields: []SubField{
					{Name: "metaTitle"},
					{Name: "metaDescription"},
					{Name: "keywords"},
				},
				TitleField: "metaTitle",
				Nested: &NestedDef{
					Name: "metaSocial",
					Fields: []SubField{
						{Name: "title"},
						{Name: "description"},
					},
					TitleField: "title",
				},
			},
		},
		LocalePathFields: []string{"seo.canonicalURL"},
	}
	return map[string]ContentType{reports.Name: reports}
}
