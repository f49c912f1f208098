// Package artifact persists translated documents as JSON files so delivery
// retries never require re-translation.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is the output of one successful translation job.
type Artifact struct {
	SourceItemID       int64          `json:"sourceItemId"`
	ItemSlug           string         `json:"itemSlug"`
	ContentType        string         `json:"contentType"`
	TargetLanguage     string         `json:"targetLanguage"`
	TranslatedDocument map[string]any `json:"translatedDocument"`
}

// Store lays artifacts out as contentType/slug/slug_language.json under a
// base directory. Paths returned and accepted are relative to the base, so
// the job table stays valid if the directory moves.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Path returns the relative artifact path for one (item, language) pair.
func (s *Store) Path(contentType, slug, language string) string {
	return filepath.Join(contentType, slug, fmt.Sprintf("%s_%s.json", slug, language))
}

// Save writes the artifact and returns its relative path. The write goes
// through a temp file so readers never observe a partial artifact.
func (s *Store) Save(a Artifact) (string, error) {
	if a.ItemSlug == "" || a.ContentType == "" || a.TargetLanguage == "" {
		return "", fmt.Errorf("artifact needs slug, content type and target language")
	}
	rel := s.Path(a.ContentType, a.ItemSlug, a.TargetLanguage)
	abs := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	raw, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize artifact: %w", err)
	}
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		return "", fmt.Errorf("finalize artifact: %w", err)
	}
	return rel, nil
}

// Load reads an artifact back by its relative path.
func (s *Store) Load(rel string) (Artifact, error) {
	if strings.TrimSpace(rel) == "" {
		return Artifact{}, fmt.Errorf("artifact path is empty")
	}
	raw, err := os.ReadFile(filepath.Join(s.baseDir, rel))
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", rel, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact %s: %w", rel, err)
	}
	return a, nil
}
