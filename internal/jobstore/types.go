// Package jobstore persists the per-(item, content type, language) job
// lifecycle in SQLite and is the single source of truth for job status.
package jobstore

import "time"

// Status is one stage of the translate-then-deliver lifecycle.
type Status string

const (
	StatusPendingTranslation Status = "pending_translation"
	StatusTranslating        Status = "translating"
	StatusFailedTranslation  Status = "failed_translation"
	StatusPendingUpload      Status = "pending_upload"
	StatusUploading          Status = "uploading"
	StatusFailedUpload       Status = "failed_upload"
	StatusCompleted          Status = "completed"
)

var legalTransitions = map[Status][]Status{
	StatusPendingTranslation: {StatusTranslating},
	StatusTranslating:        {StatusPendingUpload, StatusFailedTranslation},
	StatusFailedTranslation:  {StatusTranslating},
	StatusPendingUpload:      {StatusUploading},
	StatusUploading:          {StatusCompleted, StatusFailedUpload},
	StatusFailedUpload:       {StatusUploading},
	// completed is terminal; leaving it requires an operator reset.
	StatusCompleted: {},
}

// CanTransitionTo reports whether moving from s to next follows a legal
// lifecycle edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job is one persisted lifecycle row. Rows are created once per
// (slug, content type, language) and never deleted.
type Job struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	ContentType  string `json:"contentType"`
	Language     string `json:"language"`
	SourceItemID int64  `json:"sourceItemId"`
	TargetItemID *int64 `json:"targetItemId,omitempty"`
	Status       Status `json:"status"`
	LastError    string `json:"lastError,omitempty"`
	// ArtifactPath points at the translated-document file once the
	// translation half of the lifecycle has finished.
	ArtifactPath string    `json:"translationFilePath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewJobSpec identifies one source item during bulk initialization.
type NewJobSpec struct {
	Slug         string
	SourceItemID int64
}
