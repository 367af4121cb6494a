package model

import "time"

// FailureEntry is one line of the append-only per-part error log.
type FailureEntry struct {
	ID        string    `json:"id"`
	PartID    string    `json:"part_id"`
	Process   string    `json:"process"`
	DocType   DocType   `json:"doc_type"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	CreatedAt time.Time `json:"created_at"`
}

// PublishOutcome records how the remote service accepted a document.
type PublishOutcome string

const (
	PublishCreated  PublishOutcome = "created"
	PublishConflict PublishOutcome = "conflict"
)

// PublishRecord is stored after every successful publish.
type PublishRecord struct {
	PartID      string         `json:"part_id"`
	Process     string         `json:"process"`
	DocType     DocType        `json:"doc_type"`
	Subject     string         `json:"subject"`
	Outcome     PublishOutcome `json:"outcome"`
	DocumentID  string         `json:"document_id,omitempty"`
	Attempts    int            `json:"attempts"`
	PublishedAt time.Time      `json:"published_at"`
}
