package resilience

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/qhd-cli/internal/model"
)

// Error types recorded in the failure log.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// FailureFilter narrows a failure log query.
type FailureFilter struct {
	PartID    string `json:"part_id,omitempty"`
	Process   string `json:"process,omitempty"`
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// ClassifyError labels err for the failure log.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}

// NewFailure builds the failure-log entry for a part that could not be
// processed or published.
func NewFailure(partID, process string, docType model.DocType, err error) model.FailureEntry {
	return model.FailureEntry{
		ID:        uuid.New().String(),
		PartID:    partID,
		Process:   process,
		DocType:   docType,
		Error:     err.Error(),
		ErrorType: ClassifyError(err),
		CreatedAt: time.Now().UTC(),
	}
}
