package resilience

import (
	"errors"
	"testing"

	"github.com/sells-group/qhd-cli/internal/model"
)

func TestNewFailure(t *testing.T) {
	e := NewFailure("111501", "milling", model.DocTypeProcess, NewTransientError(errors.New("503"), 503))
	if e.ID == "" {
		t.Error("expected an id")
	}
	if e.PartID != "111501" || e.Process != "milling" || e.DocType != model.DocTypeProcess {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.ErrorType != ErrorTypeTransient {
		t.Errorf("expected transient, got %q", e.ErrorType)
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected a creation time")
	}

	e = NewFailure("1", "sawing", model.DocTypeData, model.ErrDataUnavailable)
	if e.ErrorType != ErrorTypePermanent {
		t.Errorf("expected permanent, got %q", e.ErrorType)
	}
	if e.Error != "data unavailable" {
		t.Errorf("unexpected error text %q", e.Error)
	}
}
