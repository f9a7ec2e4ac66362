package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("segment"))
	if got := AsAppError(wrapped); got.Code != CodeNotFound || got.Status != http.StatusNotFound {
		t.Errorf("AsAppError = %+v", got)
	}

	plain := errors.New("boom")
	got := AsAppError(plain)
	if got.Code != CodeInternalError || !errors.Is(got, plain) {
		t.Errorf("plain errors should become internal errors wrapping the cause, got %+v", got)
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{SegmentationFailed("no customers"), http.StatusUnprocessableEntity},
		{Unavailable("job queue"), http.StatusServiceUnavailable},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := GetHTTPStatus(tt.err); got != tt.want {
			t.Errorf("GetHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestInvalidInputDetails(t *testing.T) {
	e := InvalidInput("analysis_depth", "unknown value")
	if e.Details["field"] != "analysis_depth" {
		t.Errorf("details = %v", e.Details)
	}
}
