package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentra-authz/sentra/internal/shared"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fmt.Errorf("%w: role 7", shared.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("%w: code taken", shared.ErrConflict), http.StatusConflict, "conflict"},
		{"validation", fmt.Errorf("%w: bad code", shared.ErrValidation), http.StatusBadRequest, "validation"},
		{"forbidden", fmt.Errorf("%w: reserved", shared.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"internal", fmt.Errorf("pool exhausted"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var envelope Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if envelope.Success || envelope.Error == nil || envelope.Error.Code != tc.wantCode {
				t.Fatalf("envelope = %+v, want error code %q", envelope, tc.wantCode)
			}
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("dsn password=hunter2"))

	var envelope Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Message != "internal error" {
		t.Fatalf("message = %q, internal detail must not leak", envelope.Error.Message)
	}
}
