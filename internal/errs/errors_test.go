package errs_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/errs"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", &errs.DuplicateMessage{UUID: "u1"}, http.StatusConflict},
		{"not found", &errs.NotFound{UUID: "u1"}, http.StatusNotFound},
		{"already assigned", &errs.AlreadyAssigned{UUID: "u1"}, http.StatusConflict},
		{"assignment mismatch", &errs.AssignmentMismatch{UUID: "u1"}, http.StatusConflict},
		{"update failed", &errs.UpdateFailed{UUID: "u1"}, http.StatusConflict},
		{"auth missing", &errs.AuthMissing{}, http.StatusUnauthorized},
		{"auth invalid", &errs.AuthInvalid{Reason: "bad sig"}, http.StatusUnauthorized},
		{"auth format", &errs.AuthFormat{}, http.StatusBadRequest},
		{"not authorized", &errs.NotAuthorized{Target: "sq"}, http.StatusForbidden},
		{"reserved", &errs.Reserved{SubQueue: "sq"}, http.StatusBadRequest},
		{"malformed", &errs.Malformed{Reason: "bad json"}, http.StatusBadRequest},
		{"backend unavailable", &errs.Backend{Kind: "cache", Cause: errs.CauseUnavailable}, http.StatusServiceUnavailable},
		{"backend timeout", &errs.Backend{Kind: "relational", Cause: errs.CauseTimeout}, http.StatusServiceUnavailable},
		{"backend io", &errs.Backend{Kind: "relational", Cause: errs.CauseIO}, http.StatusInternalServerError},
		{"backend conflict", &errs.Backend{Kind: "document", Cause: errs.CauseConflict}, http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, errs.StatusCode(tc.err))
		})
	}
}

func TestStatusCodeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("layer: %w", &errs.NotFound{UUID: "u1"})
	require.Equal(t, http.StatusNotFound, errs.StatusCode(wrapped))
}

func TestBackendUnwrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	be := &errs.Backend{Kind: "relational", Cause: errs.CauseIO, Err: inner}
	require.ErrorIs(t, be, inner)
}
