// Package errs is the typed error taxonomy surfaced by the core to its
// callers. Every kind is a plain struct satisfying error; layers wrap
// these with fmt.Errorf("...: %w", err) as they propagate and unwrap with
// errors.As at the HTTP boundary to choose a status code.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// DuplicateMessage means a uuid already exists service-wide.
type DuplicateMessage struct {
	UUID             string
	ExistingSubQueue string
}

func (e *DuplicateMessage) Error() string {
	return fmt.Sprintf("message %q already exists in sub-queue %q", e.UUID, e.ExistingSubQueue)
}

// NotFound means the uuid is unknown to the backend.
type NotFound struct {
	UUID string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("message %q not found", e.UUID)
}

// AlreadyAssigned means an assign() call lost a race to another owner.
type AlreadyAssigned struct {
	UUID       string
	OtherOwner string
}

func (e *AlreadyAssigned) Error() string {
	return fmt.Sprintf("message %q already assigned to %q", e.UUID, e.OtherOwner)
}

// AssignmentMismatch means release() was attempted by a non-owner.
type AssignmentMismatch struct {
	UUID        string
	CurrentOwner string
	Requester   string
}

func (e *AssignmentMismatch) Error() string {
	return fmt.Sprintf("message %q is owned by %q, not %q", e.UUID, e.CurrentOwner, e.Requester)
}

// UpdateFailed means persist() could not locate or replace a record.
type UpdateFailed struct {
	UUID   string
	Reason string
}

func (e *UpdateFailed) Error() string {
	return fmt.Sprintf("persist failed for %q: %s", e.UUID, e.Reason)
}

// BackendCause enumerates the flavors of storage-layer failure.
type BackendCause string

const (
	CauseTimeout     BackendCause = "timeout"
	CauseIO          BackendCause = "io"
	CauseUnavailable BackendCause = "unavailable"
	CauseConflict    BackendCause = "conflict"
)

// Backend wraps any storage-layer failure with its kind and cause.
type Backend struct {
	Kind  string
	Cause BackendCause
	Err   error
}

func (e *Backend) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s backend %s: %v", e.Kind, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s backend %s", e.Kind, e.Cause)
}

func (e *Backend) Unwrap() error { return e.Err }

// AuthMissing means no bearer token was present where one was required.
type AuthMissing struct{}

func (e *AuthMissing) Error() string { return "authorization token missing" }

// AuthInvalid means a present token failed verification.
type AuthInvalid struct{ Reason string }

func (e *AuthInvalid) Error() string { return "authorization token invalid: " + e.Reason }

// AuthFormat means the Authorization header was present but malformed.
type AuthFormat struct{}

func (e *AuthFormat) Error() string { return "authorization header malformed, expected Bearer <token>" }

// NotAuthorized means a verified token's claim does not authorize the
// target sub-queue.
type NotAuthorized struct{ Target string }

func (e *NotAuthorized) Error() string {
	return fmt.Sprintf("not authorized for sub-queue %q", e.Target)
}

// Reserved means an identifier is reserved by a backend for its own
// internal storage and may not be used as a sub-queue name.
type Reserved struct{ SubQueue string }

func (e *Reserved) Error() string {
	return fmt.Sprintf("sub-queue name %q is reserved", e.SubQueue)
}

// Malformed means a request body or parameter could not be parsed into
// the shape an operation requires.
type Malformed struct{ Reason string }

func (e *Malformed) Error() string { return "malformed request: " + e.Reason }

// StatusCode maps a taxonomy error to the HTTP status code the REST
// layer reports for it. Errors not in the taxonomy map to 500.
func StatusCode(err error) int {
	var (
		dup       *DuplicateMessage
		notFound  *NotFound
		already   *AlreadyAssigned
		mismatch  *AssignmentMismatch
		update    *UpdateFailed
		be        *Backend
		authMiss  *AuthMissing
		authInv   *AuthInvalid
		authFmt   *AuthFormat
		notAuth   *NotAuthorized
		reserved  *Reserved
		malformed *Malformed
	)
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.As(err, &already):
		return http.StatusConflict
	case errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &update):
		return http.StatusConflict
	case errors.As(err, &authMiss):
		return http.StatusUnauthorized
	case errors.As(err, &authInv):
		return http.StatusUnauthorized
	case errors.As(err, &authFmt):
		return http.StatusBadRequest
	case errors.As(err, &notAuth):
		return http.StatusForbidden
	case errors.As(err, &reserved):
		return http.StatusBadRequest
	case errors.As(err, &be):
		switch be.Cause {
		case CauseUnavailable, CauseTimeout:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}
