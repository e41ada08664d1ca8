// Middleware extracts and verifies a bearer token as chi middleware,
// then exposes a three-mode state machine (NONE/HYBRID/RESTRICTED) for
// deciding whether a request is authorized for a given sub-queue. The
// per-operation authorization decision is a separate method
// (IsAuthorizedFor) so handlers can apply it against the target
// sub-queue named in the request path or body, not just the claim.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/queuehub/queuehub/internal/config"
	"github.com/queuehub/queuehub/internal/errs"
)

type contextKey string

const subQueueClaimKey contextKey = "subQueueClaim"

// WithClaim returns a context carrying the verified sub-queue claim.
func WithClaim(ctx context.Context, subQueue string) context.Context {
	return context.WithValue(ctx, subQueueClaimKey, subQueue)
}

// ClaimFromContext extracts the verified sub-queue claim placed by
// Middleware.Authenticate, if any.
func ClaimFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subQueueClaimKey).(string)
	return v, ok
}

// RestrictionChecker is the subset of restriction.Registry the filter
// needs to decide HYBRID-mode authorization.
type RestrictionChecker interface {
	IsRestricted(ctx context.Context, subQueue string) (bool, error)
}

// Middleware is the Access-Control Filter: a per-request gate
// parameterized by the service's fixed authentication mode.
type Middleware struct {
	provider     *TokenProvider
	mode         config.AuthMode
	restrictions RestrictionChecker
	adminToken   string
}

// NewMiddleware constructs the filter. mode is fixed for the process
// lifetime.
func NewMiddleware(provider *TokenProvider, mode config.AuthMode, restrictions RestrictionChecker, adminToken string) *Middleware {
	return &Middleware{provider: provider, mode: mode, restrictions: restrictions, adminToken: adminToken}
}

// Mode reports the filter's fixed authentication mode.
func (m *Middleware) Mode() config.AuthMode { return m.mode }

// Authenticate extracts and verifies any bearer token and places the
// claim in the request context. It never makes the per-operation
// authorization decision; that's IsAuthorizedFor, called by each
// handler against its own target sub-queue.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		ctx := r.Context()

		if header != "" {
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, &errs.AuthFormat{})
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			subQueue, err := m.provider.Verify(tokenStr)
			if err != nil {
				if m.mode == config.AuthRestricted {
					writeError(w, &errs.AuthInvalid{Reason: err.Error()})
					return
				}
				// HYBRID/NONE: a present-but-invalid token is treated as if
				// no token had been sent at all.
			} else {
				ctx = WithClaim(ctx, subQueue)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IsAuthorizedFor reports, via its return value, whether the request may
// operate against target's sub-queue under the filter's fixed mode: nil
// when mode is NONE, or mode is HYBRID and target isn't restricted, or
// the context's claimed sub-queue equals target. Otherwise it returns
// *errs.AuthMissing when no claim was verified at all (no/invalid
// token), and *errs.NotAuthorized when a claim was verified but names a
// different sub-queue — callers map these to 401 and 403 respectively
// via errs.StatusCode.
func (m *Middleware) IsAuthorizedFor(ctx context.Context, target string) error {
	switch m.mode {
	case config.AuthNone:
		return nil
	case config.AuthHybrid:
		restricted, err := m.restrictions.IsRestricted(ctx, target)
		if err != nil {
			return err
		}
		if !restricted {
			return nil
		}
		return m.requireClaim(ctx, target)
	case config.AuthRestricted:
		return m.requireClaim(ctx, target)
	default:
		return &errs.NotAuthorized{Target: target}
	}
}

// requireClaim enforces that the context carries a verified claim
// matching target, distinguishing "no claim at all" from "claim present
// but for a different sub-queue".
func (m *Middleware) requireClaim(ctx context.Context, target string) error {
	claim, ok := ClaimFromContext(ctx)
	if !ok {
		return &errs.AuthMissing{}
	}
	if claim != target {
		return &errs.NotAuthorized{Target: target}
	}
	return nil
}

// RequireAdmin gates the administrative endpoints the router places behind
// it (token issuance, adding and removing restrictions) behind a static
// configured bearer credential, distinct from per-sub-queue tokens.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminToken == "" {
			writeError(w, &errs.AuthMissing{})
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != m.adminToken {
			writeError(w, &errs.AuthInvalid{Reason: "admin token mismatch"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errs.StatusCode(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
