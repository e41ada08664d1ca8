package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/queuehub/queuehub/internal/errs"
)

type issueTokenRequest struct {
	TTLSeconds int64 `json:"ttlSeconds,omitempty"`
}

// IssueToken handles POST /auth/{subQueue} (admin-only).
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")

	var body issueTokenRequest
	_ = decodeJSON(r, &body) // body optional; zero TTL uses provider default

	token, err := a.Tokens.Issue(subQueue, time.Duration(body.TTLSeconds)*time.Second)
	if err != nil {
		writeErr(w, &errs.Malformed{Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AddRestriction handles PUT /restriction/{subQueue} (admin-only).
func (a *API) AddRestriction(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")
	if err := a.Restrictions.AddRestriction(r.Context(), subQueue); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveRestriction handles DELETE /restriction/{subQueue} (admin-only).
func (a *API) RemoveRestriction(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")
	removed, err := a.Restrictions.RemoveRestriction(r.Context(), subQueue)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// ListRestrictions handles GET /restriction.
func (a *API) ListRestrictions(w http.ResponseWriter, r *http.Request) {
	list, err := a.Restrictions.ListRestricted(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// healthResponse reports overall health plus the status of each
// collaborator the service depends on.
type healthResponse struct {
	OK                 bool   `json:"ok"`
	BackendOK          bool   `json:"backendOk"`
	Mode               string `json:"mode"`
	RestrictionStoreOK bool   `json:"restrictionStoreOk"`
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	backendOK := a.Core.HealthCheck(r.Context()) == nil
	restrictionOK := a.Restrictions.HealthCheck(r.Context()) == nil

	resp := healthResponse{
		OK:                 backendOK && restrictionOK,
		BackendOK:          backendOK,
		Mode:               string(a.Access.Mode()),
		RestrictionStoreOK: restrictionOK,
	}
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Settings handles GET /settings.
func (a *API) Settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Cfg.ToSettings())
}
