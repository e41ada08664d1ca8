package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queuehub/queuehub/internal/errs"
	"github.com/queuehub/queuehub/internal/model"
)

type messageRequest struct {
	UUID     string        `json:"uuid,omitempty"`
	SubQueue string        `json:"subQueue"`
	Payload  model.Payload `json:"payload"`
}

// CreateMessage handles POST /message.
func (a *API) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, &errs.Malformed{Reason: err.Error()})
		return
	}

	if err := a.Access.IsAuthorizedFor(r.Context(), body.SubQueue); err != nil {
		writeErr(w, err)
		return
	}

	msg := model.Message{UUID: body.UUID, SubQueue: body.SubQueue, Payload: body.Payload}
	stored, err := a.Core.Add(r.Context(), msg)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// GetMessage handles GET /message/{uuid}.
func (a *API) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	msg, ok, err := a.Core.GetMessageByUUID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		writeErr(w, &errs.NotFound{UUID: id})
		return
	}

	if err := a.Access.IsAuthorizedFor(r.Context(), msg.SubQueue); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// DeleteMessage handles DELETE /message/{uuid}.
func (a *API) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	msg, ok, err := a.Core.GetMessageByUUID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"removed": false})
		return
	}
	if err := a.Access.IsAuthorizedFor(r.Context(), msg.SubQueue); err != nil {
		writeErr(w, err)
		return
	}

	removed, err := a.Core.Remove(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

type updateMessageRequest struct {
	Payload    model.Payload `json:"payload"`
	AssignedTo string        `json:"assignedTo,omitempty"`
}

// UpdateMessage handles PUT /message/{uuid}.
func (a *API) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	existing, ok, err := a.Core.GetMessageByUUID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		writeErr(w, &errs.NotFound{UUID: id})
		return
	}
	if err := a.Access.IsAuthorizedFor(r.Context(), existing.SubQueue); err != nil {
		writeErr(w, err)
		return
	}

	var body updateMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, &errs.Malformed{Reason: err.Error()})
		return
	}

	updated := existing
	updated.Payload = body.Payload
	updated.AssignedTo = body.AssignedTo

	stored, err := a.Core.Persist(r.Context(), updated)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}
