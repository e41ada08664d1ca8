package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queuehub/queuehub/internal/errs"
	"github.com/queuehub/queuehub/internal/model"
)

func (a *API) authorizeSubQueue(w http.ResponseWriter, r *http.Request, subQueue string) bool {
	if err := a.Access.IsAuthorizedFor(r.Context(), subQueue); err != nil {
		writeErr(w, err)
		return false
	}
	return true
}

// ListQueue handles GET /queue/{subQueue}?assignedTo=&unassignedOnly=.
func (a *API) ListQueue(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")
	if !a.authorizeSubQueue(w, r, subQueue) {
		return
	}

	filter := model.Filter{Mode: model.FilterAll}
	if assignedTo := r.URL.Query().Get("assignedTo"); assignedTo != "" {
		filter = model.Filter{Mode: model.FilterAssignedTo, AssignedTo: assignedTo}
	} else if r.URL.Query().Get("unassignedOnly") == "true" {
		filter = model.Filter{Mode: model.FilterUnassigned}
	}

	records, err := a.Core.GetForSubQueue(r.Context(), subQueue, filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// PollQueue handles GET /queue/{subQueue}/next.
func (a *API) PollQueue(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")
	if !a.authorizeSubQueue(w, r, subQueue) {
		return
	}

	msg, ok, err := a.Core.Poll(r.Context(), subQueue)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// PeekQueue handles GET /queue/{subQueue}/peek.
func (a *API) PeekQueue(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")
	if !a.authorizeSubQueue(w, r, subQueue) {
		return
	}

	msg, ok, err := a.Core.Peek(r.Context(), subQueue)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ClearQueue handles DELETE /queue/{subQueue}.
func (a *API) ClearQueue(w http.ResponseWriter, r *http.Request) {
	subQueue := chi.URLParam(r, "subQueue")
	if !a.authorizeSubQueue(w, r, subQueue) {
		return
	}

	n, err := a.Core.ClearFor(r.Context(), subQueue)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// assignRequest is the shared body shape for assign and release: the
// target is named by uuid, not by the path's subQueue, since both
// operations are uuid-addressed service-wide. The path segment exists
// only for routing symmetry with the rest of the /queue/{subQueue}
// surface.
type assignRequest struct {
	UUID  string `json:"uuid"`
	Owner string `json:"owner"`
}

// authorizeMessage looks up uuid's owning record and authorizes against
// its real sub-queue, never the path's subQueue: a token scoped to one
// sub-queue must not be able to reach a message filed under another by
// naming its uuid directly.
func (a *API) authorizeMessage(w http.ResponseWriter, r *http.Request, uuid string) (model.Message, bool) {
	msg, ok, err := a.Core.GetMessageByUUID(r.Context(), uuid)
	if err != nil {
		writeErr(w, err)
		return model.Message{}, false
	}
	if !ok {
		writeErr(w, &errs.NotFound{UUID: uuid})
		return model.Message{}, false
	}
	if err := a.Access.IsAuthorizedFor(r.Context(), msg.SubQueue); err != nil {
		writeErr(w, err)
		return model.Message{}, false
	}
	return msg, true
}

// AssignMessage handles POST /queue/{subQueue}/assign. The body names the
// uuid to assign and the requesting owner.
func (a *API) AssignMessage(w http.ResponseWriter, r *http.Request) {
	var body assignRequest
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, &errs.Malformed{Reason: err.Error()})
		return
	}

	if _, ok := a.authorizeMessage(w, r, body.UUID); !ok {
		return
	}

	msg, err := a.Core.Assign(r.Context(), body.UUID, body.Owner)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ReleaseMessage handles POST /queue/{subQueue}/release.
func (a *API) ReleaseMessage(w http.ResponseWriter, r *http.Request) {
	var body assignRequest
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, &errs.Malformed{Reason: err.Error()})
		return
	}

	if _, ok := a.authorizeMessage(w, r, body.UUID); !ok {
		return
	}

	msg, err := a.Core.Release(r.Context(), body.UUID, body.Owner)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ListKeys handles GET /keys?includeEmpty=.
func (a *API) ListKeys(w http.ResponseWriter, r *http.Request) {
	includeEmpty := r.URL.Query().Get("includeEmpty") == "true"
	keys, err := a.Core.Keys(r.Context(), includeEmpty)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	writeJSON(w, http.StatusOK, out)
}

// OwnersMap handles GET /owners?subQueue=.
func (a *API) OwnersMap(w http.ResponseWriter, r *http.Request) {
	subQueue := r.URL.Query().Get("subQueue")
	owners, err := a.Core.OwnersMap(r.Context(), subQueue)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make(map[string][]string, len(owners))
	for owner, sqs := range owners {
		list := make([]string, 0, len(sqs))
		for sq := range sqs {
			list = append(list, sq)
		}
		out[owner] = list
	}
	writeJSON(w, http.StatusOK, out)
}
