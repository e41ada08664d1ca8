package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/api"
	"github.com/queuehub/queuehub/internal/auth"
	"github.com/queuehub/queuehub/internal/backend/memory"
	"github.com/queuehub/queuehub/internal/config"
	"github.com/queuehub/queuehub/internal/logging"
	"github.com/queuehub/queuehub/internal/queue"
	"github.com/queuehub/queuehub/internal/restriction"
)

func newTestAPI(mode config.AuthMode) *api.API {
	core := queue.New(memory.New(), "memory")
	restrictions := restriction.New(memory.NewSetStore())
	tokens := auth.NewTokenProvider("test-secret", time.Hour)
	access := auth.NewMiddleware(tokens, mode, restrictions, "admin-token")
	cfg := &config.Config{ListenAddr: ":8080"}
	cfg.Backend.Kind = config.BackendMemory
	cfg.Auth.Mode = mode

	return api.New(core, restrictions, tokens, access, http.NotFoundHandler(), cfg, logging.New(slog.LevelError))
}

func TestCreateAndGetMessage(t *testing.T) {
	a := newTestAPI(config.AuthNone)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"subQueue": "sq-a",
		"payload":  map[string]interface{}{"contentType": "text/plain", "data": []byte("hi")},
	})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	uuid := created["uuid"].(string)
	require.NotEmpty(t, uuid)

	resp, err = http.Get(srv.URL + "/message/" + uuid)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestDuplicateUUIDReturnsConflict(t *testing.T) {
	a := newTestAPI(config.AuthNone)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{"uuid": "fixed-uuid", "subQueue": "sq-a"})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPollEmptyQueueReturnsNoContent(t *testing.T) {
	a := newTestAPI(config.AuthNone)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/queue/empty-sq/next")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestRestrictedModeRejectsUnauthenticatedAccess(t *testing.T) {
	a := newTestAPI(config.AuthRestricted)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/queue/sq-a")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRestrictedModeRejectsTokenForOtherSubQueue(t *testing.T) {
	a := newTestAPI(config.AuthRestricted)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	token, err := a.Tokens.Issue("sq-b", 0)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/queue/sq-a", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestRestrictedModeAllowsMatchingToken(t *testing.T) {
	a := newTestAPI(config.AuthRestricted)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	token, err := a.Tokens.Issue("sq-a", 0)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/queue/sq-a", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminEndpointRequiresAdminToken(t *testing.T) {
	a := newTestAPI(config.AuthNone)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/auth/sq-a", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/sq-a", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAssignAndReleaseMessage(t *testing.T) {
	a := newTestAPI(config.AuthNone)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{"subQueue": "sq-a"})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	msgUUID := created["uuid"].(string)

	assignBody, _ := json.Marshal(map[string]interface{}{"uuid": msgUUID, "owner": "alice"})
	resp, err = http.Post(srv.URL+"/queue/sq-a/assign", "application/json", bytes.NewReader(assignBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var assigned map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assigned))
	resp.Body.Close()
	require.Equal(t, "alice", assigned["assignedTo"])

	releaseBody, _ := json.Marshal(map[string]interface{}{"uuid": msgUUID, "owner": "alice"})
	resp, err = http.Post(srv.URL+"/queue/sq-a/release", "application/json", bytes.NewReader(releaseBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAssignRejectsTokenScopedToDifferentSubQueue(t *testing.T) {
	a := newTestAPI(config.AuthRestricted)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	tokenB, err := a.Tokens.Issue("sq-b", 0)
	require.NoError(t, err)

	createBody, _ := json.Marshal(map[string]interface{}{"subQueue": "sq-b"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/message", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenB)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	msgUUID := created["uuid"].(string)

	tokenA, err := a.Tokens.Issue("sq-a", 0)
	require.NoError(t, err)

	assignBody, _ := json.Marshal(map[string]interface{}{"uuid": msgUUID, "owner": "eve"})
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/queue/sq-a/assign", bytes.NewReader(assignBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The request above named sq-a in its path, but the message lives in
	// sq-b, so the sq-a token was refused. The sq-b token reaches the same
	// message, since authorization follows the message's own sub-queue.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/queue/sq-b/assign", bytes.NewReader(assignBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenB)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthReportsBackendStatus(t *testing.T) {
	a := newTestAPI(config.AuthNone)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
