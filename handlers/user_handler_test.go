package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"user-network/models"
	"user-network/services"
	"user-network/store"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := services.NewUserService(store.NewMemoryStore(), zap.NewNop())
	return NewRouter(svc, []string{"http://localhost:5173"}, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func postUser(t *testing.T, h http.Handler, username string, hobbies ...string) models.UserView {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/users", models.UserInput{Username: username, Age: 25, Hobbies: hobbies})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.UserView](t, rec)
}

func TestCreateUser(t *testing.T) {
	h := newTestRouter(t)

	user := postUser(t, h, "alice", "chess")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []string{}, user.Friends)
	assert.Equal(t, 0.0, user.PopularityScore)

	rec := do(t, h, http.MethodPost, "/api/users", models.UserInput{Username: "alice", Age: 30, Hobbies: []string{"golf"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "USERNAME_TAKEN", body.Code)
	assert.Contains(t, body.Message, "alice")
}

func TestCreateUser_BadRequests(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/users", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode[errorBody](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/users", map[string]any{"username": "bad name", "age": 200, "hobbies": []string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Details, "username")
	assert.Contains(t, body.Details, "age")
	assert.Contains(t, body.Details, "hobbies")
}

func TestGetUser(t *testing.T) {
	h := newTestRouter(t)
	alice := postUser(t, h, "alice", "chess")

	rec := do(t, h, http.MethodGet, "/api/users/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.ID, decode[models.UserView](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/api/users/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", decode[errorBody](t, rec).Code)
}

func TestUpdateUser(t *testing.T) {
	h := newTestRouter(t)
	alice := postUser(t, h, "alice", "chess")
	postUser(t, h, "bob", "golf")

	rec := do(t, h, http.MethodPut, "/api/users/"+alice.ID, map[string]any{"username": "alice", "age": 33})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[models.UserView](t, rec)
	assert.Equal(t, 33, updated.Age)
	assert.Equal(t, []string{"chess"}, updated.Hobbies)

	rec = do(t, h, http.MethodPut, "/api/users/"+alice.ID, map[string]any{"username": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/users/"+alice.ID, map[string]any{"hobbies": []string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/users/missing", map[string]any{"age": 20})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinkUnlinkDelete(t *testing.T) {
	h := newTestRouter(t)
	alice := postUser(t, h, "alice", "chess", "hiking")
	bob := postUser(t, h, "bob", "chess", "reading")
	carol := postUser(t, h, "carol", "hiking")

	rec := do(t, h, http.MethodPost, "/api/users/"+alice.ID+"/link", models.LinkRequest{FriendID: alice.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SELF_LINK", decode[errorBody](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/users/"+alice.ID+"/link", models.LinkRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/users/"+alice.ID+"/link", models.LinkRequest{FriendID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, friend := range []models.UserView{bob, carol} {
		rec = do(t, h, http.MethodPost, "/api/users/"+alice.ID+"/link", models.LinkRequest{FriendID: friend.ID})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Users linked successfully", decode[MessageResponse](t, rec).Message)
	}

	rec = do(t, h, http.MethodPost, "/api/users/"+bob.ID+"/link", models.LinkRequest{FriendID: alice.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RELATIONSHIP_EXISTS", decode[errorBody](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/api/users/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, decode[models.UserView](t, rec).PopularityScore)

	rec = do(t, h, http.MethodGet, "/api/users/"+alice.ID+"/friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.UserView](t, rec), 2)

	rec = do(t, h, http.MethodDelete, "/api/users/"+alice.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "FRIENDSHIPS_EXIST", decode[errorBody](t, rec).Code)

	for _, friend := range []models.UserView{bob, carol} {
		rec = do(t, h, http.MethodDelete, "/api/users/"+alice.ID+"/unlink", models.LinkRequest{FriendID: friend.ID})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Users unlinked successfully", decode[MessageResponse](t, rec).Message)
	}

	rec = do(t, h, http.MethodDelete, "/api/users/"+alice.ID+"/unlink", models.LinkRequest{FriendID: bob.ID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/users/"+alice.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/users/"+alice.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]models.UserView](t, rec)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.Friends)
	}
}

func TestGetGraph(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, rec.Body.String())

	alice := postUser(t, h, "alice", "chess")
	bob := postUser(t, h, "bob", "chess")
	carol := postUser(t, h, "carol", "golf")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/users/"+alice.ID+"/link", models.LinkRequest{FriendID: bob.ID}).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/users/"+bob.ID+"/link", models.LinkRequest{FriendID: carol.ID}).Code)

	rec = do(t, h, http.MethodGet, "/api/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	graph := decode[models.Graph](t, rec)
	assert.Len(t, graph.Nodes, 3)
	assert.Len(t, graph.Edges, 2)
}

func TestHealthAndCORS(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionsNeverReachesHandlers(t *testing.T) {
	h := newTestRouter(t)
	alice := postUser(t, h, "alice", "chess")
	bob := postUser(t, h, "bob", "chess")

	rec := do(t, h, http.MethodOptions, "/api/users/"+alice.ID+"/link", models.LinkRequest{FriendID: bob.ID})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/users/"+alice.ID+"/friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.UserView](t, rec))

	// A disallowed origin gets no CORS headers and still no handler
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/users/"+alice.ID+"/link", models.LinkRequest{FriendID: bob.ID}).Code)
	req := httptest.NewRequest(http.MethodOptions, "/api/users/"+alice.ID+"/unlink",
		bytes.NewBufferString(`{"friend_id":"`+bob.ID+`"}`))
	req.Header.Set("Origin", "http://evil.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/users/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{bob.ID}, decode[models.UserView](t, rec).Friends)
}

func TestUnmatchedRoutesAnswerJSON(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Code)

	rec = do(t, h, http.MethodPatch, "/api/users", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "METHOD_NOT_ALLOWED", decode[errorBody](t, rec).Code)
}
