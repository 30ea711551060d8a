package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumeapp/plume/internal/cache"
	"github.com/plumeapp/plume/internal/database/testutil"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Page        int  `json:"page"`
		PerPage     int  `json:"per_page"`
		HasNextPage bool `json:"has_next_page"`
	} `json:"meta"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	r, err := NewRouter(db, cache.NewDatabaseStore(db), RateLimitConfig{MaxRequests: 1000, Window: time.Minute})
	require.NoError(t, err)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed), "body: %s", w.Body.String())
	return w, parsed
}

func createUser(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w, resp := do(t, r, http.MethodPost, "/api/users", gin.H{"username": username})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &user))
	return user.ID
}

func createPost(t *testing.T, r *gin.Engine, authorID string, extra gin.H) string {
	t.Helper()
	body := gin.H{"author_id": authorID, "content": "hello"}
	for k, v := range extra {
		body[k] = v
	}
	w, resp := do(t, r, http.MethodPost, "/api/posts", body)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var post struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &post))
	return post.ID
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)

	w, resp := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestRouterUnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	w, resp := do(t, r, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ROUTE_NOT_FOUND", resp.Error.Code)
}

func TestRouterUserLifecycle(t *testing.T) {
	r := newTestRouter(t)

	id := createUser(t, r, "alice")

	w, resp := do(t, r, http.MethodGet, "/api/users/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, resp = do(t, r, http.MethodGet, "/api/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "USER_NOT_FOUND", resp.Error.Code)

	w, _ = do(t, r, http.MethodPost, "/api/users", gin.H{"display_name": "no username"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterGroupValidation(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodPost, "/api/groups", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	alice := createUser(t, r, "alice")
	w, resp := do(t, r, http.MethodPost, "/api/groups", gin.H{"user_ids": []string{alice, "ghost"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "USER_NOT_FOUND", resp.Error.Code)

	w, _ = do(t, r, http.MethodPost, "/api/groups", gin.H{"user_ids": []string{alice}})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouterPermissionFlow(t *testing.T) {
	r := newTestRouter(t)

	alice := createUser(t, r, "alice")
	bob := createUser(t, r, "bob")
	post := createPost(t, r, alice, nil)

	// Fresh inheriting root: author only.
	w, resp := do(t, r, http.MethodGet, "/api/posts/"+post+"/can-view?user_id="+bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allowed": false}`, string(resp.Data))

	w, _ = do(t, r, http.MethodPut, "/api/posts/"+post+"/permissions", gin.H{
		"view": gin.H{"inherit": false, "user_ids": []string{alice, bob}},
		"edit": gin.H{"inherit": false, "user_ids": []string{alice}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = do(t, r, http.MethodGet, "/api/posts/"+post+"/can-view?user_id="+bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allowed": true}`, string(resp.Data))

	w, resp = do(t, r, http.MethodGet, "/api/posts/"+post+"/can-edit?user_id="+bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allowed": false}`, string(resp.Data))

	// user_id is mandatory on checks.
	w, _ = do(t, r, http.MethodGet, "/api/posts/"+post+"/can-view", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterListVisiblePagination(t *testing.T) {
	r := newTestRouter(t)

	alice := createUser(t, r, "alice")
	for i := 0; i < 15; i++ {
		createPost(t, r, alice, gin.H{"content": fmt.Sprintf("post %d", i)})
	}

	w, resp := do(t, r, http.MethodGet, "/api/posts?user_id="+alice+"&limit=10&page=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.True(t, resp.Meta.HasNextPage)
	assert.Equal(t, 10, resp.Meta.PerPage)

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Len(t, items, 10)

	w, resp = do(t, r, http.MethodGet, "/api/posts?user_id="+alice+"&limit=10&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.False(t, resp.Meta.HasNextPage)

	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Len(t, items, 5)

	// Listing requires a user id.
	w, _ = do(t, r, http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterReplyAndFilters(t *testing.T) {
	r := newTestRouter(t)

	alice := createUser(t, r, "alice")
	root := createPost(t, r, alice, gin.H{"category": "tech", "hashtags": []string{"golang"}})
	createPost(t, r, alice, gin.H{"parent_post_id": root})

	w, resp := do(t, r, http.MethodGet, "/api/posts?user_id="+alice+"&parent_post_id="+root, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Len(t, items, 1)

	w, resp = do(t, r, http.MethodGet, "/api/posts?user_id="+alice+"&hashtag=golang", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Len(t, items, 1)
}
