package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/accounts"
	"github.com/cratedig/cratedig/config"
	"github.com/cratedig/cratedig/mail"
	"github.com/cratedig/cratedig/search"
	"github.com/cratedig/cratedig/utils"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := utils.NewDefaultLogger(slog.LevelError)
	store, err := cratedig.OpenStore(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	acc := accounts.New(store, log)
	posts := cratedig.NewPostStore(store, log, cratedig.PostStoreOptions{
		Render: func(s string) string { return s },
		Names:  acc,
	})
	index := search.NewIndex(store, log, posts)
	posts.SetIndexer(index)
	feed := cratedig.NewFeedReader(posts)

	cfg := &config.AppConfig{
		JWTSecret:          "test-secret",
		SessionTTLHours:    1,
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"*"},
		GinMode:            "test",
	}
	h := NewHandlers(cfg, log, posts, feed, index, acc, &mail.LogSender{Log: log})
	return SetupRouter(h)
}

func do(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func signupToken(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/signup", "", gin.H{"email": email, "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := dataOf(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSignupLoginFlow(t *testing.T) {
	r := testRouter(t)

	signupToken(t, r, "alice@example.com")

	w := do(t, r, http.MethodPost, "/login", "", gin.H{"email": "alice@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/login", "", gin.H{"email": "alice@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/signup", "", gin.H{"email": "alice@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	r := testRouter(t)
	token := signupToken(t, r, "alice@example.com")

	w := do(t, r, http.MethodPost, "/post", token, gin.H{
		"title":        "Live Set",
		"artist":       "DJ X",
		"tracklisting": "1. A - Intro\n2. B - Outro",
		"notes":        "good one",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pid, _ := dataOf(t, w)["id"].(string)
	require.NotEmpty(t, pid)

	// Anonymous read.
	w = do(t, r, http.MethodGet, "/post/"+pid, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, false, data["isOwner"])
	post := data["post"].(map[string]any)
	assert.Equal(t, "Live Set", post["title"])
	assert.Equal(t, "alice", post["postedBy"])

	// Owner read.
	w = do(t, r, http.MethodGet, "/post/"+pid, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataOf(t, w)["isOwner"])

	// Feed and search see it.
	w = do(t, r, http.MethodGet, "/feed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/search?q=intro", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), pid)

	// Unauthenticated mutation is refused.
	w = do(t, r, http.MethodPost, "/post", "", gin.H{"title": "x", "artist": "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Delete through the owner path.
	created := int64(post["created"].(float64))
	w = do(t, r, http.MethodPost, "/post/delete", token, gin.H{"id": pid, "created": created})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/post/"+pid, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/search?q=intro", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), pid)
}

func TestFeedLimitNeverUnbounded(t *testing.T) {
	r := testRouter(t)
	token := signupToken(t, r, "alice@example.com")

	for i := 0; i < 12; i++ {
		w := do(t, r, http.MethodPost, "/post", token, gin.H{
			"title":  "Set " + strconv.Itoa(i),
			"artist": "DJ X",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	// A negative limit must fall back to the default page, not dump the
	// whole feed.
	for _, q := range []string{"/feed?limit=-1", "/feed?limit=-100", "/feed"} {
		w := do(t, r, http.MethodGet, q, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data []json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 10, q)
	}

	w := do(t, r, http.MethodGet, "/feed?limit=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 3)
}

func TestShareOverHTTP(t *testing.T) {
	r := testRouter(t)
	aliceToken := signupToken(t, r, "alice@example.com")
	bobToken := signupToken(t, r, "bob@example.com")

	w := do(t, r, http.MethodPost, "/post", aliceToken, gin.H{"title": "Live Set", "artist": "DJ X"})
	require.Equal(t, http.StatusOK, w.Code)
	pid, _ := dataOf(t, w)["id"].(string)

	w = do(t, r, http.MethodPost, "/post/"+pid+"/share", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	shared, _ := dataOf(t, w)["id"].(string)
	require.NotEmpty(t, shared)
	assert.NotEqual(t, pid, shared)

	// Self-share hands back the original id.
	w = do(t, r, http.MethodPost, "/post/"+pid+"/share", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pid, dataOf(t, w)["id"])
}

func TestLogoutRevokesToken(t *testing.T) {
	r := testRouter(t)
	token := signupToken(t, r, "alice@example.com")

	w := do(t, r, http.MethodGet, "/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordForgotNoEnumeration(t *testing.T) {
	r := testRouter(t)
	w := do(t, r, http.MethodPost, "/password/forgot", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}
