package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/aniverse/backend/internal/auth"
	"github.com/aniverse/backend/internal/chat"
	"github.com/aniverse/backend/internal/embedding"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/model"
	"github.com/aniverse/backend/internal/recommend"
	"github.com/aniverse/backend/internal/similarity"
	"github.com/aniverse/backend/internal/store"
)

type stubCompleter struct{ output string }

func (s *stubCompleter) Complete(ctx context.Context, system string, history []model.ChatTurn, user string) (string, error) {
	return s.output, nil
}

func f64(v float64) *float64 { return &v }

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	entries := []model.CatalogEntry{
		{ID: 1, Media: model.MediaAnime, Title: "Naruto", Genres: []string{"Action"}, Score: f64(7.9), Synopsis: "A young ninja seeks recognition."},
		{ID: 2, Media: model.MediaAnime, Title: "Bleach", Genres: []string{"Action"}, Score: f64(7.8), Synopsis: "A teenager gains soul reaper powers."},
	}
	for _, e := range entries {
		if err := s.PutEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	idx := similarity.NewFromMap(map[int64]embedding.Vector{
		1: {1, 0},
		2: {0.9, 0.1},
	})

	log := logger.Nop()
	authSvc := auth.NewService("test-secret", time.Hour)
	engine := recommend.NewEngine(log, idx, s, s)
	dispatcher := chat.NewDispatcher(log, &stubCompleter{output: "Hello!"}, s, s)

	return New(log, s, s, s, authSvc, engine, dispatcher).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func register(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "sakura",
		"email":    "sakura@example.com",
		"password": "supersecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	if resp.Token == "" {
		t.Fatal("register returned no token")
	}
	return resp.Token
}

func TestHealthcheck(t *testing.T) {
	router := testRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthcheck", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	router := testRouter(t)
	register(t, router)

	// Bad credentials
	w := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "sakura", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "sakura", "password": "supersecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)

	w = doJSON(t, router, http.MethodGet, "/api/auth/me", resp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me failed: %d %s", w.Code, w.Body.String())
	}
	var me model.User
	decode(t, w, &me)
	if me.Username != "sakura" {
		t.Errorf("expected sakura, got %q", me.Username)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "ab", "email": "not-an-email", "password": "short",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid payload, got %d", w.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/anime/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entry model.CatalogEntry
	decode(t, w, &entry)
	if entry.Title != "Naruto" {
		t.Errorf("expected Naruto, got %q", entry.Title)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/anime/999", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/search", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/search?q=ninja", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search failed: %d", w.Code)
	}
	var search struct {
		Results []model.CatalogEntry `json:"results"`
	}
	decode(t, w, &search)
	if len(search.Results) != 1 || search.Results[0].ID != 1 {
		t.Errorf("unexpected search results: %+v", search.Results)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/anime?sort_by=rubbish", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad sort_by, got %d", w.Code)
	}
}

func TestSimilarEndpoint(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/anime/1/similar", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Similar []model.Recommendation `json:"similar"`
	}
	decode(t, w, &resp)
	if len(resp.Similar) != 1 || resp.Similar[0].Entry.ID != 2 {
		t.Errorf("unexpected similar results: %+v", resp.Similar)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/anime/999/similar", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown seed, got %d", w.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	router := testRouter(t)
	token := register(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/lists/add", token, gin.H{
		"entry_id": 1, "status": "watching",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add failed: %d %s", w.Code, w.Body.String())
	}

	// Unknown catalog entry
	if w := doJSON(t, router, http.MethodPost, "/api/lists/add", token, gin.H{"entry_id": 999}); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown entry, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/lists", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}
	var list struct {
		Count int               `json:"count"`
		Items []model.ListEntry `json:"items"`
	}
	decode(t, w, &list)
	if list.Count != 1 || list.Items[0].Status != "watching" {
		t.Errorf("unexpected list: %+v", list)
	}

	w = doJSON(t, router, http.MethodPatch, "/api/lists/1", token, gin.H{"rating": 9})
	if w.Code != http.StatusOK {
		t.Fatalf("patch failed: %d %s", w.Code, w.Body.String())
	}
	var item model.ListEntry
	decode(t, w, &item)
	if item.Rating == nil || *item.Rating != 9 || item.Status != "watching" {
		t.Errorf("patch result: %+v", item)
	}

	if w := doJSON(t, router, http.MethodPatch, "/api/lists/2", token, gin.H{"rating": 9}); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 patching entry not on list, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/lists/stats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", w.Code)
	}
	var stats store.ListStats
	decode(t, w, &stats)
	if stats.Total != 1 {
		t.Errorf("expected 1 entry in stats, got %d", stats.Total)
	}

	if w := doJSON(t, router, http.MethodDelete, "/api/lists/1", token, nil); w.Code != http.StatusOK {
		t.Errorf("delete failed: %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/lists/1", token, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}

	if w := doJSON(t, router, http.MethodPost, "/api/lists/add", "", gin.H{"entry_id": 1}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	router := testRouter(t)
	token := register(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/recommendations", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with no ratings, got %d", w.Code)
	}
	var env ErrorEnvelope
	decode(t, w, &env)
	if env.Error.Code != "no_ratings" {
		t.Errorf("expected no_ratings code, got %q", env.Error.Code)
	}

	doJSON(t, router, http.MethodPost, "/api/lists/add", token, gin.H{
		"entry_id": 1, "status": "completed", "rating": 9,
	})

	w = doJSON(t, router, http.MethodGet, "/api/recommendations", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recommendations failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Recommendations []model.Recommendation `json:"recommendations"`
	}
	decode(t, w, &resp)
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].Entry.ID != 2 {
		t.Errorf("unexpected recommendations: %+v", resp.Recommendations)
	}
}

func TestQuickRecommendationsEndpoint(t *testing.T) {
	router := testRouter(t)

	if w := doJSON(t, router, http.MethodGet, "/api/recommendations/quick", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without anime_id, got %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/recommendations/quick?anime_id=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quick recommendations failed: %d", w.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	router := testRouter(t)
	token := register(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/chat", token, gin.H{"message": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat failed: %d %s", w.Code, w.Body.String())
	}
	var resp chat.Response
	decode(t, w, &resp)
	if resp.Reply != "Hello!" {
		t.Errorf("unexpected reply %q", resp.Reply)
	}

	if w := doJSON(t, router, http.MethodPost, "/api/chat", token, gin.H{}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/api/chat", "", gin.H{"message": "hi"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}
