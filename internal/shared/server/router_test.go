package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studyai-backend/internal/documents"
	"studyai-backend/internal/generation"
	"studyai-backend/internal/llm"
	"studyai-backend/internal/services/health"
	"studyai-backend/internal/shared/auth"
	"studyai-backend/internal/shared/config"
	"studyai-backend/internal/shared/server/middleware"
	localstore "studyai-backend/internal/shared/storage/object/local"
	"studyai-backend/internal/study"
)

type testEnv struct {
	signer *auth.HMAC
	health *health.Service
	deps   RouterDeps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	signer, err := auth.NewHMAC("router-secret", "test")
	if err != nil {
		t.Fatalf("NewHMAC: %v", err)
	}
	builder, err := study.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	docSvc := &documents.Service{Store: localstore.New(t.TempDir()), Repo: documents.NewMemoryRepo()}
	genSvc := &generation.Service{Docs: docSvc, Builder: builder, Gateway: llm.PlaceholderGateway{}}
	healthSvc := health.NewService()

	return &testEnv{
		signer: signer,
		health: healthSvc,
		deps: RouterDeps{
			Config:          config.Config{CORSAllowOrigin: []string{"http://localhost:5173"}},
			Verifier:        signer,
			Health:          healthSvc,
			DocumentHandler: documents.NewHandler(docSvc, 0),
			GenHandler:      generation.NewHandler(genSvc),
		},
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.signer.Sign(auth.Identity{UserID: userID, Email: userID + "@example.edu"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	rec := do(r, http.MethodGet, "/api/v1/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	var report health.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil || !report.OK {
		t.Fatalf("health: unexpected body %s", rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "documents_uploaded_total") {
		t.Fatalf("metrics: unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.health.Register("database", func(ctx context.Context) error { return errors.New("down") })
	r := NewRouter(env.deps)

	if rec := do(r, http.MethodGet, "/api/v1/health", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/me", ""},
		{http.MethodGet, "/api/v1/documents", ""},
		{http.MethodDelete, "/api/v1/documents/abc", ""},
		{http.MethodPost, "/api/v1/study-materials", `{"type":"quiz"}`},
		{http.MethodPost, "/api/v1/pyq/analysis", `{}`},
		{http.MethodPost, "/api/v1/chat", `{"messages":[{"role":"user","content":"hi"}]}`},
	}
	for _, tt := range tests {
		if rec := do(r, tt.method, tt.path, "", tt.body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tt.method, tt.path, rec.Code)
		}
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	rec := do(r, http.MethodGet, "/api/v1/me", env.token(t, "google:42"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["userId"] != "google:42" || body["email"] != "google:42@example.edu" || body["provider"] != "google" {
		t.Fatalf("unexpected identity %v", body)
	}
}

func TestAuthenticatedFlow(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	tok := env.token(t, "user-a")

	rec := do(r, http.MethodGet, "/api/v1/documents", tok, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("list: unexpected %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodPost, "/api/v1/study-materials", tok, `{"type":"quiz"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no documents: expected 400, got %d", rec.Code)
	}
}

func TestGenerationRoutesHaveTheirOwnRateGroup(t *testing.T) {
	env := newTestEnv(t)
	env.deps.RateRules = map[string]middleware.RateLimitRule{
		"DEFAULT":    {Rate: 100, Burst: 100},
		"GENERATION": {Rate: 0.001, Burst: 1},
	}
	r := NewRouter(env.deps)
	tok := env.token(t, "user-a")

	if rec := do(r, http.MethodPost, "/api/v1/study-materials", tok, `{"type":"quiz"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("first generation: expected 400, got %d", rec.Code)
	}
	rec := do(r, http.MethodPost, "/api/v1/chat", tok, `{"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second generation: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if rec := do(r, http.MethodGet, "/api/v1/documents", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("default group throttled: %d", rec.Code)
	}

	other := env.token(t, "user-b")
	if rec := do(r, http.MethodPost, "/api/v1/study-materials", other, `{"type":"quiz"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("limits must be per user, got %d", rec.Code)
	}
}

func TestAddr(t *testing.T) {
	tests := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range tests {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
