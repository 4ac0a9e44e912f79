package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/model/persona"
	"github.com/king-app/king/backend/internal/observability"
	"github.com/king-app/king/backend/internal/service/ai"
	chatService "github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("router-secret", "", time.Minute)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	reg := prometheus.NewRegistry()
	history := store.NewMemoryStore()
	pipeline := chatService.NewPipeline(history, ai.NewScriptedProvider("Hi", " there"), nil,
		chatService.WithMetrics(observability.NewStreamingMetrics(reg)))

	return NewRouter(Dependencies{
		Personas: persona.NewMemoryStore(persona.Seed()),
		Pipeline: pipeline,
		Chat:     chatService.NewService(history),
		Tokens:   tokens,
		Gatherer: reg,
	}), tokens
}

func TestRouterHealthAndMetricsArePublic(t *testing.T) {
	router, tokens := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	token, _ := tokens.Issue(1, "ROLE_USER", auth.TypeAccess)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/logical/stream", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "king_chat_stream_fragments_total 2") {
		t.Fatalf("stream metrics missing:\n%s", rec.Body.String())
	}
}

func TestRouterRequiresTokenOnAPI(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/history", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterStreamsWithToken(t *testing.T) {
	router, tokens := newTestRouter(t)
	token, _ := tokens.Issue(2, "ROLE_USER", auth.TypeAccess)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/t/stream?message=hello", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"content":"Hi"`) || !strings.Contains(body, `"event":"end"`) {
		t.Fatalf("unexpected stream body:\n%s", body)
	}
}

func TestRouterListsPersonas(t *testing.T) {
	router, tokens := newTestRouter(t)
	token, _ := tokens.Issue(2, "ROLE_USER", auth.TypeAccess)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/personas", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"logical"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterLogsEachRequestOnce(t *testing.T) {
	var buf bytes.Buffer
	tokens, err := auth.NewTokenService("router-secret", "", time.Minute)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	router := NewRouter(Dependencies{
		Tokens:   tokens,
		Personas: persona.NewMemoryStore(persona.Seed()),
		Pipeline: chatService.NewPipeline(store.NewMemoryStore(), ai.NewScriptedProvider("x"), nil),
		Chat:     chatService.NewService(store.NewMemoryStore()),
		Gatherer: prometheus.NewRegistry(),
		Logger:   slog.New(slog.NewJSONHandler(&buf, nil)),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if n := strings.Count(buf.String(), `"msg":"http_request"`); n != 1 {
		t.Fatalf("expected one access log line, got %d: %s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"request_id":"`) {
		t.Fatalf("access log misses request id: %s", buf.String())
	}
}
