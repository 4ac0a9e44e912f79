package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/model/chat"
	"github.com/king-app/king/backend/internal/model/persona"
	"github.com/king-app/king/backend/internal/service/ai"
	chatService "github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/internal/store"
)

type failingHistory struct {
	*store.MemoryStore
}

func (failingHistory) FindByUserID(context.Context, int64) ([]chat.ChatTurn, error) {
	return nil, errors.New("db down")
}

func newRouter(t *testing.T, pipeline *chatService.Pipeline, userID int64) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	if userID > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID})))
			})
		})
	}
	New(pipeline, persona.NewMemoryStore(persona.Seed())).RegisterRoutes(r)
	return r
}

func readFrames(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var frames []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func contents(frames []StreamResponse, event string) []string {
	var out []string
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f.Content)
		}
	}
	return out
}

func TestStreamPostDeliversFragments(t *testing.T) {
	history := store.NewMemoryStore()
	pipeline := chatService.NewPipeline(history, ai.NewScriptedProvider("Hello", "", " world"), nil)
	router := newRouter(t, pipeline, 3)

	req := httptest.NewRequest(http.MethodPost, "/chat/logical/stream", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	frames := readFrames(t, rec.Body.String())
	if len(frames) != 4 {
		t.Fatalf("expected start, 2 deltas, end; got %+v", frames)
	}
	if frames[0].Event != "start" || frames[3].Event != "end" || !frames[3].Finished {
		t.Fatalf("unexpected envelope: %+v", frames)
	}
	if got := strings.Join(contents(frames, "delta"), "|"); got != "Hello| world" {
		t.Fatalf("unexpected deltas %q", got)
	}
	if frames[1].SessionID == "" || frames[1].SessionID != frames[3].SessionID {
		t.Fatalf("session id missing or unstable: %+v", frames)
	}

	turns, _ := history.FindByUserID(context.Background(), 3)
	if len(turns) == 0 || turns[0].Content != "hi" {
		t.Fatalf("user turn not stored: %+v", turns)
	}
}

func TestStreamGetUsesQueryMessage(t *testing.T) {
	pipeline := chatService.NewPipeline(store.NewMemoryStore(), ai.NewScriptedProvider("ok"), nil)
	router := newRouter(t, pipeline, 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/f/stream?message=hey", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := contents(readFrames(t, rec.Body.String()), "delta"); len(got) != 1 || got[0] != "ok" {
		t.Fatalf("unexpected deltas %v", got)
	}
}

func TestStreamProviderFailureIsContent(t *testing.T) {
	provider := ai.NewScriptedProvider()
	provider.OpenErr = errors.New("connection refused")
	pipeline := chatService.NewPipeline(store.NewMemoryStore(), provider, nil)
	router := newRouter(t, pipeline, 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/logical/stream", strings.NewReader(`{"message":"hi"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("provider failure must not change the status, got %d", rec.Code)
	}
	frames := readFrames(t, rec.Body.String())
	deltas := contents(frames, "delta")
	if len(deltas) != 1 || deltas[0] != chatService.ErrorFragmentPrefix+"connection refused" {
		t.Fatalf("unexpected deltas %v", deltas)
	}
	if frames[len(frames)-1].Event != "end" {
		t.Fatalf("stream must end cleanly: %+v", frames)
	}
}

func TestStreamPreStartErrors(t *testing.T) {
	okPipeline := chatService.NewPipeline(store.NewMemoryStore(), ai.NewScriptedProvider("x"), nil)
	failing := chatService.NewPipeline(failingHistory{store.NewMemoryStore()}, ai.NewScriptedProvider("x"), nil)

	cases := []struct {
		name     string
		pipeline *chatService.Pipeline
		userID   int64
		path     string
		body     string
		want     int
	}{
		{"no identity", okPipeline, 0, "/chat/logical/stream", `{"message":"hi"}`, http.StatusUnauthorized},
		{"bad json", okPipeline, 1, "/chat/logical/stream", `{`, http.StatusBadRequest},
		{"empty message", okPipeline, 1, "/chat/logical/stream", `{"message":"  "}`, http.StatusBadRequest},
		{"unknown persona", okPipeline, 1, "/chat/pirate/stream", `{"message":"hi"}`, http.StatusBadRequest},
		{"history down", failing, 1, "/chat/logical/stream", `{"message":"hi"}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(t, tc.pipeline, tc.userID).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStreamConflictWhileUserIsStreaming(t *testing.T) {
	pipeline := chatService.NewPipeline(store.NewMemoryStore(), ai.NewScriptedProvider("x"), nil,
		chatService.WithGuard(chatService.NewGuard(chatService.NewMemoryLocker())))
	p, _ := persona.NewMemoryStore(persona.Seed()).FindByID("logical")

	held, err := pipeline.StreamReply(context.Background(), 5, "first", p)
	if err != nil {
		t.Fatalf("StreamReply err: %v", err)
	}
	defer held.Close()

	rec := httptest.NewRecorder()
	newRouter(t, pipeline, 5).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/logical/stream", strings.NewReader(`{"message":"second"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
