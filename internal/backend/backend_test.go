package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"prompttable/internal/config"
	"prompttable/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKE GEMINI SERVER
// =============================================================================

type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]any
	paths    []string
	reply    func(w http.ResponseWriter, r *http.Request)
}

func newFakeServer(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) *fakeServer {
	t.Helper()
	fs := &fakeServer{reply: reply}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)

		fs.mu.Lock()
		fs.requests = append(fs.requests, decoded)
		fs.paths = append(fs.paths, r.URL.Path)
		fs.mu.Unlock()

		fs.reply(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) last() (string, map[string]any) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) == 0 {
		return "", nil
	}
	return fs.paths[len(fs.paths)-1], fs.requests[len(fs.requests)-1]
}

func (fs *fakeServer) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.requests)
}

func writeParts(w http.ResponseWriter, parts ...map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{"role": "model", "parts": parts},
			},
		},
	})
}

func textReply(text string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeParts(w, map[string]any{"text": text})
	}
}

func testConfig(baseURL string) config.BackendConfig {
	return config.BackendConfig{
		APIKey:     "test-key",
		TextModel:  "text-model",
		ImageModel: "image-model",
		Timeout:    "5s",
		BaseURL:    baseURL,
	}
}

func newTestGemini(t *testing.T, fs *fakeServer) *GeminiBackend {
	t.Helper()
	g, err := NewGeminiBackend(context.Background(), testConfig(fs.URL))
	require.NoError(t, err)
	return g
}

// =============================================================================
// GEMINI BACKEND
// =============================================================================

func TestNewGeminiBackend_RequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), config.BackendConfig{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGemini_SendTurn(t *testing.T) {
	fs := newFakeServer(t, textReply("  # Prompt\nDo the thing.  "))
	g := newTestGemini(t, fs)

	conv, err := g.CreateConversation(context.Background(), "seed instructions", ConversationOptions{Search: true})
	require.NoError(t, err)

	reply, err := conv.SendTurn(context.Background(), TurnInput{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "# Prompt\nDo the thing.", reply.Text)
	assert.Nil(t, reply.Image)

	path, req := fs.last()
	assert.True(t, strings.HasSuffix(path, "/models/text-model:generateContent"), path)
	assert.Contains(t, req, "systemInstruction")
	assert.Contains(t, req, "tools")

	raw, _ := json.Marshal(req["systemInstruction"])
	assert.Contains(t, string(raw), "seed instructions")
}

func TestGemini_SendTurnCarriesHistory(t *testing.T) {
	fs := newFakeServer(t, textReply("ok"))
	g := newTestGemini(t, fs)

	conv, err := g.CreateConversation(context.Background(), "seed", ConversationOptions{})
	require.NoError(t, err)

	_, err = conv.SendTurn(context.Background(), TurnInput{Text: "first"})
	require.NoError(t, err)
	_, err = conv.SendTurn(context.Background(), TurnInput{Text: "second"})
	require.NoError(t, err)

	_, req := fs.last()
	contents, ok := req["contents"].([]any)
	require.True(t, ok)
	// user, model, user
	assert.Len(t, contents, 3)
	assert.NotContains(t, req, "tools")
}

func TestGemini_SendTurnWithImage(t *testing.T) {
	fs := newFakeServer(t, textReply("refined"))
	g := newTestGemini(t, fs)

	conv, err := g.CreateConversation(context.Background(), "seed", ConversationOptions{})
	require.NoError(t, err)

	img := &Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}
	_, err = conv.SendTurn(context.Background(), TurnInput{Text: "look", Image: img})
	require.NoError(t, err)

	_, req := fs.last()
	raw, _ := json.Marshal(req["contents"])
	assert.Contains(t, string(raw), "inlineData")
	assert.Contains(t, string(raw), base64.StdEncoding.EncodeToString(img.Data))
}

func TestGemini_GenerateImage(t *testing.T) {
	png := []byte("not-really-a-png")
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeParts(w,
			map[string]any{"text": "here you go"},
			map[string]any{"inlineData": map[string]any{
				"mimeType": "image/png",
				"data":     base64.StdEncoding.EncodeToString(png),
			}},
		)
	})
	g := newTestGemini(t, fs)

	reply, err := g.GenerateContent(context.Background(), "draw", GenerateOptions{WantImage: true})
	require.NoError(t, err)
	require.NotNil(t, reply.Image)
	assert.Equal(t, png, reply.Image.Data)
	assert.Equal(t, "image/png", reply.Image.MIMEType)

	path, req := fs.last()
	assert.True(t, strings.HasSuffix(path, "/models/image-model:generateContent"), path)
	raw, _ := json.Marshal(req["generationConfig"])
	assert.Contains(t, string(raw), "responseModalities")
}

func TestGemini_GenerateImageMissing(t *testing.T) {
	fs := newFakeServer(t, textReply("I can only describe it"))
	g := newTestGemini(t, fs)

	_, err := g.GenerateContent(context.Background(), "draw", GenerateOptions{WantImage: true})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestGemini_GenerateWithSchema(t *testing.T) {
	fs := newFakeServer(t, textReply(`{"title":"t","steps":[]}`))
	g := newTestGemini(t, fs)

	schema := map[string]any{"type": "object"}
	reply, err := g.GenerateContent(context.Background(), "plan", GenerateOptions{Schema: schema})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"t","steps":[]}`, reply.Text)

	path, req := fs.last()
	assert.True(t, strings.HasSuffix(path, "/models/text-model:generateContent"), path)
	gen, ok := req["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.Equal(t, schema, gen["responseJsonSchema"])
}

func TestGemini_EmptyResponse(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	g := newTestGemini(t, fs)

	_, err := g.GenerateContent(context.Background(), "x", GenerateOptions{})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestGemini_ServerError(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`, http.StatusInternalServerError)
	})
	g := newTestGemini(t, fs)

	conv, err := g.CreateConversation(context.Background(), "seed", ConversationOptions{})
	require.NoError(t, err)
	_, err = conv.SendTurn(context.Background(), TurnInput{Text: "x"})
	assert.Error(t, err)
}

func TestGemini_Cancellation(t *testing.T) {
	release := make(chan struct{})
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)
	g := newTestGemini(t, fs)

	conv, err := g.CreateConversation(context.Background(), "seed", ConversationOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = conv.SendTurn(ctx, TurnInput{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || ctx.Err() != nil)
}

func TestGemini_RateLimiterHonorsContext(t *testing.T) {
	fs := newFakeServer(t, textReply("ok"))
	cfg := testConfig(fs.URL)
	cfg.RequestsPerMinute = 1
	g, err := NewGeminiBackend(context.Background(), cfg)
	require.NoError(t, err)

	// The burst admits a reply and its illustration without waiting.
	burstCtx, burstCancel := context.WithTimeout(context.Background(), time.Second)
	defer burstCancel()
	for _, prompt := range []string{"first", "second"} {
		_, err = g.GenerateContent(burstCtx, prompt, GenerateOptions{})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.GenerateContent(ctx, "third", GenerateOptions{})
	assert.Error(t, err)
	assert.Equal(t, 2, fs.count(), "third call must not reach the server")
}

func TestGemini_TracksUsage(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": "{}"}}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 12, "candidatesTokenCount": 30, "totalTokenCount": 42},
		})
	})
	g := newTestGemini(t, fs)

	tracker, err := usage.NewTracker(t.TempDir())
	require.NoError(t, err)
	defer tracker.Close()
	ctx := usage.WithSession(usage.NewContext(context.Background(), tracker), "sess-1")

	conv, err := g.CreateConversation(ctx, "seed", ConversationOptions{})
	require.NoError(t, err)
	_, err = conv.SendTurn(ctx, TurnInput{Text: "hi"})
	require.NoError(t, err)
	_, err = g.GenerateContent(ctx, "plan", GenerateOptions{Schema: map[string]any{"type": "object"}})
	require.NoError(t, err)

	stats := tracker.Stats()
	assert.Equal(t, int64(2), stats.Requests)
	assert.Equal(t, int64(84), stats.Total.Total)
	assert.Equal(t, int64(42), stats.ByOperation["turn"].Total)
	assert.Equal(t, int64(42), stats.ByOperation["plan"].Total)
	assert.Equal(t, int64(84), stats.BySession["sess-1"].Total)
	assert.Equal(t, int64(24), stats.ByModel["text-model"].Input)
}

func TestOperationFor(t *testing.T) {
	assert.Equal(t, usage.OperationIllustration, operationFor(GenerateOptions{WantImage: true}))
	assert.Equal(t, usage.OperationPlan, operationFor(GenerateOptions{Schema: map[string]any{}}))
	assert.Equal(t, usage.OperationGenerate, operationFor(GenerateOptions{}))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0))
	assert.Nil(t, newLimiter(-5))
	lim := newLimiter(60)
	require.NotNil(t, lim)
	assert.Equal(t, 2, lim.Burst())
	assert.True(t, lim.AllowN(time.Now(), 2), "first turn's two requests must not wait on each other")
}

// =============================================================================
// SIMULATED BACKEND
// =============================================================================

func TestNew_SelectsSimulatedWithoutKey(t *testing.T) {
	b, err := New(context.Background(), config.BackendConfig{})
	require.NoError(t, err)
	assert.Equal(t, "simulated", b.Name())
}

func TestNew_SelectsGeminiWithKey(t *testing.T) {
	b, err := New(context.Background(), testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	assert.Equal(t, "gemini:text-model", b.Name())
}

func TestSimulated_Conversation(t *testing.T) {
	s := &SimulatedBackend{}
	conv, err := s.CreateConversation(context.Background(), "Target model: X", ConversationOptions{})
	require.NoError(t, err)

	first, err := conv.SendTurn(context.Background(), TurnInput{Text: "build it\nplease"})
	require.NoError(t, err)
	assert.Contains(t, first.Text, "turn 1")
	assert.Contains(t, first.Text, "Target model: X")
	assert.Contains(t, first.Text, "Request: build it")

	second, err := conv.SendTurn(context.Background(), TurnInput{
		Text:  "again",
		Image: &Image{Data: []byte("abc"), MIMEType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Contains(t, second.Text, "turn 2")
	assert.NotContains(t, second.Text, "Target model: X")
	assert.Contains(t, second.Text, "image/jpeg, 3 bytes")
}

func TestSimulated_PlanIsValidJSON(t *testing.T) {
	s := &SimulatedBackend{}
	reply, err := s.GenerateContent(context.Background(), "plan", GenerateOptions{Schema: map[string]any{}})
	require.NoError(t, err)

	var decoded struct {
		Title string `json:"title"`
		Steps []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(reply.Text), &decoded))
	assert.NotEmpty(t, decoded.Title)
	assert.Len(t, decoded.Steps, 4)
}

func TestSimulated_NoImage(t *testing.T) {
	s := &SimulatedBackend{}
	_, err := s.GenerateContent(context.Background(), "draw", GenerateOptions{WantImage: true})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestSimulated_Cancellation(t *testing.T) {
	s := &SimulatedBackend{Delay: time.Minute}
	conv, err := s.CreateConversation(context.Background(), "seed", ConversationOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conv.SendTurn(ctx, TurnInput{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
