package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"prompttable/internal/backend"
)

// --- fakeBackend ---

// sendFunc answers the n-th SendTurn (1-based, counted across conversations).
type sendFunc func(ctx context.Context, n int, in backend.TurnInput) (*backend.Reply, error)

// generateFunc answers a one-shot request.
type generateFunc func(ctx context.Context, prompt string, opts backend.GenerateOptions) (*backend.Reply, error)

// fakeBackend is a scripted backend.Backend that records every call.
type fakeBackend struct {
	send      sendFunc
	generate  generateFunc
	createErr error

	mu           sync.Mutex
	instructions []string
	searches     []bool
	inputs       []backend.TurnInput
	prompts      []string
	genOpts      []backend.GenerateOptions
	sends        int

	started chan int // receives n when the n-th SendTurn starts
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		send: func(ctx context.Context, n int, in backend.TurnInput) (*backend.Reply, error) {
			return &backend.Reply{Text: "reply"}, nil
		},
		generate: func(ctx context.Context, prompt string, opts backend.GenerateOptions) (*backend.Reply, error) {
			if opts.WantImage {
				return &backend.Reply{Image: &backend.Image{Data: []byte("img"), MIMEType: "image/png"}}, nil
			}
			return &backend.Reply{Text: "{}"}, nil
		},
		started: make(chan int, 16),
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) CreateConversation(ctx context.Context, instructions string, opts backend.ConversationOptions) (backend.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.instructions = append(f.instructions, instructions)
	f.searches = append(f.searches, opts.Search)
	return &fakeConversation{backend: f}, nil
}

func (f *fakeBackend) GenerateContent(ctx context.Context, prompt string, opts backend.GenerateOptions) (*backend.Reply, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.genOpts = append(f.genOpts, opts)
	gen := f.generate
	f.mu.Unlock()
	return gen(ctx, prompt, opts)
}

func (f *fakeBackend) conversations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instructions)
}

func (f *fakeBackend) imageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.genOpts {
		if o.WantImage {
			n++
		}
	}
	return n
}

func (f *fakeBackend) turnInputs() []backend.TurnInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.TurnInput, len(f.inputs))
	copy(out, f.inputs)
	return out
}

// waitStarted blocks until the n-th SendTurn has started.
func (f *fakeBackend) waitStarted(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.started:
			if got == n {
				return
			}
		case <-deadline:
			t.Fatalf("SendTurn %d never started", n)
		}
	}
}

// --- fakeConversation ---

type fakeConversation struct {
	backend *fakeBackend
}

func (c *fakeConversation) SendTurn(ctx context.Context, in backend.TurnInput) (*backend.Reply, error) {
	f := c.backend
	f.mu.Lock()
	f.sends++
	n := f.sends
	f.inputs = append(f.inputs, in)
	send := f.send
	f.mu.Unlock()

	f.started <- n
	return send(ctx, n, in)
}

// blockUntilDone waits for cancellation like a well-behaved client.
func blockUntilDone(ctx context.Context) (*backend.Reply, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// recorder collects builder events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
