package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SimulatedBackend answers locally without network access. It is selected
// when no credentials are configured so the UI stays usable.
type SimulatedBackend struct {
	// Delay is the artificial latency of every call.
	Delay time.Duration
}

// NewSimulatedBackend returns a simulated backend with a short delay.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{Delay: 400 * time.Millisecond}
}

// Name returns the backend name.
func (s *SimulatedBackend) Name() string { return "simulated" }

func (s *SimulatedBackend) sleep(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CreateConversation returns a conversation that remembers its turn count.
func (s *SimulatedBackend) CreateConversation(ctx context.Context, instructions string, opts ConversationOptions) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &simulatedConversation{backend: s, instructions: instructions}, nil
}

// GenerateContent returns a canned plan for schema requests and refuses
// image requests.
func (s *SimulatedBackend) GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (*Reply, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	if opts.WantImage {
		return nil, ErrNoImage
	}
	if opts.Schema != nil {
		data, err := json.Marshal(simulatedPlan)
		if err != nil {
			return nil, err
		}
		return &Reply{Text: string(data)}, nil
	}
	return &Reply{Text: "Simulated response for: " + firstLine(prompt)}, nil
}

var simulatedPlan = map[string]any{
	"title": "Simulated plan",
	"steps": []map[string]string{
		{"id": "s1", "label": "Gather requirements", "type": "start"},
		{"id": "s2", "label": "Draft the prompt", "type": "process"},
		{"id": "s3", "label": "Good enough?", "type": "decision"},
		{"id": "s4", "label": "Ship it", "type": "end"},
	},
}

type simulatedConversation struct {
	backend      *SimulatedBackend
	instructions string

	mu    sync.Mutex
	turns int
}

func (c *simulatedConversation) SendTurn(ctx context.Context, in TurnInput) (*Reply, error) {
	if err := c.backend.sleep(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.turns++
	n := c.turns
	c.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Simulated prompt (turn %d)\n\n", n)
	sb.WriteString("No API key is configured, so this reply was generated locally.\n\n")
	if n == 1 {
		sb.WriteString("```\n")
		sb.WriteString(strings.TrimSpace(c.instructions))
		sb.WriteString("\n```\n\n")
	}
	fmt.Fprintf(&sb, "Request: %s\n", firstLine(in.Text))
	if in.Image != nil {
		fmt.Fprintf(&sb, "\nReference image received (%s, %d bytes).\n", in.Image.MIMEType, len(in.Image.Data))
	}
	return &Reply{Text: sb.String()}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
