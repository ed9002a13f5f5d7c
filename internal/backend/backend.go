// Package backend is the boundary to the generative-AI service. It exposes three
// logical operations: open a multi-turn conversation, send a turn on it, and
// run a stateless one-shot generation (used for illustrations and structured
// plans). The wire format belongs to the service; this package only adapts it.
package backend

import (
	"context"
	"errors"
)

// Backend is a generative-AI service.
type Backend interface {
	// CreateConversation opens a multi-turn context seeded with instructions.
	CreateConversation(ctx context.Context, instructions string, opts ConversationOptions) (Conversation, error)

	// GenerateContent runs a stateless one-shot request.
	GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (*Reply, error)

	// Name identifies the backend in logs and the UI.
	Name() string
}

// Conversation is a live multi-turn context.
type Conversation interface {
	// SendTurn appends a turn and returns the model's reply. Cancelling ctx
	// asks the service to abandon the request.
	SendTurn(ctx context.Context, in TurnInput) (*Reply, error)
}

// ConversationOptions configures a new conversation.
type ConversationOptions struct {
	// Search enables search-grounded answers.
	Search bool
}

// GenerateOptions configures a one-shot request.
type GenerateOptions struct {
	// Schema constrains the reply to JSON matching this JSON schema. The caller
	// parses Reply.Text and handles parse failure.
	Schema map[string]any

	// WantImage requests an inline image in the reply.
	WantImage bool
}

// Image is inline image data.
type Image struct {
	Data     []byte `json:"-" yaml:"-"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`
}

// TurnInput is one outbound turn: text with an optional inline image.
type TurnInput struct {
	Text  string
	Image *Image
}

// Reply is the model output of a call.
type Reply struct {
	Text  string
	Image *Image
}

var (
	// ErrMissingCredentials is returned when no API key is configured.
	ErrMissingCredentials = errors.New("backend: missing API credentials")

	// ErrNoContent is returned when the service answered without any content.
	ErrNoContent = errors.New("backend: response had no content")

	// ErrNoImage is returned when an image was requested but none came back.
	ErrNoImage = errors.New("backend: response had no image")
)
