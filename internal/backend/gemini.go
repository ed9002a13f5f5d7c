package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"prompttable/internal/config"
	"prompttable/internal/logging"
	"prompttable/internal/usage"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GEMINI BACKEND
// =============================================================================

// GeminiBackend talks to the Gemini API through the genai SDK.
type GeminiBackend struct {
	client  *genai.Client
	cfg     config.BackendConfig
	limiter *rate.Limiter
}

// NewGeminiBackend creates a Gemini backend. The API key is required.
func NewGeminiBackend(ctx context.Context, cfg config.BackendConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.TextModel == "" {
		cfg.TextModel = config.DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = config.DefaultImageModel
	}

	timeout := cfg.GetTimeout()
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Timeout: &timeout,
		},
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBackend{
		client:  client,
		cfg:     cfg,
		limiter: newLimiter(cfg.RequestsPerMinute),
	}, nil
}

// limiterBurst lets the first turn's reply and illustration requests start
// together.
const limiterBurst = 2

// newLimiter returns nil (unlimited) for rpm <= 0.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), limiterBurst)
}

func (g *GeminiBackend) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// Name returns the backend name.
func (g *GeminiBackend) Name() string {
	return "gemini:" + g.cfg.TextModel
}

// CreateConversation opens a chat seeded with a system instruction.
func (g *GeminiBackend) CreateConversation(ctx context.Context, instructions string, opts ConversationOptions) (Conversation, error) {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
	}
	if opts.Search {
		gc.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	chat, err := g.client.Chats.Create(ctx, g.cfg.TextModel, gc, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	logging.API("conversation opened: model=%s search=%v instructions=%d chars",
		g.cfg.TextModel, opts.Search, len(instructions))
	return &geminiConversation{backend: g, chat: chat}, nil
}

// GenerateContent runs a one-shot request. Image requests go to the image
// model, everything else to the plan/text model.
func (g *GeminiBackend) GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (*Reply, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	model := g.cfg.GetPlanModel()
	gc := &genai.GenerateContentConfig{}
	if opts.WantImage {
		model = g.cfg.ImageModel
		gc.ResponseModalities = []string{string(genai.ModalityText), string(genai.ModalityImage)}
	}
	if opts.Schema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseJsonSchema = opts.Schema
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, gc)
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("generate failed: model=%s err=%v", model, err)
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	logging.APIDebug("generate ok: model=%s took=%s", model, time.Since(start))
	trackUsage(ctx, model, resp, operationFor(opts))

	reply := replyFrom(resp)
	if opts.WantImage && reply.Image == nil {
		return reply, ErrNoImage
	}
	if reply.Text == "" && reply.Image == nil {
		return nil, ErrNoContent
	}
	return reply, nil
}

type geminiConversation struct {
	backend *GeminiBackend

	// genai.Chat records history without locking.
	mu   sync.Mutex
	chat *genai.Chat
}

// SendTurn sends text plus an optional inline image on the chat.
func (c *geminiConversation) SendTurn(ctx context.Context, in TurnInput) (*Reply, error) {
	if err := c.backend.wait(ctx); err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(in.Text)}
	if in.Image != nil && len(in.Image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(in.Image.Data, in.Image.MIMEType))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	resp, err := c.chat.Send(ctx, parts...)
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("turn failed: %v", err)
		return nil, fmt.Errorf("GenAI send failed: %w", err)
	}
	logging.APIDebug("turn ok: took=%s image=%v", time.Since(start), in.Image != nil)
	trackUsage(ctx, c.backend.cfg.TextModel, resp, usage.OperationTurn)

	reply := replyFrom(resp)
	if reply.Text == "" && reply.Image == nil {
		return nil, ErrNoContent
	}
	return reply, nil
}

func operationFor(opts GenerateOptions) usage.Operation {
	switch {
	case opts.WantImage:
		return usage.OperationIllustration
	case opts.Schema != nil:
		return usage.OperationPlan
	}
	return usage.OperationGenerate
}

// trackUsage records the response's token counts on the tracker in ctx.
func trackUsage(ctx context.Context, model string, resp *genai.GenerateContentResponse, op usage.Operation) {
	tracker := usage.FromContext(ctx)
	if tracker == nil || resp == nil || resp.UsageMetadata == nil {
		return
	}
	md := resp.UsageMetadata
	tracker.Track(ctx, model, int(md.PromptTokenCount), int(md.CandidatesTokenCount), op)
}

// replyFrom flattens the first candidate into text and the first inline image.
func replyFrom(resp *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
		if part.InlineData != nil && reply.Image == nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			reply.Image = &Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}
		}
	}
	reply.Text = strings.TrimSpace(sb.String())
	return reply
}
