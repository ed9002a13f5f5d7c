package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prompttable/internal/backend"
	"prompttable/internal/builder"
	"prompttable/internal/logging"
	"prompttable/internal/usage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Generate sends input as a new turn. It blocks until the turn ends and
// returns ErrEmptyInput without changing state when input is blank.
// Backend failures are reported through the transcript, never as errors.
func (s *Builder) Generate(ctx context.Context, input string) (TurnResult, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return TurnResult{}, ErrEmptyInput
	}
	return s.runTurn(ctx, turnRequest{display: text, prompt: text}), nil
}

// Regenerate resends the most recent turn payload as a new turn.
func (s *Builder) Regenerate(ctx context.Context) (TurnResult, error) {
	s.mu.Lock()
	last := s.lastRequest
	s.mu.Unlock()
	if last == nil {
		return TurnResult{}, ErrNothingToRegenerate
	}
	return s.runTurn(ctx, *last), nil
}

// Refine sends an annotated image with free-text notes. The transcript shows
// a fixed placeholder instead of the notes.
func (s *Builder) Refine(ctx context.Context, image backend.Image, notes string) (TurnResult, error) {
	if len(image.Data) == 0 {
		return TurnResult{}, ErrEmptyInput
	}
	notes = strings.TrimSpace(notes)
	prompt := "Refine the previous result using the attached annotated image."
	if notes != "" {
		prompt += "\n\nNotes:\n" + notes
	}
	img := image
	return s.runTurn(ctx, turnRequest{display: RefiningText, prompt: prompt, image: &img}), nil
}

// Stop cancels the in-flight turn and appends exactly one stopped message.
// It returns false when nothing is in flight.
func (s *Builder) Stop() bool {
	s.mu.Lock()
	t := s.current
	if t == nil {
		s.mu.Unlock()
		return false
	}
	s.current = nil
	t.cancel(ErrStoppedByUser)

	msg := s.newMessageLocked(RoleSystem, StoppedText)
	msg.Stopped = true
	t.stopped = &msg
	events := []Event{
		s.setStateLocked(StateAborted),
		s.appendLocked(msg),
		s.setStateLocked(StateIdle),
	}
	s.mu.Unlock()

	logging.Session("turn %d stopped by user", t.seq)
	s.emit(events...)
	return true
}

// runTurn performs one idle -> sending -> awaiting-response -> idle cycle.
func (s *Builder) runTurn(parent context.Context, req turnRequest) TurnResult {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	s.mu.Lock()
	if s.current != nil {
		s.current.cancel(errSuperseded)
		logging.SessionDebug("turn %d superseded", s.current.seq)
	}
	s.seq++
	t := &turn{seq: s.seq, cancel: cancel}
	s.current = t

	if len(s.transcript) == 0 {
		s.conv = nil
		s.sessionID = ""
	}
	conv := s.conv
	mode := s.tracker.Mode()
	instructions := ""
	if conv == nil {
		instructions = builder.Compile(s.tracker.Selection(), s.opts).Instructions
	}

	user := s.newMessageLocked(RoleUser, req.display)
	user.Image = req.image
	r := req
	s.lastRequest = &r
	events := []Event{s.setStateLocked(StateSending), s.appendLocked(user)}
	s.mu.Unlock()
	s.emit(events...)

	log := logging.Get(logging.CategorySession)
	log.Info("turn %d: mode=%s new_conversation=%v image=%v", t.seq, mode, conv == nil, req.image != nil)

	first := conv == nil
	if first {
		created, err := s.backend.CreateConversation(ctx, instructions, backend.ConversationOptions{Search: s.search})
		if err != nil {
			return s.finish(ctx, t, nil, fmt.Errorf("create conversation: %w", err))
		}
		if !s.installConversation(t, created) {
			return s.finish(ctx, t, nil, context.Cause(ctx))
		}
		conv = created
	}

	s.mu.Lock()
	sessionID := s.sessionID
	if s.current == t {
		events = []Event{s.setStateLocked(StateAwaitingResponse)}
	} else {
		events = nil
	}
	s.mu.Unlock()
	s.emit(events...)

	in := backend.TurnInput{Text: withDirective(mode, req.prompt), Image: req.image}
	sendCtx := usage.WithSession(ctx, sessionID)

	var reply *backend.Reply
	var err error
	if first && mode.IsDefault() {
		reply, err = s.sendWithIllustration(sendCtx, conv, in, req.prompt)
	} else {
		reply, err = conv.SendTurn(sendCtx, in)
	}
	return s.finish(ctx, t, reply, err)
}

// installConversation stores conv if t is still the current turn.
// The backend keeps its own chat history: a superseded send that completes
// before its cancellation lands stays in that history even though finish
// never adds it to the transcript.
func (s *Builder) installConversation(t *turn, conv backend.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != t {
		return false
	}
	s.conv = conv
	s.sessionID = uuid.NewString()
	logging.Session("conversation %s opened on %s", s.sessionID, s.backend.Name())
	return true
}

// sendWithIllustration runs the content turn and the illustration request
// together. Only the content call can fail the turn.
func (s *Builder) sendWithIllustration(ctx context.Context, conv backend.Conversation, in backend.TurnInput, prompt string) (*backend.Reply, error) {
	var (
		g     errgroup.Group
		reply *backend.Reply
		image *backend.Image
	)

	g.Go(func() error {
		r, err := conv.SendTurn(ctx, in)
		if err != nil {
			return err
		}
		if r == nil {
			return backend.ErrNoContent
		}
		reply = r
		return nil
	})
	g.Go(func() error {
		r, err := s.backend.GenerateContent(ctx, builder.ImagePrompt(prompt), backend.GenerateOptions{WantImage: true})
		if err != nil {
			logging.SessionDebug("illustration skipped: %v", err)
			return nil
		}
		image = r.Image
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := *reply
	if out.Image == nil {
		out.Image = image
	}
	return &out, nil
}

// finish applies the result of turn t unless t was replaced meanwhile.
// A discarded result may still be part of the backend's chat history (see
// installConversation).
func (s *Builder) finish(ctx context.Context, t *turn, reply *backend.Reply, err error) TurnResult {
	log := logging.Get(logging.CategorySession)

	s.mu.Lock()
	if s.current != t {
		stopped := t.stopped
		s.mu.Unlock()
		if stopped != nil {
			return TurnResult{Outcome: OutcomeStopped, Message: stopped}
		}
		log.Debug("turn %d result discarded: %v", t.seq, context.Cause(ctx))
		return TurnResult{Outcome: OutcomeSuperseded}
	}
	s.current = nil

	var (
		events  []Event
		result  TurnResult
		message Message
	)
	switch {
	case err == nil && reply != nil:
		message = s.newMessageLocked(RoleAssistant, reply.Text)
		message.Image = reply.Image
		events = append(events, s.appendLocked(message), s.setStateLocked(StateIdle))
		result = TurnResult{Outcome: OutcomeCompleted, Message: &message}
		log.Info("turn %d completed: %d chars image=%v", t.seq, len(reply.Text), reply.Image != nil)

	case ctx.Err() != nil:
		// The caller's context ended the turn. Report it like a stop.
		message = s.newMessageLocked(RoleSystem, StoppedText)
		message.Stopped = true
		events = append(events, s.setStateLocked(StateAborted), s.appendLocked(message), s.setStateLocked(StateIdle))
		result = TurnResult{Outcome: OutcomeStopped, Message: &message}
		log.Info("turn %d cancelled: %v", t.seq, context.Cause(ctx))

	default:
		if err == nil {
			err = errors.New("empty reply")
		}
		message = s.newMessageLocked(RoleAssistant, FailedText)
		message.Failed = true
		events = append(events, s.setStateLocked(StateError), s.appendLocked(message), s.setStateLocked(StateIdle))
		result = TurnResult{Outcome: OutcomeFailed, Message: &message}
		log.Error("turn %d failed: %v", t.seq, err)
	}
	s.mu.Unlock()

	s.emit(events...)
	return result
}

func withDirective(mode builder.Mode, prompt string) string {
	directive := builder.TurnDirective(mode)
	if directive == "" {
		return prompt
	}
	return directive + "\n\n" + prompt
}
