package session

import (
	"context"
	"strings"

	"prompttable/internal/backend"
	"prompttable/internal/logging"
	"prompttable/internal/plan"
	"prompttable/internal/usage"
)

// GeneratePlan requests a structured plan outside the turn cycle. The context
// is the most recent assistant reply, or input when there is none.
//
// Malformed output yields a message carrying plan.ErrorPlan. A backend
// failure yields a generic failed message. Only cancellation, a concurrent
// Reset and a missing context are returned as errors.
func (s *Builder) GeneratePlan(ctx context.Context, input string) (*Message, error) {
	s.mu.Lock()
	source := s.latestReplyLocked()
	epoch := s.epoch
	sessionID := s.sessionID
	s.mu.Unlock()

	if source == "" {
		source = strings.TrimSpace(input)
	}
	if source == "" {
		return nil, ErrEmptyInput
	}

	logging.Plan("plan requested: %d chars of context", len(source))
	log := logging.Get(logging.CategoryPlan)

	reply, err := s.backend.GenerateContent(usage.WithSession(ctx, sessionID), plan.PromptFor(source), backend.GenerateOptions{Schema: plan.Schema()})
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		log.Warn("plan request failed: %v", err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, ErrSessionReset
	}

	var msg Message
	if err != nil {
		msg = s.newMessageLocked(RoleAssistant, PlanFailedText)
		msg.Failed = true
	} else {
		p, perr := plan.Parse(reply.Text)
		if perr != nil {
			log.Warn("plan output unusable: %v", perr)
			p = plan.ErrorPlan(perr.Error())
		}
		msg = s.newMessageLocked(RoleAssistant, p.Title)
		msg.Plan = p
	}
	ev := s.appendLocked(msg)
	s.mu.Unlock()

	s.emit(ev)
	return &msg, nil
}

// latestReplyLocked returns the text of the newest successful assistant
// reply that is not itself a plan. Caller holds s.mu.
func (s *Builder) latestReplyLocked() string {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		m := s.transcript[i]
		if m.Role == RoleAssistant && !m.Failed && m.Plan == nil && strings.TrimSpace(m.Text) != "" {
			return m.Text
		}
	}
	return ""
}
