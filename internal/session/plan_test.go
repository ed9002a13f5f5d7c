package session

import (
	"context"
	"errors"
	"testing"

	"prompttable/internal/backend"
	"prompttable/internal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `{"title":"Launch","steps":[
 {"id":"a","label":"Start","type":"start"},
 {"id":"b","label":"Build","type":"process","detail":"write code"},
 {"id":"c","label":"Done","type":"end"}]}`

func planBackend(reply string, err error) *fakeBackend {
	fb := newFakeBackend()
	fb.generate = func(ctx context.Context, prompt string, opts backend.GenerateOptions) (*backend.Reply, error) {
		if opts.WantImage {
			return nil, backend.ErrNoImage
		}
		if err != nil {
			return nil, err
		}
		return &backend.Reply{Text: reply}, nil
	}
	return fb
}

func TestGeneratePlan_UsesInputWithoutReplies(t *testing.T) {
	fb := planBackend(validPlanJSON, nil)
	b := New(fb)

	msg, err := b.GeneratePlan(context.Background(), "ship a CLI")
	require.NoError(t, err)

	require.NotNil(t, msg.Plan)
	assert.False(t, msg.Plan.Error)
	assert.Equal(t, "Launch", msg.Text)
	assert.Len(t, msg.Plan.Steps, 3)
	assert.Equal(t, plan.StepStart, msg.Plan.Steps[0].Type)

	require.Len(t, fb.prompts, 1)
	assert.Equal(t, plan.PromptFor("ship a CLI"), fb.prompts[0])
	assert.NotNil(t, fb.genOpts[0].Schema)
	assert.False(t, fb.genOpts[0].WantImage)

	msgs := b.Transcript()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
}

func TestGeneratePlan_UsesLatestReply(t *testing.T) {
	fb := planBackend(validPlanJSON, nil)
	fb.send = func(ctx context.Context, n int, in backend.TurnInput) (*backend.Reply, error) {
		if n == 1 {
			return &backend.Reply{Text: "older reply"}, nil
		}
		return &backend.Reply{Text: "newest reply"}, nil
	}
	b := New(fb)

	_, err := b.Generate(context.Background(), "one")
	require.NoError(t, err)
	_, err = b.Generate(context.Background(), "two")
	require.NoError(t, err)

	_, err = b.GeneratePlan(context.Background(), "ignored input")
	require.NoError(t, err)

	last := fb.prompts[len(fb.prompts)-1]
	assert.Equal(t, plan.PromptFor("newest reply"), last)

	// A plan message is not itself plan context.
	_, err = b.GeneratePlan(context.Background(), "")
	require.NoError(t, err)
	last = fb.prompts[len(fb.prompts)-1]
	assert.Equal(t, plan.PromptFor("newest reply"), last)
}

func TestGeneratePlan_MalformedOutputYieldsErrorPlan(t *testing.T) {
	for _, reply := range []string{`{"title": "x", "steps": [`, `not json at all`, `{"title":"","steps":[]}`} {
		b := New(planBackend(reply, nil))

		msg, err := b.GeneratePlan(context.Background(), "context")
		require.NoError(t, err, reply)
		require.NotNil(t, msg.Plan, reply)
		assert.True(t, msg.Plan.Error, reply)
		assert.NotEmpty(t, msg.Plan.Reason, reply)
		assert.False(t, msg.Failed, reply)
	}
}

func TestGeneratePlan_BackendFailure(t *testing.T) {
	b := New(planBackend("", errors.New("permission denied")))

	msg, err := b.GeneratePlan(context.Background(), "context")
	require.NoError(t, err)
	assert.True(t, msg.Failed)
	assert.Nil(t, msg.Plan)
	assert.Equal(t, PlanFailedText, msg.Text)
	assert.Len(t, b.Transcript(), 1)
}

func TestGeneratePlan_EmptyContext(t *testing.T) {
	fb := planBackend(validPlanJSON, nil)
	b := New(fb)

	_, err := b.GeneratePlan(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, fb.prompts)
}

func TestGeneratePlan_Cancelled(t *testing.T) {
	fb := newFakeBackend()
	fb.generate = func(ctx context.Context, prompt string, opts backend.GenerateOptions) (*backend.Reply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := New(fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.GeneratePlan(ctx, "context")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.Transcript())
}

func TestGeneratePlan_ResetWhileRunning(t *testing.T) {
	fb := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	fb.generate = func(ctx context.Context, prompt string, opts backend.GenerateOptions) (*backend.Reply, error) {
		close(entered)
		<-release
		return &backend.Reply{Text: validPlanJSON}, nil
	}
	b := New(fb)

	errc := make(chan error, 1)
	go func() {
		_, err := b.GeneratePlan(context.Background(), "context")
		errc <- err
	}()
	<-entered
	b.Reset()
	close(release)

	assert.ErrorIs(t, <-errc, ErrSessionReset)
	assert.Empty(t, b.Transcript())
}

func TestGeneratePlan_DoesNotDisturbTurnState(t *testing.T) {
	b := New(planBackend(validPlanJSON, nil))
	_, err := b.GeneratePlan(context.Background(), "context")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, b.State())
	assert.False(t, b.Busy())
	assert.Empty(t, b.SessionID())
}
