package plan

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	p, err := Parse(`{
		"title": "Ship the feature",
		"steps": [
			{"id": "s1", "label": "Kickoff", "type": "start"},
			{"id": "s2", "label": "Build", "type": "process", "detail": "Write the code."},
			{"id": "s3", "label": "Tests green?", "type": "decision"},
			{"id": "s4", "label": "Release", "type": "end"}
		]
	}`)
	require.NoError(t, err)

	want := &Plan{
		Title: "Ship the feature",
		Steps: []Step{
			{ID: "s1", Label: "Kickoff", Type: StepStart},
			{ID: "s2", Label: "Build", Type: StepProcess, Detail: "Write the code."},
			{ID: "s3", Label: "Tests green?", Type: StepDecision},
			{ID: "s4", Label: "Release", Type: StepEnd},
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CodeFence(t *testing.T) {
	p, err := Parse("```json\n{\"title\":\"T\",\"steps\":[{\"id\":\"a\",\"label\":\"A\",\"type\":\"start\"}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "T", p.Title)
	assert.Len(t, p.Steps, 1)
}

func TestParse_Normalization(t *testing.T) {
	p, err := Parse(`{"title":" T ","steps":[
		{"label":"one","type":"START"},
		{"id":"x","label":"two","type":"loop"},
		{"id":"x","label":"three","type":"end"}
	]}`)
	require.NoError(t, err)
	assert.Equal(t, "T", p.Title)
	assert.Equal(t, "s1", p.Steps[0].ID)
	assert.Equal(t, StepStart, p.Steps[0].Type)
	assert.Equal(t, StepProcess, p.Steps[1].Type, "unknown type falls back to process")
	assert.Equal(t, "s3", p.Steps[2].ID, "duplicate id is replaced")
}

func TestParse_TruncatesToMaxSteps(t *testing.T) {
	var steps []string
	for i := 0; i < 9; i++ {
		steps = append(steps, `{"label":"x","type":"process"}`)
	}
	p, err := Parse(`{"title":"Long","steps":[` + strings.Join(steps, ",") + `]}`)
	require.NoError(t, err)
	assert.Len(t, p.Steps, MaxSteps)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", "   "},
		{"not json", "Here is your plan: first do X"},
		{"truncated", `{"title":"T","steps":[{"id":"s1"`},
		{"missing title", `{"steps":[{"id":"s1","label":"A","type":"start"}]}`},
		{"no steps", `{"title":"T","steps":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.in)
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestErrorPlan(t *testing.T) {
	p := ErrorPlan("bad json")
	assert.True(t, p.Error)
	assert.Equal(t, "bad json", p.Reason)
	require.NotEmpty(t, p.Steps)
	assert.NotEmpty(t, p.Title)
}

func TestSchema(t *testing.T) {
	s := Schema()
	assert.Equal(t, "object", s["type"])
	assert.NotContains(t, s, "$schema")

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "title")
	require.Contains(t, props, "steps")

	steps := props["steps"].(map[string]any)
	assert.Equal(t, "array", steps["type"])
	assert.EqualValues(t, MaxSteps, steps["maxItems"])

	items := steps["items"].(map[string]any)
	itemProps := items["properties"].(map[string]any)
	typ := itemProps["type"].(map[string]any)
	assert.ElementsMatch(t, []any{"start", "process", "decision", "end"}, typ["enum"])

	required, _ := items["required"].([]any)
	assert.NotContains(t, required, "detail")

	data, err := SchemaJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"maxItems": 6`)
}

func TestPromptFor(t *testing.T) {
	p := PromptFor("  migrate the database  ")
	assert.Contains(t, p, "at most 6 steps")
	assert.True(t, strings.HasSuffix(p, "migrate the database"))
}
