// Package plan defines the structured execution outline returned by a
// schema-constrained generation call, and the parsing that turns model output
// into a Plan. Parsing never panics; callers substitute ErrorPlan on failure.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// MaxSteps bounds the number of steps in a plan.
const MaxSteps = 6

// StepType tags a step for the flowchart renderer.
type StepType string

const (
	StepStart    StepType = "start"
	StepProcess  StepType = "process"
	StepDecision StepType = "decision"
	StepEnd      StepType = "end"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepStart, StepProcess, StepDecision, StepEnd:
		return true
	}
	return false
}

// Step is one node of a plan.
type Step struct {
	ID     string   `json:"id" yaml:"id"`
	Label  string   `json:"label" yaml:"label"`
	Type   StepType `json:"type" yaml:"type"`
	Detail string   `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Plan is a titled, ordered list of steps. Error marks a stub substituted for
// output that could not be parsed.
type Plan struct {
	Title  string `json:"title" yaml:"title"`
	Steps  []Step `json:"steps" yaml:"steps"`
	Error  bool   `json:"error,omitempty" yaml:"error,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ErrMalformed is wrapped by every Parse failure.
var ErrMalformed = errors.New("malformed plan")

// wirePlan is the shape the model is constrained to return.
type wirePlan struct {
	Title string     `json:"title" jsonschema_description:"Short title of the plan."`
	Steps []wireStep `json:"steps" jsonschema:"minItems=1,maxItems=6" jsonschema_description:"Ordered steps of the plan."`
}

type wireStep struct {
	ID     string   `json:"id" jsonschema_description:"Short unique identifier such as s1."`
	Label  string   `json:"label" jsonschema_description:"A few words naming the step."`
	Type   StepType `json:"type" jsonschema:"enum=start,enum=process,enum=decision,enum=end"`
	Detail string   `json:"detail,omitempty" jsonschema_description:"One sentence describing the step."`
}

var (
	schemaOnce sync.Once
	schemaRaw  map[string]any
)

// Schema returns the JSON schema of the plan response, suitable for a
// backend's structured-output constraint.
func Schema() map[string]any {
	schemaOnce.Do(func() {
		schemaRaw = reflectSchema()
	})
	return schemaRaw
}

// SchemaJSON returns the schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

func reflectSchema() map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	s := r.Reflect(&wirePlan{})
	s.Title = "Plan"

	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("plan schema: %v", err))
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		panic(fmt.Sprintf("plan schema: %v", err))
	}
	delete(raw, "$schema")
	delete(raw, "$id")
	return raw
}

// Parse decodes model output into a Plan. It accepts output wrapped in a
// Markdown code fence, truncates to MaxSteps, normalizes unknown step types to
// process and fills in missing ids.
func Parse(text string) (*Plan, error) {
	body := stripFence(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	var w wirePlan
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(w.Title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrMalformed)
	}
	if len(w.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrMalformed)
	}
	if len(w.Steps) > MaxSteps {
		w.Steps = w.Steps[:MaxSteps]
	}

	p := &Plan{Title: strings.TrimSpace(w.Title), Steps: make([]Step, 0, len(w.Steps))}
	seen := make(map[string]bool)
	for i, ws := range w.Steps {
		id := strings.TrimSpace(ws.ID)
		if id == "" || seen[id] {
			id = fmt.Sprintf("s%d", i+1)
		}
		seen[id] = true

		typ := StepType(strings.ToLower(strings.TrimSpace(string(ws.Type))))
		if !typ.Valid() {
			typ = StepProcess
		}
		p.Steps = append(p.Steps, Step{
			ID:     id,
			Label:  strings.TrimSpace(ws.Label),
			Type:   typ,
			Detail: strings.TrimSpace(ws.Detail),
		})
	}
	return p, nil
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ErrorPlan returns the plan-shaped stub shown when generation output could
// not be parsed.
func ErrorPlan(reason string) *Plan {
	return &Plan{
		Title: "Plan generation failed",
		Steps: []Step{
			{ID: "error", Label: "Could not build a plan", Type: StepEnd, Detail: reason},
		},
		Error:  true,
		Reason: reason,
	}
}

// PromptFor builds the structured-plan request for the given context.
func PromptFor(context string) string {
	return fmt.Sprintf(`Break the following into an execution plan of at most %d steps.
The first step must have type "start" and the last type "end". Use "decision" for branch points and "process" otherwise.
Return only JSON matching the schema.

Context:
%s`, MaxSteps, strings.TrimSpace(context))
}
