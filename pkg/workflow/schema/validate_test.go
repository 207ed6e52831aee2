package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainStep(id string) StepSchema {
	return StepSchema{ID: id, Prompt: "do " + id}
}

func TestValidateWorkflowID(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		bundled bool
		wantErr bool
	}{
		{"empty", "", false, true},
		{"legacy lowercase", "my-workflow", false, false},
		{"namespaced", "team.workflow_name", false, false},
		{"reserved namespace rejected", "wr.internal", false, true},
		{"reserved namespace allowed when bundled", "wr.internal", true, false},
		{"uppercase rejected", "MyWorkflow", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWorkflowID(tc.id, tc.bundled)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDocument_Validate_RequiresAtLeastOneStep(t *testing.T) {
	doc := &Document{Name: "wf"}
	err := doc.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one step")
}

func TestDocument_Validate_RejectsDuplicateStepIDs(t *testing.T) {
	doc := &Document{Name: "wf", Steps: []StepSchema{plainStep("a"), plainStep("a")}}
	err := doc.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestDocument_Validate_Accepts(t *testing.T) {
	doc := &Document{Name: "wf", Steps: []StepSchema{plainStep("a"), plainStep("b")}}
	assert.NoError(t, doc.Validate(false))
}

func TestStepSchema_Validate_RequiresPromptWhenNotLoop(t *testing.T) {
	s := StepSchema{ID: "a"}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a prompt")
}

func TestLoopSchema_Validate_RejectsBothBodyAndBodyRef(t *testing.T) {
	l := &LoopSchema{
		Type:          "for",
		MaxIterations: 3,
		Count:         &CountSchema{Literal: floatPtr(3)},
		Body:          []StepSchema{plainStep("x")},
		BodyRef:       []string{"y"},
	}
	err := l.Validate("loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot set both body and body_ref")
}

func TestLoopSchema_Validate_RejectsSelfReferenceInBodyRef(t *testing.T) {
	l := &LoopSchema{Type: "for", MaxIterations: 3, Count: &CountSchema{Literal: floatPtr(2)}, BodyRef: []string{"loop"}}
	err := l.Validate("loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reference itself")
}

func TestLoopSchema_Validate_ForRequiresCount(t *testing.T) {
	l := &LoopSchema{Type: "for", MaxIterations: 3, Body: []StepSchema{plainStep("x")}}
	err := l.Validate("loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires count")
}

func TestLoopSchema_Validate_ForEachRequiresItems(t *testing.T) {
	l := &LoopSchema{Type: "forEach", MaxIterations: 3, Body: []StepSchema{plainStep("x")}}
	err := l.Validate("loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires items")
}

func TestLoopSchema_Validate_WhileRequiresConditionOrSource(t *testing.T) {
	l := &LoopSchema{Type: "while", MaxIterations: 3, Body: []StepSchema{plainStep("x")}}
	err := l.Validate("loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires condition or condition_source")
}

func TestLoopSchema_Validate_ArtifactContractRequiresLoopID(t *testing.T) {
	l := &LoopSchema{
		Type:            "while",
		MaxIterations:   3,
		Body:            []StepSchema{plainStep("x")},
		ConditionSource: &ConditionSourceSchema{Kind: "artifact_contract"},
	}
	err := l.Validate("loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires loop_id")
}

func TestLoopSchema_Validate_AcceptsWellFormedForLoop(t *testing.T) {
	l := &LoopSchema{Type: "for", MaxIterations: 3, Count: &CountSchema{Literal: floatPtr(3)}, Body: []StepSchema{plainStep("x")}}
	assert.NoError(t, l.Validate("loop"))
}

func floatPtr(f float64) *float64 { return &f }
