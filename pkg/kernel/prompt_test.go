package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialize_RejectsLoopStep(t *testing.T) {
	_, err := Materialize(Step{ID: "L", Loop: &LoopConfig{Type: LoopFor}}, StepInstanceID{StepID: "L"})
	require.Error(t, err)
}

func TestMaterialize_PlainStep(t *testing.T) {
	step := Step{ID: "A", Prompt: "Do the thing."}
	g, err := Materialize(step, StepInstanceID{StepID: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Do the thing.", g.Prompt)
	assert.False(t, g.RequiresConfirmation)
}

func TestMaterialize_IncludesAgentRoleAndGuidance(t *testing.T) {
	step := Step{
		ID:        "A",
		Prompt:    "Body.",
		AgentRole: "You are a careful reviewer.",
		Guidance:  []string{"Be concise", "Cite sources"},
	}
	g, err := Materialize(step, StepInstanceID{StepID: "A"})
	require.NoError(t, err)
	assert.Contains(t, g.Prompt, "## Agent Role Instructions\nYou are a careful reviewer.")
	assert.Contains(t, g.Prompt, "## Step Guidance\n- Be concise\n- Cite sources")
	assert.Contains(t, g.Prompt, "Body.")
}

func TestMaterialize_AppendsLoopContextForInnermostLoop(t *testing.T) {
	step := Step{ID: "P", Prompt: "Process currentItem."}
	instance := StepInstanceID{
		StepID: "P",
		LoopPath: []LoopPathEntry{
			{LoopID: "items", Iteration: 0},
		},
	}
	g, err := Materialize(step, instance)
	require.NoError(t, err)
	assert.Contains(t, g.Prompt, "## Loop Context\n- Loop: items\n- Iteration: 1")
}

func TestMaterialize_RequiresConfirmationPassthrough(t *testing.T) {
	step := Step{ID: "A", Prompt: "x", RequireConfirmation: true}
	g, err := Materialize(step, StepInstanceID{StepID: "A"})
	require.NoError(t, err)
	assert.True(t, g.RequiresConfirmation)
}
