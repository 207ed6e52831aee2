package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/stepkernel/pkg/kernel"
	"github.com/tombee/stepkernel/pkg/workflow/schema"
)

func floatPtr(f float64) *float64 { return &f }

func TestCompile_LinearWorkflow(t *testing.T) {
	doc := &schema.Document{
		Name: "linear",
		Steps: []schema.StepSchema{
			{ID: "a", Prompt: "do a"},
			{ID: "b", Prompt: "do b"},
		},
	}

	wf, err := Compile(doc, false)
	require.NoError(t, err)
	assert.Len(t, wf.Steps, 2)
	assert.Contains(t, wf.StepByID, kernel.StepID("a"))
	assert.Contains(t, wf.StepByID, kernel.StepID("b"))
}

func TestCompile_InlineLoopBody(t *testing.T) {
	doc := &schema.Document{
		Name: "looped",
		Steps: []schema.StepSchema{
			{
				ID: "loop1",
				Loop: &schema.LoopSchema{
					Type:          "for",
					MaxIterations: 5,
					Count:         &schema.CountSchema{Literal: floatPtr(3)},
					Body:          []schema.StepSchema{{ID: "body1", Prompt: "do body1"}},
				},
			},
		},
	}

	wf, err := Compile(doc, false)
	require.NoError(t, err)
	require.Contains(t, wf.CompiledLoops, kernel.StepID("loop1"))
	loop := wf.CompiledLoops[kernel.StepID("loop1")]
	require.Len(t, loop.BodySteps, 1)
	assert.Equal(t, kernel.StepID("body1"), loop.BodySteps[0].ID)
	assert.Contains(t, wf.LoopBodyStepIDs, kernel.StepID("body1"))
	assert.Contains(t, wf.StepByID, kernel.StepID("body1"))
}

func TestCompile_BodyRefResolvesAgainstDocument(t *testing.T) {
	doc := &schema.Document{
		Name: "byref",
		Steps: []schema.StepSchema{
			{ID: "shared", Prompt: "shared step"},
			{
				ID: "loop1",
				Loop: &schema.LoopSchema{
					Type:          "for",
					MaxIterations: 5,
					Count:         &schema.CountSchema{Literal: floatPtr(2)},
					BodyRef:       []string{"shared"},
				},
			},
		},
	}

	wf, err := Compile(doc, false)
	require.NoError(t, err)
	loop := wf.CompiledLoops[kernel.StepID("loop1")]
	require.Len(t, loop.BodySteps, 1)
	assert.Equal(t, kernel.StepID("shared"), loop.BodySteps[0].ID)
}

func TestCompile_UnresolvableBodyRefErrors(t *testing.T) {
	doc := &schema.Document{
		Name: "byref",
		Steps: []schema.StepSchema{
			{
				ID: "loop1",
				Loop: &schema.LoopSchema{
					Type:          "for",
					MaxIterations: 5,
					Count:         &schema.CountSchema{Literal: floatPtr(2)},
					BodyRef:       []string{"missing"},
				},
			},
		},
	}

	_, err := Compile(doc, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no step with this id is declared")
}

func TestCompile_RejectsNestedLoopInBody(t *testing.T) {
	doc := &schema.Document{
		Name: "nested",
		Steps: []schema.StepSchema{
			{
				ID: "outer",
				Loop: &schema.LoopSchema{
					Type:          "for",
					MaxIterations: 2,
					Count:         &schema.CountSchema{Literal: floatPtr(2)},
					Body: []schema.StepSchema{
						{
							ID: "inner",
							Loop: &schema.LoopSchema{
								Type:          "for",
								MaxIterations: 2,
								Count:         &schema.CountSchema{Literal: floatPtr(2)},
								Body:          []schema.StepSchema{{ID: "innerbody", Prompt: "x"}},
							},
						},
					},
				},
			},
		},
	}

	_, err := Compile(doc, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested loop steps are not supported")
}

func TestCompile_RejectsInvalidDocument(t *testing.T) {
	doc := &schema.Document{Name: ""}
	_, err := Compile(doc, false)
	assert.Error(t, err)
}
