package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/stepkernel/pkg/kernel"
)

func linearWorkflow() *kernel.CompiledWorkflow {
	stepA := kernel.Step{ID: "a", Prompt: "do a"}
	stepB := kernel.Step{ID: "b", Prompt: "do b"}
	return &kernel.CompiledWorkflow{
		Steps:           []kernel.Step{stepA, stepB},
		StepByID:        map[kernel.StepID]kernel.Step{"a": stepA, "b": stepB},
		LoopBodyStepIDs: map[kernel.StepID]struct{}{},
		CompiledLoops:   map[kernel.StepID]kernel.CompiledLoop{},
	}
}

func TestHandler_Dispatch_NextReturnsFirstStep(t *testing.T) {
	h := NewHandler(linearWorkflow())

	req, err := NewRequest(MethodNext, NextParams{State: kernel.NewExecutionState()})
	require.NoError(t, err)

	resp := h.Dispatch(req)
	require.Equal(t, MessageTypeResponse, resp.Type)

	var result NextResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotNil(t, result.Next)
	assert.Equal(t, kernel.StepID("a"), result.Next.Step.ID)
	assert.False(t, result.IsComplete)
}

func TestHandler_Dispatch_ApplyEventAdvancesState(t *testing.T) {
	h := NewHandler(linearWorkflow())

	nextReq, err := NewRequest(MethodNext, NextParams{State: kernel.NewExecutionState()})
	require.NoError(t, err)
	nextResp := h.Dispatch(nextReq)
	var nextResult NextResult
	require.NoError(t, json.Unmarshal(nextResp.Result, &nextResult))

	eventReq, err := NewRequest(MethodApplyEvent, ApplyEventParams{
		State: nextResult.State,
		Event: kernel.WorkflowEvent{Kind: kernel.EventStepCompleted, StepInstanceID: nextResult.Next.StepInstanceID},
	})
	require.NoError(t, err)

	eventResp := h.Dispatch(eventReq)
	require.Equal(t, MessageTypeResponse, eventResp.Type)

	var applied ApplyEventResult
	require.NoError(t, json.Unmarshal(eventResp.Result, &applied))
	assert.Nil(t, applied.State.PendingStep)
	assert.Contains(t, applied.State.Completed, nextResult.Next.StepInstanceID.Key())
}

func TestHandler_Dispatch_UnknownMethod(t *testing.T) {
	h := NewHandler(linearWorkflow())
	req, err := NewRequest("workflow.bogus", nil)
	require.NoError(t, err)

	resp := h.Dispatch(req)
	require.Equal(t, MessageTypeError, resp.Type)
	assert.Equal(t, "MethodNotFound", resp.Error.Code)
}

func TestHandler_Dispatch_ApplyEventRejectsMismatchedInstance(t *testing.T) {
	h := NewHandler(linearWorkflow())
	nextReq, err := NewRequest(MethodNext, NextParams{State: kernel.NewExecutionState()})
	require.NoError(t, err)
	nextResp := h.Dispatch(nextReq)
	var nextResult NextResult
	require.NoError(t, json.Unmarshal(nextResp.Result, &nextResult))

	eventReq, err := NewRequest(MethodApplyEvent, ApplyEventParams{
		State: nextResult.State,
		Event: kernel.WorkflowEvent{Kind: kernel.EventStepCompleted, StepInstanceID: kernel.StepInstanceID{StepID: "wrong"}},
	})
	require.NoError(t, err)

	resp := h.Dispatch(eventReq)
	require.Equal(t, MessageTypeError, resp.Type)
	assert.Equal(t, "InvalidState", resp.Error.Code)
}
