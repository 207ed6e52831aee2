package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/tombee/stepkernel/pkg/kernel"
)

const (
	MethodNext       = "workflow.next"
	MethodApplyEvent = "workflow.applyEvent"
)

// NextParams is the wire shape for a workflow.next request.
type NextParams struct {
	State     kernel.ExecutionState `json:"state"`
	Context   kernel.Context        `json:"context"`
	Artifacts []kernel.Artifact     `json:"artifacts,omitempty"`
}

// StepResult is the wire shape of a selected step instance. It omits
// NextStep.ProjectedContext deliberately — that field is a Go-API
// convenience for direct callers, not part of the minimal wire
// contract (§6).
type StepResult struct {
	Step           kernel.Step           `json:"step"`
	StepInstanceID kernel.StepInstanceID `json:"stepInstanceId"`
	Guidance       kernel.Guidance       `json:"guidance"`
}

// NextResult is the wire shape of a workflow.next response.
type NextResult struct {
	State      kernel.ExecutionState `json:"state"`
	Next       *StepResult           `json:"next,omitempty"`
	IsComplete bool                  `json:"isComplete"`
	Blocked    []kernel.BlockedStep  `json:"blocked,omitempty"`
}

// ApplyEventParams is the wire shape for a workflow.applyEvent request.
type ApplyEventParams struct {
	State kernel.ExecutionState `json:"state"`
	Event kernel.WorkflowEvent  `json:"event"`
}

// ApplyEventResult is the wire shape of a workflow.applyEvent response.
type ApplyEventResult struct {
	State kernel.ExecutionState `json:"state"`
}

// Handler dispatches RPC requests against one compiled workflow. It is
// safe for concurrent use: the interpreter is pure, and Workflow is
// never mutated after construction.
type Handler struct {
	Workflow    *kernel.CompiledWorkflow
	Interpreter *kernel.Interpreter
}

// NewHandler builds a Handler with a default-configured interpreter.
func NewHandler(workflow *kernel.CompiledWorkflow) *Handler {
	return &Handler{Workflow: workflow, Interpreter: kernel.New()}
}

// Dispatch routes req to the matching method and returns a response or
// error message carrying req's correlation id.
func (h *Handler) Dispatch(req *Message) *Message {
	if err := req.Validate(); err != nil {
		return NewErrorResponse(req.CorrelationID, "InvalidMessage", err.Error(), nil)
	}

	switch req.Method {
	case MethodNext:
		return h.dispatchNext(req)
	case MethodApplyEvent:
		return h.dispatchApplyEvent(req)
	default:
		return NewErrorResponse(req.CorrelationID, "MethodNotFound", fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (h *Handler) dispatchNext(req *Message) *Message {
	var params NextParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.CorrelationID, "InvalidMessage", "invalid workflow.next params: "+err.Error(), nil)
	}

	result, err := h.Interpreter.Next(h.Workflow, params.State, params.Context, params.Artifacts)
	if err != nil {
		return NewErrorResponse(req.CorrelationID, codeForError(err), err.Error(), nil)
	}

	wire := NextResult{State: result.State, IsComplete: result.IsComplete, Blocked: result.Blocked}
	if result.Next != nil {
		wire.Next = &StepResult{
			Step:           result.Next.Step,
			StepInstanceID: result.Next.StepInstanceID,
			Guidance:       result.Next.Guidance,
		}
	}

	resp, err := NewResponse(req.CorrelationID, wire)
	if err != nil {
		return NewErrorResponse(req.CorrelationID, "Internal", err.Error(), nil)
	}
	return resp
}

func (h *Handler) dispatchApplyEvent(req *Message) *Message {
	var params ApplyEventParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.CorrelationID, "InvalidMessage", "invalid workflow.applyEvent params: "+err.Error(), nil)
	}

	state, err := h.Interpreter.ApplyEvent(params.State, params.Event)
	if err != nil {
		return NewErrorResponse(req.CorrelationID, codeForError(err), err.Error(), nil)
	}

	resp, err := NewResponse(req.CorrelationID, ApplyEventResult{State: state})
	if err != nil {
		return NewErrorResponse(req.CorrelationID, "Internal", err.Error(), nil)
	}
	return resp
}
