// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import "fmt"

// ValidationError represents user input validation failures: invalid
// workflow source, malformed step fields, constraint violations.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Code identifies this as an InvalidWorkflow-class error at the RPC boundary.
func (e *ValidationError) Code() string { return "InvalidWorkflow" }

// NotFoundError represents a missing resource (workflow, step, loop).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Code() string { return "StepNotFound" }

// ConfigError represents configuration problems: bad env values, bad
// compile-time limits.
type ConfigError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Cause }
func (e *ConfigError) Code() string  { return "InvalidWorkflow" }

// InvalidWorkflowError signals a structurally or semantically invalid
// compiled workflow (§6 taxonomy).
type InvalidWorkflowError struct {
	Reason string
}

func (e *InvalidWorkflowError) Error() string { return "invalid workflow: " + e.Reason }
func (e *InvalidWorkflowError) Code() string  { return "InvalidWorkflow" }

// StepNotFoundError signals a reference to a step id absent from the
// compiled workflow's stepById map.
type StepNotFoundError struct {
	StepID string
}

func (e *StepNotFoundError) Error() string { return fmt.Sprintf("step not found: %q", e.StepID) }
func (e *StepNotFoundError) Code() string  { return "StepNotFound" }

// InvalidStateError signals a reducer precondition violation: a
// mismatched completion event, an unrecognized event kind, or the
// selection-loop guard overflowing (§4.8, §7).
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return "invalid state: " + e.Reason }
func (e *InvalidStateError) Code() string  { return "InvalidState" }

// InvalidLoopError signals a loop kernel frame-invariant violation
// (§4.2, §8 property 6): bad bodyIndex/bodyLen/maxIter arithmetic, or
// re-entry at iteration >= maxIter.
type InvalidLoopError struct {
	LoopID string
	Reason string
}

func (e *InvalidLoopError) Error() string {
	if e.LoopID != "" {
		return fmt.Sprintf("invalid loop %q: %s", e.LoopID, e.Reason)
	}
	return "invalid loop: " + e.Reason
}
func (e *InvalidLoopError) Code() string { return "InvalidLoop" }

// MissingContextError signals a loop source port could not resolve a
// required context value: a non-numeric for-count, a missing or
// non-array forEach items key, or an artifact-backed while/until with
// no matching (or an invalid) loop_control record.
type MissingContextError struct {
	LoopID   string
	Variable string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("loop %q: missing context variable %q", e.LoopID, e.Variable)
}
func (e *MissingContextError) Code() string { return "MissingContext" }

// MaxIterationsExceededError is the taxonomy entry for a loop that ran
// past its max_iterations. No code path in this module returns it: the
// loop kernel treats reaching maxIterations as exit_loop, and re-entry
// at iteration >= maxIterations is reported as InvalidLoopError.
type MaxIterationsExceededError struct {
	LoopID        string
	MaxIterations int
}

func (e *MaxIterationsExceededError) Error() string {
	return fmt.Sprintf("loop %q exceeded max_iterations (%d)", e.LoopID, e.MaxIterations)
}
func (e *MaxIterationsExceededError) Code() string { return "MaxIterationsExceeded" }

// LoopStackCorruptionError signals an attempt to replace the top frame
// of an empty loop stack, or any other structural violation of the
// loop stack invariants in §3/§4.5.
type LoopStackCorruptionError struct {
	Reason string
}

func (e *LoopStackCorruptionError) Error() string { return "loop stack corruption: " + e.Reason }
func (e *LoopStackCorruptionError) Code() string  { return "LoopStackCorruption" }

// EmptyLoopBodyError signals a loop step compiled with zero body steps.
type EmptyLoopBodyError struct {
	LoopID string
}

func (e *EmptyLoopBodyError) Error() string {
	return fmt.Sprintf("loop %q has an empty body", e.LoopID)
}
func (e *EmptyLoopBodyError) Code() string { return "EmptyLoopBody" }

// LoopBodyResolutionError signals a loop body step reference that
// cannot be resolved against stepById, or a self-referencing body.
type LoopBodyResolutionError struct {
	LoopID string
	Ref    string
	Reason string
}

func (e *LoopBodyResolutionError) Error() string {
	return fmt.Sprintf("loop %q body reference %q: %s", e.LoopID, e.Ref, e.Reason)
}
func (e *LoopBodyResolutionError) Code() string { return "LoopBodyResolution" }
