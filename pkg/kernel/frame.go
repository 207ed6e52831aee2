package kernel

import (
	"time"

	kerrors "github.com/tombee/stepkernel/pkg/errors"
)

// loopContextCell is the one mutable cell in the whole data model
// (§3, §9): the iteration counter and accumulated warnings for a
// running loop. It is owned exclusively by the LoopFrame that created
// it and is carried forward, unreplaced, by Advance/Reset/WithIndex —
// only frame identity (body steps, cursor) is ever re-created.
type loopContextCell struct {
	iteration int
	warnings  []string
	startedAt time.Time
}

// LoopFrame is a shallow-immutable handle onto one active loop: which
// loop, its frozen body steps, and where the cursor sits within the
// current iteration. Every index-changing operation below returns a
// new *LoopFrame; only the interior loopContextCell is ever mutated,
// and only through methods that make that explicit.
type LoopFrame struct {
	loopID           StepID
	loopStepRef      Step
	bodySteps        []Step
	currentBodyIndex int
	ctx              *loopContextCell
}

// NewFrame is the smart constructor for a fresh loop frame at
// iteration 0, body index 0. It freezes bodySteps by copying them and
// rejects an empty body (§3: "|bodySteps| >= 1").
func NewFrame(loopID StepID, loopStepRef Step, bodySteps []Step, startedAt time.Time) (*LoopFrame, error) {
	if len(bodySteps) == 0 {
		return nil, &kerrors.EmptyLoopBodyError{LoopID: string(loopID)}
	}
	frozen := make([]Step, len(bodySteps))
	copy(frozen, bodySteps)

	return &LoopFrame{
		loopID:      loopID,
		loopStepRef: loopStepRef,
		bodySteps:   frozen,
		ctx: &loopContextCell{
			iteration: 0,
			startedAt: startedAt,
		},
	}, nil
}

// RestoreFrame reconstructs a LoopFrame from a persisted FrameState
// plus the compiled body steps, used when hydrating ExecutionState at
// the start of a call and by recovery (C6).
func RestoreFrame(state FrameState, loopStepRef Step, bodySteps []Step) (*LoopFrame, error) {
	f, err := NewFrame(state.LoopID, loopStepRef, bodySteps, time.Unix(0, state.StartedAtUnixNano))
	if err != nil {
		return nil, err
	}
	f.ctx.iteration = state.Iteration
	f.ctx.warnings = append([]string(nil), state.Warnings...)
	f, err = f.WithIndex(state.CurrentBodyIndex, true)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Snapshot returns the persistable FrameState for this frame.
func (f *LoopFrame) Snapshot() FrameState {
	return FrameState{
		LoopID:            f.loopID,
		Iteration:         f.ctx.iteration,
		CurrentBodyIndex:  f.currentBodyIndex,
		Warnings:          append([]string(nil), f.ctx.warnings...),
		StartedAtUnixNano: f.ctx.startedAt.UnixNano(),
	}
}

func (f *LoopFrame) LoopID() StepID        { return f.loopID }
func (f *LoopFrame) LoopStepRef() Step     { return f.loopStepRef }
func (f *LoopFrame) BodySteps() []Step     { return f.bodySteps }
func (f *LoopFrame) BodyLen() int          { return len(f.bodySteps) }
func (f *LoopFrame) CurrentBodyIndex() int { return f.currentBodyIndex }
func (f *LoopFrame) Iteration() int        { return f.ctx.iteration }
func (f *LoopFrame) Warnings() []string    { return f.ctx.warnings }
func (f *LoopFrame) StartedAt() time.Time  { return f.ctx.startedAt }

// WithIndex returns a new frame with currentBodyIndex set to i,
// sharing this frame's loopContextCell and frozen body steps. checks,
// when true, enforces 0 <= i <= len(bodySteps) (§4.5, §8 property 6).
func (f *LoopFrame) WithIndex(i int, checks bool) (*LoopFrame, error) {
	if checks && (i < 0 || i > len(f.bodySteps)) {
		return nil, &kerrors.InvalidLoopError{
			LoopID: string(f.loopID),
			Reason: "body index out of [0, len(bodySteps)] range",
		}
	}
	next := *f
	next.currentBodyIndex = i
	return &next, nil
}

// Advance returns a new frame with currentBodyIndex+1.
func (f *LoopFrame) Advance(checks bool) (*LoopFrame, error) {
	return f.WithIndex(f.currentBodyIndex+1, checks)
}

// Reset returns a new frame with currentBodyIndex set to 0.
func (f *LoopFrame) Reset(checks bool) (*LoopFrame, error) {
	return f.WithIndex(0, checks)
}

// SetIteration mutates the frame's shared iteration counter. This is
// the one sanctioned write to the interior cell (§9: "re-entered by
// advance").
func (f *LoopFrame) SetIteration(n int) {
	f.ctx.iteration = n
}

// AddWarning appends a warning to the frame's shared warnings list.
func (f *LoopFrame) AddWarning(w string) {
	f.ctx.warnings = append(f.ctx.warnings, w)
}

// checkInvariants validates the frame invariants from §3/§8 property
// 6: 0 <= index <= bodyLen, bodyLen >= 1, context cell present.
func (f *LoopFrame) checkInvariants() error {
	switch {
	case f.ctx == nil:
		return &kerrors.LoopStackCorruptionError{Reason: "frame has no loop context cell"}
	case len(f.bodySteps) == 0:
		return &kerrors.EmptyLoopBodyError{LoopID: string(f.loopID)}
	case f.currentBodyIndex < 0 || f.currentBodyIndex > len(f.bodySteps):
		return &kerrors.LoopStackCorruptionError{Reason: "frame body index out of range"}
	}
	return nil
}

// LoopStack is the run's mutable stack of active loop frames, owned
// exclusively by the call in progress (§5: "no other caller observes
// it"). Index 0 is the bottom (outermost) frame.
type LoopStack struct {
	frames []*LoopFrame
}

// NewLoopStack returns an empty stack.
func NewLoopStack() *LoopStack {
	return &LoopStack{}
}

// Push adds f as the new top frame.
func (s *LoopStack) Push(f *LoopFrame) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the top frame. ok is false on an empty stack.
func (s *LoopStack) Pop() (*LoopFrame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// Top returns the current top frame without removing it.
func (s *LoopStack) Top() (*LoopFrame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1], true
}

// ReplaceTop swaps the top frame for f. Replacing on an empty stack is
// a programmer error (§4.5): it returns LoopStackCorruptionError
// rather than panicking, keeping the reducer total.
func (s *LoopStack) ReplaceTop(f *LoopFrame, checks bool) error {
	if len(s.frames) == 0 {
		return &kerrors.LoopStackCorruptionError{Reason: "replaceTop called on an empty loop stack"}
	}
	if checks {
		if err := f.checkInvariants(); err != nil {
			return err
		}
	}
	s.frames[len(s.frames)-1] = f
	return nil
}

// Len reports the current stack depth.
func (s *LoopStack) Len() int { return len(s.frames) }

// Path returns the loop path (outermost first) implied by the current
// stack, for stamping into a new StepInstanceID.
func (s *LoopStack) Path() []LoopPathEntry {
	if len(s.frames) == 0 {
		return nil
	}
	path := make([]LoopPathEntry, len(s.frames))
	for i, f := range s.frames {
		path[i] = LoopPathEntry{LoopID: f.loopID, Iteration: f.Iteration()}
	}
	return path
}

// Snapshot returns the persistable state for the whole stack,
// bottom-to-top, matching ExecutionState.LoopStack's ordering (§3).
func (s *LoopStack) Snapshot() []FrameState {
	if len(s.frames) == 0 {
		return nil
	}
	out := make([]FrameState, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Snapshot()
	}
	return out
}
