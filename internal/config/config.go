// Package config holds the small set of environment-tunable limits the
// interpreter documents in spec §5/§6: whether loop-frame invariant
// assertions run on hot paths, the selection-loop iteration guard, and
// the context size ceiling.
package config

import (
	"os"
	"strconv"
)

const (
	// DefaultSelectionLoopGuard bounds next()'s internal selection loop (§4.8.2).
	DefaultSelectionLoopGuard = 10_000

	// DefaultContextSizeCeilingBytes is the hard ceiling on projected context size (§4.7).
	DefaultContextSizeCeilingBytes = 256 * 1024

	// DefaultContextSizeWarnRatio is the fraction of the ceiling that triggers a warning.
	DefaultContextSizeWarnRatio = 0.8

	// DefaultResolvedStepCacheSize is carried in Limits as
	// ResolvedStepCacheSize; no package in this module reads it.
	DefaultResolvedStepCacheSize = 1000

	// DefaultLoopWallClockGuardSeconds is the five-minute safety check in §5,
	// expressed in seconds.
	DefaultLoopWallClockGuardSeconds = 5 * 60
)

// Limits is the mutable set of tunables. Zero value is invalid; use
// FromEnv or DefaultLimits.
type Limits struct {
	SelectionLoopGuard         int
	ContextSizeCeilingBytes    int
	ContextSizeWarnRatio       float64
	ResolvedStepCacheSize      int
	LoopWallClockGuardSeconds  int
	FrameInvariantChecksOff    bool
}

// DefaultLimits returns the spec-documented defaults.
func DefaultLimits() Limits {
	return Limits{
		SelectionLoopGuard:        DefaultSelectionLoopGuard,
		ContextSizeCeilingBytes:   DefaultContextSizeCeilingBytes,
		ContextSizeWarnRatio:      DefaultContextSizeWarnRatio,
		ResolvedStepCacheSize:     DefaultResolvedStepCacheSize,
		LoopWallClockGuardSeconds: DefaultLoopWallClockGuardSeconds,
		FrameInvariantChecksOff:   false,
	}
}

// FromEnv layers environment overrides onto DefaultLimits. Only
// STEPKERNEL_DISABLE_FRAME_CHECKS is documented as a public toggle
// (§6); the rest exist for test tuning and are read best-effort.
func FromEnv() Limits {
	l := DefaultLimits()
	if v := os.Getenv("STEPKERNEL_DISABLE_FRAME_CHECKS"); v == "1" || v == "true" {
		l.FrameInvariantChecksOff = true
	}
	if v := os.Getenv("STEPKERNEL_SELECTION_LOOP_GUARD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			l.SelectionLoopGuard = n
		}
	}
	return l
}
