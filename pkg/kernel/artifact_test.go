package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateLoopControl_Found(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactLoopControl, LoopID: "L", Decision: LoopControlContinue},
	}
	d := EvaluateLoopControl(artifacts, "L")
	assert.Equal(t, ArtifactFound, d.Status)
	assert.Equal(t, LoopControlContinue, d.Decision)
}

func TestEvaluateLoopControl_NotFound(t *testing.T) {
	d := EvaluateLoopControl(nil, "L")
	assert.Equal(t, ArtifactNotFound, d.Status)
}

func TestEvaluateLoopControl_WrongLoopIgnored(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactLoopControl, LoopID: "other", Decision: LoopControlContinue},
	}
	d := EvaluateLoopControl(artifacts, "L")
	assert.Equal(t, ArtifactNotFound, d.Status)
}

func TestEvaluateLoopControl_InvalidDecision(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactLoopControl, LoopID: "L", Decision: "maybe"},
	}
	d := EvaluateLoopControl(artifacts, "L")
	assert.Equal(t, ArtifactInvalid, d.Status)
}

func TestEvaluateLoopControl_FirstMatchWins(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactLoopControl, LoopID: "L", Decision: LoopControlStop},
		{Kind: ArtifactLoopControl, LoopID: "L", Decision: LoopControlContinue},
	}
	d := EvaluateLoopControl(artifacts, "L")
	assert.Equal(t, LoopControlStop, d.Decision)
}
