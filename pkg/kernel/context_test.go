package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProject_InjectsOneBasedIteration(t *testing.T) {
	loop := LoopConfig{Type: LoopFor}
	out := Project(loop, 0, Context{})
	assert.Equal(t, 1, out["currentIteration"])
}

func TestProject_CustomIterationVar(t *testing.T) {
	loop := LoopConfig{Type: LoopFor, IterationVar: "i"}
	out := Project(loop, 4, Context{})
	assert.Equal(t, 5, out["i"])
	assert.NotContains(t, out, "currentIteration")
}

func TestProject_ForEachInjectsItemAndIndex(t *testing.T) {
	loop := LoopConfig{Type: LoopForEach, Items: "xs"}
	base := Context{"xs": []any{"a", "b"}}
	out := Project(loop, 0, base)
	assert.Equal(t, "a", out["currentItem"])
	assert.Equal(t, 0, out["currentIndex"])
}

func TestProject_ForEachOutOfRangeOmitsItem(t *testing.T) {
	loop := LoopConfig{Type: LoopForEach, Items: "xs"}
	base := Context{"xs": []any{"a"}}
	out := Project(loop, 5, base)
	assert.NotContains(t, out, "currentItem")
}

func TestProject_DoesNotMutateBase(t *testing.T) {
	base := Context{"xs": []any{"a"}}
	Project(LoopConfig{Type: LoopForEach, Items: "xs"}, 0, base)
	assert.NotContains(t, base, "currentItem")
}

func TestMergeLoopState_AddsUnderLoopID(t *testing.T) {
	out := MergeLoopState(Context{}, "L", map[string]any{"iteration": 2})
	state, ok := out["_loopState"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"iteration": 2}, state["L"])
}

func TestMergeLoopState_PreservesOtherLoops(t *testing.T) {
	base := MergeLoopState(Context{}, "A", map[string]any{"iteration": 1})
	out := MergeLoopState(base, "B", map[string]any{"iteration": 2})
	state := out["_loopState"].(map[string]any)
	assert.Contains(t, state, "A")
	assert.Contains(t, state, "B")
}

func TestAddWarnings_AppendsUnderCategoryAndKey(t *testing.T) {
	out := AddWarnings(Context{}, "context_size", "L", []string{"too big"})
	warnings := out["_warnings"].(map[string]map[string][]string)
	assert.Equal(t, []string{"too big"}, warnings["context_size"]["L"])

	out = AddWarnings(out, "context_size", "L", []string{"still too big"})
	warnings = out["_warnings"].(map[string]map[string][]string)
	assert.Equal(t, []string{"too big", "still too big"}, warnings["context_size"]["L"])
}

func TestAddWarnings_NoOpOnEmpty(t *testing.T) {
	ctx := Context{}
	out := AddWarnings(ctx, "cat", "k", nil)
	assert.NotContains(t, out, "_warnings")
}

func TestCheckSize_BelowCeiling(t *testing.T) {
	result := CheckSize(Context{"a": "small"}, 1024, 0.8)
	assert.False(t, result.Exceeded)
	assert.False(t, result.Warn)
}

func TestCheckSize_ExceedsCeiling(t *testing.T) {
	big := make([]any, 10000)
	for i := range big {
		big[i] = "some reasonably sized filler string"
	}
	result := CheckSize(Context{"items": big}, 1024, 0.8)
	assert.True(t, result.Exceeded)
	assert.True(t, result.Warn)
}

func TestCheckSize_HandlesSelfReferencingMap(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	result := CheckSize(Context{"c": cyclic}, 1024, 0.8)
	assert.False(t, result.Exceeded)
}
