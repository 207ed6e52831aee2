package kernel

import (
	"reflect"
)

const (
	defaultIterationVar = "currentIteration"
	defaultItemVar      = "currentItem"
	defaultIndexVar     = "currentIndex"
)

// Project produces the context used to evaluate and materialize one
// loop iteration (C7): it injects the loop's iteration variable
// (1-based, per §4.7), and for forEach loops, the current item and
// index when the items array is long enough to cover this iteration.
func Project(loop LoopConfig, iteration int, base Context) Context {
	out := shallowCopy(base)

	iterVar := loop.IterationVar
	if iterVar == "" {
		iterVar = defaultIterationVar
	}
	out[iterVar] = iteration + 1

	if loop.Type == LoopForEach && loop.Items != "" {
		if arr, ok := base[loop.Items].([]any); ok && iteration < len(arr) {
			itemVar := loop.ItemVar
			if itemVar == "" {
				itemVar = defaultItemVar
			}
			indexVar := loop.IndexVar
			if indexVar == "" {
				indexVar = defaultIndexVar
			}
			out[itemVar] = arr[iteration]
			out[indexVar] = iteration
		}
	}

	return out
}

// MergeLoopState inserts or updates loopID's progress record under
// _loopState in a new context. It always copies the top level and the
// existing _loopState map; there is no separate fast path.
func MergeLoopState(ctx Context, loopID StepID, state map[string]any) Context {
	out := shallowCopy(ctx)

	existing, _ := out["_loopState"].(map[string]any)
	ls := make(map[string]any, len(existing)+1)
	for k, v := range existing {
		ls[k] = v
	}
	ls[string(loopID)] = state
	out["_loopState"] = ls
	return out
}

// AddWarnings inserts warnings under _warnings[category][key] in a new
// context, appending to any warnings already recorded there.
func AddWarnings(ctx Context, category, key string, warnings []string) Context {
	if len(warnings) == 0 {
		return ctx
	}
	out := shallowCopy(ctx)

	topExisting, _ := out["_warnings"].(map[string]map[string][]string)
	top := make(map[string]map[string][]string, len(topExisting)+1)
	for k, v := range topExisting {
		top[k] = v
	}

	catExisting := top[category]
	cat := make(map[string][]string, len(catExisting)+1)
	for k, v := range catExisting {
		cat[k] = v
	}
	cat[key] = append(append([]string(nil), cat[key]...), warnings...)
	top[category] = cat
	out["_warnings"] = top
	return out
}

func shallowCopy(ctx Context) Context {
	out := make(Context, len(ctx)+4)
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

// SizeCheckResult reports the outcome of CheckSize against the
// configured ceiling and warning ratio (§4.7).
type SizeCheckResult struct {
	Bytes     int
	Warn      bool
	Exceeded  bool
}

// CheckSize estimates ctx's serialized size with a bounded recursive
// walker, tracking visited container addresses so a cyclic structure
// (never produced by JSON/YAML decode, but reachable by a caller
// constructing Context by hand) terminates instead of looping forever.
func CheckSize(ctx Context, ceilingBytes int, warnRatio float64) SizeCheckResult {
	visited := make(map[uintptr]bool)
	size := estimateSize(map[string]any(ctx), visited)
	return SizeCheckResult{
		Bytes:    size,
		Warn:     float64(size) >= float64(ceilingBytes)*warnRatio,
		Exceeded: size > ceilingBytes,
	}
}

func estimateSize(v any, visited map[uintptr]bool) int {
	switch val := v.(type) {
	case nil:
		return 4
	case string:
		return len(val)
	case bool:
		return 4
	case int, int32, int64, float32, float64:
		return 8
	case map[string]any:
		ptr := reflect.ValueOf(val).Pointer()
		if visited[ptr] {
			return 0
		}
		visited[ptr] = true
		total := 2
		for k, child := range val {
			total += len(k) + 3 + estimateSize(child, visited)
		}
		return total
	case []any:
		rv := reflect.ValueOf(val)
		if rv.Len() > 0 {
			ptr := rv.Pointer()
			if visited[ptr] {
				return 0
			}
			visited[ptr] = true
		}
		total := 2
		for _, child := range val {
			total += 1 + estimateSize(child, visited)
		}
		return total
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Map:
			if rv.Len() == 0 {
				return 2
			}
			ptr := rv.Pointer()
			if visited[ptr] {
				return 0
			}
			visited[ptr] = true
			total := 2
			iter := rv.MapRange()
			for iter.Next() {
				total += estimateSize(iter.Key().Interface(), visited) + 1 + estimateSize(iter.Value().Interface(), visited)
			}
			return total
		case reflect.Slice, reflect.Array:
			total := 2
			for i := 0; i < rv.Len(); i++ {
				total += 1 + estimateSize(rv.Index(i).Interface(), visited)
			}
			return total
		default:
			return 8
		}
	}
}
