package load

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: review-flow
steps:
  - id: draft
    prompt: "write a draft"
  - id: review
    prompt: "review the draft"
`

func writeWorkflow(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFromFile_ParsesDocument(t *testing.T) {
	path := writeWorkflow(t, validYAML)
	doc, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "review-flow", doc.Name)
	assert.Len(t, doc.Steps, 2)
}

func TestFromFile_MissingFileErrors(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompileFile_CompilesValidWorkflow(t *testing.T) {
	path := writeWorkflow(t, validYAML)
	wf, err := CompileFile(path, false)
	require.NoError(t, err)
	assert.Len(t, wf.Steps, 2)
}

func TestCompileFile_RejectsInvalidWorkflow(t *testing.T) {
	path := writeWorkflow(t, "name: bad\nsteps: []\n")
	_, err := CompileFile(path, false)
	assert.Error(t, err)
}

func TestCache_CompileFileCached_ServesRepeatRequestsFromCache(t *testing.T) {
	path := writeWorkflow(t, validYAML)
	cache := NewCache(10)

	first, err := cache.CompileFileCached(path, false)
	require.NoError(t, err)

	second, err := cache.CompileFileCached(path, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestCache_CompileFileCached_DistinctPathsAreIndependent(t *testing.T) {
	pathA := writeWorkflow(t, validYAML)
	pathB := writeWorkflow(t, "name: other\nsteps:\n  - id: a\n    prompt: hi\n")
	cache := NewCache(10)

	a, err := cache.CompileFileCached(pathA, false)
	require.NoError(t, err)
	b, err := cache.CompileFileCached(pathB, false)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
}
