// Package load reads a workflow document from a YAML file and
// compiles it, grounding the workflow source's wire format in
// gopkg.in/yaml.v3 the way the reference workflow engine's Definition
// loader does.
package load

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tombee/stepkernel/pkg/kernel"
	"github.com/tombee/stepkernel/pkg/workflow/compile"
	"github.com/tombee/stepkernel/pkg/workflow/schema"
)

// FromFile reads and parses path into a schema.Document without
// compiling it, for callers that want to validate or inspect before
// committing to a compiled shape.
func FromFile(path string) (*schema.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file %q: %w", path, err)
	}
	var doc schema.Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing workflow file %q: %w", path, err)
	}
	return &doc, nil
}

// CompileFile loads and compiles path in one step. bundled marks
// whether path is shipped with the runtime itself (permitting the
// reserved "wr." workflow-id namespace).
func CompileFile(path string, bundled bool) (*kernel.CompiledWorkflow, error) {
	doc, err := FromFile(path)
	if err != nil {
		return nil, err
	}
	return compile.Compile(doc, bundled)
}

// Cache wraps a FIFO-evicting compiled-workflow cache keyed by source
// path (§5): repeated CompileFileCached calls for the same path avoid
// re-parsing and re-resolving the document.
type Cache struct {
	compiled *kernel.FIFOCache[*kernel.CompiledWorkflow]
}

// NewCache returns a cache bounded to limit entries.
func NewCache(limit int) *Cache {
	return &Cache{compiled: kernel.NewFIFOCache[*kernel.CompiledWorkflow](limit)}
}

// CompileFileCached behaves like CompileFile but serves repeat
// requests for the same path from the FIFO cache. Callers that edit a
// workflow file in place between calls should construct a fresh Cache
// rather than rely on invalidation — none is performed.
func (c *Cache) CompileFileCached(path string, bundled bool) (*kernel.CompiledWorkflow, error) {
	if wf, ok := c.compiled.Get(path); ok {
		return wf, nil
	}
	wf, err := CompileFile(path, bundled)
	if err != nil {
		return nil, err
	}
	c.compiled.Put(path, wf)
	return wf, nil
}
