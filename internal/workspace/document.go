package workspace

import (
	"fmt"

	"github.com/postnome/postnome/internal/ir"
)

// Document returns a deep copy of the workspace in its persisted form.
func (w *Workspace) Document() *ir.Document {
	w.mu.RLock()
	defer w.mu.RUnlock()

	doc := ir.NewDocument()
	w.vars.Snapshot(doc)
	for _, id := range w.resourceIDs {
		doc.Resources[id] = w.resources[id].Clone()
		doc.ResourceIDs = append(doc.ResourceIDs, id)
	}
	for _, id := range w.requestIDs {
		doc.Requests[id] = w.requests[id].Clone()
		doc.RequestIDs = append(doc.RequestIDs, id)
	}
	return doc
}

// FromDocument rebuilds a workspace from a persisted document. The variable
// indices, resource and request id lists, step name sets and reference counts
// must agree with each other.
func FromDocument(doc *ir.Document) (*Workspace, error) {
	w := New()
	if doc == nil {
		return w, nil
	}
	if err := w.vars.Restore(doc); err != nil {
		return nil, err
	}

	for _, id := range doc.ResourceIDs {
		res, ok := doc.Resources[id]
		if !ok || res == nil {
			return nil, fmt.Errorf("resource %s listed but missing: %w", id, ir.ErrNotFound)
		}
		if _, dup := w.resources[id]; dup {
			return nil, fmt.Errorf("resource %s listed twice: %w", id, ir.ErrDuplicateName)
		}
		c := res.Clone()
		c.ID = id
		if c.Headers == nil {
			c.Headers = make(map[string]ir.Header)
		}
		if c.OutputVariables == nil {
			c.OutputVariables = make(map[string][]string)
		}
		c.References = make(map[string]int)
		w.resources[id] = c
		w.resourceIDs = append(w.resourceIDs, id)
	}
	if len(doc.Resources) != len(w.resourceIDs) {
		return nil, fmt.Errorf("document holds %d resources but lists %d", len(doc.Resources), len(w.resourceIDs))
	}

	for _, id := range doc.RequestIDs {
		req, ok := doc.Requests[id]
		if !ok || req == nil {
			return nil, fmt.Errorf("request %s listed but missing: %w", id, ir.ErrNotFound)
		}
		if _, dup := w.requests[id]; dup {
			return nil, fmt.Errorf("request %s listed twice: %w", id, ir.ErrDuplicateName)
		}
		c := req.Clone()
		c.ID = id
		c.StepNames = make(map[string]bool, len(c.Steps))
		for _, step := range c.Steps {
			if c.StepNames[step.Name] {
				return nil, fmt.Errorf("request %q step %q: %w", c.Name, step.Name, ir.ErrDuplicateStepName)
			}
			res, ok := w.resources[step.ResourceID]
			if !ok {
				return nil, fmt.Errorf("request %q step %q resource %s: %w", c.Name, step.Name, step.ResourceID, ir.ErrNotFound)
			}
			c.StepNames[step.Name] = true
			res.References[id]++
		}
		w.requests[id] = c
		w.requestIDs = append(w.requestIDs, id)
	}
	if len(doc.Requests) != len(w.requestIDs) {
		return nil, fmt.Errorf("document holds %d requests but lists %d", len(doc.Requests), len(w.requestIDs))
	}
	return w, nil
}
