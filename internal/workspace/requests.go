package workspace

import (
	"fmt"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/variable"
)

// StepChange lists editable step flags; nil fields are left alone.
type StepChange struct {
	OverrideData   *bool
	MetadataSource *string
}

// AddRequest creates an empty request. An empty name becomes "Request N".
func (w *Workspace) AddRequest(name string) (*ir.Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("Request %d", len(w.requestIDs)+1)
	}
	id := ir.NewID()
	for w.requests[id] != nil {
		id = ir.NewID()
	}
	req := &ir.Request{
		ID:        id,
		Name:      name,
		Steps:     []*ir.Step{},
		StepNames: make(map[string]bool),
	}
	w.requests[id] = req
	w.requestIDs = append(w.requestIDs, id)
	return req.Clone(), nil
}

// Request returns a copy of the request with the given id.
func (w *Workspace) Request(id string) (*ir.Request, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	req, ok := w.requests[id]
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

// FindRequest resolves ref as an id first, then as a name.
func (w *Workspace) FindRequest(ref string) (*ir.Request, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if req, ok := w.requests[ref]; ok {
		return req.Clone(), nil
	}
	for _, id := range w.requestIDs {
		if w.requests[id].Name == ref {
			return w.requests[id].Clone(), nil
		}
	}
	return nil, fmt.Errorf("request %q: %w", ref, ir.ErrNotFound)
}

// Requests returns every request in creation order.
func (w *Workspace) Requests() []*ir.Request {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*ir.Request, 0, len(w.requestIDs))
	for _, id := range w.requestIDs {
		out = append(out, w.requests[id].Clone())
	}
	return out
}

func (w *Workspace) request(id string) (*ir.Request, error) {
	req, ok := w.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ir.ErrNotFound)
	}
	return req, nil
}

// RenameRequest renames a request. Override fields of its steps follow the
// new name.
func (w *Workspace) RenameRequest(id, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(id)
	if err != nil {
		return err
	}
	for _, step := range req.Steps {
		if step.OverrideData {
			w.renameField(ir.OverrideField(req.Name, step.Name), ir.OverrideField(name, step.Name))
		}
	}
	req.Name = name
	return nil
}

// DeleteRequest deletes every step, last first, then the request itself.
func (w *Workspace) DeleteRequest(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(id)
	if err != nil {
		return err
	}
	for i := len(req.Steps) - 1; i >= 0; i-- {
		if err := w.deleteStep(req, i); err != nil {
			return err
		}
	}
	delete(w.requests, id)
	w.requestIDs = removeString(w.requestIDs, id)
	return nil
}

// AddStep appends a step bound to resourceID and counts the reference. An
// empty name becomes the first free "Step N".
func (w *Workspace) AddStep(requestID, name, resourceID, metadataSource string, overrideData bool) (*ir.Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(requestID)
	if err != nil {
		return nil, err
	}
	res, err := w.resource(resourceID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		for n := len(req.Steps) + 1; ; n++ {
			name = fmt.Sprintf("Step %d", n)
			if !req.StepNames[name] {
				break
			}
		}
	}
	if req.StepNames[name] {
		return nil, fmt.Errorf("step %q: %w", name, ir.ErrDuplicateStepName)
	}

	step := &ir.Step{
		Name:           name,
		ResourceID:     resourceID,
		OverrideData:   overrideData,
		MetadataSource: metadataSource,
	}
	req.Steps = append(req.Steps, step)
	req.StepNames[name] = true
	if res.References == nil {
		res.References = make(map[string]int)
	}
	res.References[requestID]++
	s := *step
	return &s, nil
}

// DeleteStep removes the step at index and releases its reference. The
// per-request count is dropped once it reaches zero.
func (w *Workspace) DeleteStep(requestID string, index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(requestID)
	if err != nil {
		return err
	}
	return w.deleteStep(req, index)
}

func (w *Workspace) deleteStep(req *ir.Request, index int) error {
	if index < 0 || index >= len(req.Steps) {
		return fmt.Errorf("step %d of %q: %w", index, req.Name, ir.ErrNotFound)
	}
	step := req.Steps[index]
	if res, ok := w.resources[step.ResourceID]; ok {
		if n := res.References[req.ID] - 1; n > 0 {
			res.References[req.ID] = n
		} else {
			delete(res.References, req.ID)
		}
	}
	delete(req.StepNames, step.Name)
	req.Steps = append(req.Steps[:index:index], req.Steps[index+1:]...)
	return nil
}

// RenameStep renames the step at index in place.
func (w *Workspace) RenameStep(requestID string, index int, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(requestID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(req.Steps) {
		return fmt.Errorf("step %d of %q: %w", index, req.Name, ir.ErrNotFound)
	}
	step := req.Steps[index]
	if step.Name == name {
		return nil
	}
	if req.StepNames[name] {
		return fmt.Errorf("step %q: %w", name, ir.ErrDuplicateStepName)
	}
	if step.OverrideData {
		w.renameField(ir.OverrideField(req.Name, step.Name), ir.OverrideField(req.Name, name))
	}
	delete(req.StepNames, step.Name)
	req.StepNames[name] = true
	step.Name = name
	return nil
}

// MoveStep moves the step at from to position to. Reference counts are
// unaffected.
func (w *Workspace) MoveStep(requestID string, from, to int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(requestID)
	if err != nil {
		return err
	}
	n := len(req.Steps)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move step %d to %d of %q: %w", from, to, req.Name, ir.ErrNotFound)
	}
	step := req.Steps[from]
	steps := append(req.Steps[:from:from], req.Steps[from+1:]...)
	steps = append(steps[:to], append([]*ir.Step{step}, steps[to:]...)...)
	req.Steps = steps
	return nil
}

// UpdateStep changes the flags of the step at index.
func (w *Workspace) UpdateStep(requestID string, index int, c StepChange) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, err := w.request(requestID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(req.Steps) {
		return fmt.Errorf("step %d of %q: %w", index, req.Name, ir.ErrNotFound)
	}
	step := req.Steps[index]
	if c.OverrideData != nil {
		step.OverrideData = *c.OverrideData
	}
	if c.MetadataSource != nil {
		step.MetadataSource = *c.MetadataSource
	}
	return nil
}

// RequestFields lists the variables a caller fills in before running a
// request: the inputs of every step's resource followed, for steps with
// override data, by the "<request> <step> data" field. Unknown fields are
// created empty.
func (w *Workspace) RequestFields(requestID string) ([]variable.Variable, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	req, err := w.request(requestID)
	if err != nil {
		return nil, err
	}

	var out []variable.Variable
	seen := make(map[string]bool)
	add := func(id string) {
		if seen[id] {
			return
		}
		if v, ok := w.vars.Get(id); ok {
			seen[id] = true
			out = append(out, v)
		}
	}
	for _, step := range req.Steps {
		if res, ok := w.resources[step.ResourceID]; ok {
			for _, id := range res.InputVariables {
				add(id)
			}
		}
		if step.OverrideData {
			add(w.vars.Touch(ir.OverrideField(req.Name, step.Name)))
		}
	}
	return out, nil
}

func (w *Workspace) renameField(from, to string) {
	id, ok := w.vars.IDOf(from)
	if !ok {
		return
	}
	if _, taken := w.vars.IDOf(to); taken {
		return
	}
	_, _ = w.vars.Set(variable.Update{ID: id, Name: &to})
}
