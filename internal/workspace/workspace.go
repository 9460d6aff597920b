// Package workspace holds resources, requests and the variable store they
// share, and keeps reference counts and derived inputs consistent.
package workspace

import (
	"fmt"
	"strings"
	"sync"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/template"
	"github.com/postnome/postnome/internal/variable"
)

const (
	MethodGet  = "get"
	MethodPost = "post"
)

// DefaultHeaders are attached to resources created without explicit headers.
var DefaultHeaders = []ir.Header{ir.NewHeader("Content-Type", "text/plain")}

// Workspace is the in-memory settings document. Accessors return copies;
// every mutation goes through a method so indices stay in sync.
type Workspace struct {
	mu          sync.RWMutex
	vars        *variable.Store
	resources   map[string]*ir.Resource
	resourceIDs []string
	requests    map[string]*ir.Request
	requestIDs  []string
}

// New returns an empty workspace.
func New() *Workspace {
	w := &Workspace{
		vars:      variable.New(),
		resources: make(map[string]*ir.Resource),
		requests:  make(map[string]*ir.Request),
	}
	w.vars.SetGuard(w.variableInUse)
	return w
}

// Variables exposes the shared variable store.
func (w *Workspace) Variables() *variable.Store {
	return w.vars
}

// Change lists the editable resource fields; nil fields are left alone.
// Headers maps existing header ids to their new name/value.
type Change struct {
	URL           *string
	Data          *string
	ImportName    *string
	ImportContent *string
	Headers       map[string]ir.Header
}

// AddResource creates a resource. An empty name becomes "Resource N", an
// empty method "get", and nil headers the DefaultHeaders.
func (w *Workspace) AddResource(name, url, method, importType string, headers []ir.Header, data string) (*ir.Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("Resource %d", len(w.resourceIDs)+1)
	}
	if method == "" {
		method = MethodGet
	}
	method, err := normalizeMethod(method)
	if err != nil {
		return nil, err
	}
	if headers == nil {
		headers = DefaultHeaders
	}

	id := ir.NewID()
	for w.resources[id] != nil {
		id = ir.NewID()
	}
	res := &ir.Resource{
		ID:              id,
		Name:            name,
		URL:             url,
		Method:          method,
		Data:            data,
		ImportType:      importType,
		Headers:         make(map[string]ir.Header),
		OutputVariables: make(map[string][]string),
		References:      make(map[string]int),
	}
	for _, h := range headers {
		if _, err := addHeader(res, h.Name(), h.Value()); err != nil {
			return nil, err
		}
	}
	w.refreshInputs(res)

	w.resources[id] = res
	w.resourceIDs = append(w.resourceIDs, id)
	return res.Clone(), nil
}

// Resource returns a copy of the resource with the given id.
func (w *Workspace) Resource(id string) (*ir.Resource, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, ok := w.resources[id]
	if !ok {
		return nil, false
	}
	return res.Clone(), true
}

// ResourceAt returns the resource at position i in creation order.
func (w *Workspace) ResourceAt(i int) (*ir.Resource, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if i < 0 || i >= len(w.resourceIDs) {
		return nil, false
	}
	return w.resources[w.resourceIDs[i]].Clone(), true
}

// FindResource resolves ref as an id first, then as a name.
func (w *Workspace) FindResource(ref string) (*ir.Resource, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, err := w.findResource(ref)
	if err != nil {
		return nil, err
	}
	return res.Clone(), nil
}

func (w *Workspace) findResource(ref string) (*ir.Resource, error) {
	if res, ok := w.resources[ref]; ok {
		return res, nil
	}
	for _, id := range w.resourceIDs {
		if w.resources[id].Name == ref {
			return w.resources[id], nil
		}
	}
	return nil, fmt.Errorf("resource %q: %w", ref, ir.ErrNotFound)
}

func (w *Workspace) resource(id string) (*ir.Resource, error) {
	res, ok := w.resources[id]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", id, ir.ErrNotFound)
	}
	return res, nil
}

// Resources returns every resource in creation order.
func (w *Workspace) Resources() []*ir.Resource {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*ir.Resource, 0, len(w.resourceIDs))
	for _, id := range w.resourceIDs {
		out = append(out, w.resources[id].Clone())
	}
	return out
}

// RenameResource changes the display name of a resource.
func (w *Workspace) RenameResource(id, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(id)
	if err != nil {
		return err
	}
	res.Name = name
	return nil
}

// ChangeResource applies c and recomputes the resource inputs.
func (w *Workspace) ChangeResource(id string, c Change) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(id)
	if err != nil {
		return err
	}

	renamed := make(map[string]bool, len(c.Headers))
	for hid, h := range c.Headers {
		if _, ok := res.Headers[hid]; !ok {
			return fmt.Errorf("header %s: %w", hid, ir.ErrNotFound)
		}
		other := headerByName(res, h.Name())
		_, otherChanges := c.Headers[other]
		if (other != "" && other != hid && !otherChanges) || renamed[h.Name()] {
			return fmt.Errorf("header %q: %w", h.Name(), ir.ErrDuplicateHeader)
		}
		renamed[h.Name()] = true
	}
	if c.URL != nil {
		res.URL = *c.URL
	}
	if c.Data != nil {
		res.Data = *c.Data
	}
	if c.ImportName != nil {
		res.ImportName = *c.ImportName
	}
	if c.ImportContent != nil {
		res.ImportContent = *c.ImportContent
	}
	for hid, h := range c.Headers {
		res.Headers[hid] = h
	}
	w.refreshInputs(res)
	return nil
}

// SetMethod switches between get and post. Changing the method discards the
// captured output since it no longer describes the call.
func (w *Workspace) SetMethod(id, method string) error {
	method, err := normalizeMethod(method)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(id)
	if err != nil {
		return err
	}
	if res.Method != method {
		res.Method = method
		clearOutput(res)
	}
	return nil
}

// SetImportType sets the import file kind; empty disables importing.
func (w *Workspace) SetImportType(id, importType string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(id)
	if err != nil {
		return err
	}
	res.ImportType = importType
	return nil
}

// DeleteResource removes a resource no request references.
func (w *Workspace) DeleteResource(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(id)
	if err != nil {
		return err
	}
	if res.InUse() {
		return fmt.Errorf("resource %q: %w", res.Name, ir.ErrResourceInUse)
	}
	delete(w.resources, id)
	w.resourceIDs = removeString(w.resourceIDs, id)
	return nil
}

// AddHeader appends a header and returns its id.
func (w *Workspace) AddHeader(resourceID, name, value string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return "", err
	}
	hid, err := addHeader(res, name, value)
	if err != nil {
		return "", err
	}
	w.refreshInputs(res)
	return hid, nil
}

// SetHeader replaces the name and value of an existing header.
func (w *Workspace) SetHeader(resourceID, headerID, name, value string) error {
	return w.ChangeResource(resourceID, Change{Headers: map[string]ir.Header{headerID: ir.NewHeader(name, value)}})
}

// DeleteHeader removes a header.
func (w *Workspace) DeleteHeader(resourceID, headerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return err
	}
	if _, ok := res.Headers[headerID]; !ok {
		return fmt.Errorf("header %s: %w", headerID, ir.ErrNotFound)
	}
	delete(res.Headers, headerID)
	res.HeaderIDs = removeString(res.HeaderIDs, headerID)
	w.refreshInputs(res)
	return nil
}

// FindHeader resolves ref as a header id first, then as a header name.
func (w *Workspace) FindHeader(resourceID, ref string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return "", err
	}
	if _, ok := res.Headers[ref]; ok {
		return ref, nil
	}
	if hid := headerByName(res, ref); hid != "" {
		return hid, nil
	}
	return "", fmt.Errorf("header %q: %w", ref, ir.ErrNotFound)
}

func addHeader(res *ir.Resource, name, value string) (string, error) {
	if headerByName(res, name) != "" {
		return "", fmt.Errorf("header %q: %w", name, ir.ErrDuplicateHeader)
	}
	hid := ir.NewID()
	if res.Headers == nil {
		res.Headers = make(map[string]ir.Header)
	}
	res.HeaderIDs = append(res.HeaderIDs, hid)
	res.Headers[hid] = ir.NewHeader(name, value)
	return hid, nil
}

func headerByName(res *ir.Resource, name string) string {
	for _, hid := range res.HeaderIDs {
		if res.Headers[hid].Name() == name {
			return hid
		}
	}
	return ""
}

// Inputs returns the input variables of a resource in scan order.
func (w *Workspace) Inputs(resourceID string) ([]variable.Variable, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return nil, err
	}
	out := make([]variable.Variable, 0, len(res.InputVariables))
	for _, id := range res.InputVariables {
		if v, ok := w.vars.Get(id); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// ClearOutput drops the captured response of a resource. Output bindings
// are kept.
func (w *Workspace) ClearOutput(resourceID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return err
	}
	clearOutput(res)
	return nil
}

func clearOutput(res *ir.Resource) {
	res.Output = ""
	res.OutputHeaders = nil
	res.OutputTemplate = ""
}

// refreshInputs recomputes the derived input list: every token of the
// templated fields, registered in the store, minus declared outputs.
func (w *Workspace) refreshInputs(res *ir.Resource) {
	fields := []string{res.URL, res.Data, res.ImportName, res.ImportContent}
	for _, h := range res.OrderedHeaders() {
		fields = append(fields, h.Name(), h.Value())
	}

	var inputs []string
	seen := make(map[string]bool)
	for _, field := range fields {
		for _, name := range template.Names(field) {
			id := w.vars.Touch(name)
			if seen[id] || res.IsOutput(id) {
				continue
			}
			seen[id] = true
			inputs = append(inputs, id)
		}
	}
	res.InputVariables = inputs
}

// DeleteVariable removes a variable that no resource or step refers to.
func (w *Workspace) DeleteVariable(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.vars.Name(id); !ok {
		return fmt.Errorf("variable %s: %w", id, ir.ErrNotFound)
	}
	if w.referenced(id) {
		return fmt.Errorf("variable %s: %w", id, ir.ErrVariableInUse)
	}
	return w.vars.Remove(id)
}

// RenameVariable renames a variable and rewrites every template token that
// used the old name.
func (w *Workspace) RenameVariable(id, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, ok := w.vars.Name(id)
	if !ok {
		return fmt.Errorf("variable %s: %w", id, ir.ErrNotFound)
	}
	if _, err := w.vars.Set(variable.Update{ID: id, Name: &name}); err != nil {
		return err
	}
	if old == name {
		return nil
	}

	rename := renameContext{from: old, to: name}
	rewrite := func(s string) string {
		out, _ := template.Contextualize(s, []template.Context{rename}, template.Options{})
		return out
	}
	for _, rid := range w.resourceIDs {
		res := w.resources[rid]
		res.URL = rewrite(res.URL)
		res.Data = rewrite(res.Data)
		res.ImportName = rewrite(res.ImportName)
		res.ImportContent = rewrite(res.ImportContent)
		for hid, h := range res.Headers {
			res.Headers[hid] = ir.NewHeader(rewrite(h.Name()), rewrite(h.Value()))
		}
	}
	for _, qid := range w.requestIDs {
		for _, step := range w.requests[qid].Steps {
			if step.MetadataSource == old {
				step.MetadataSource = name
			}
		}
	}
	return nil
}

// renameContext maps every token to itself except from, which becomes to.
type renameContext struct {
	from, to string
}

func (c renameContext) Lookup(key string) (string, bool) {
	if key == c.from {
		return template.Wrap(c.to), true
	}
	return template.Wrap(key), true
}

func (w *Workspace) variableInUse(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.referenced(id)
}

// referenced requires w.mu.
func (w *Workspace) referenced(id string) bool {
	for _, res := range w.resources {
		if res.IsOutput(id) {
			return true
		}
		for _, in := range res.InputVariables {
			if in == id {
				return true
			}
		}
	}
	name, ok := w.vars.Name(id)
	if !ok {
		return false
	}
	for _, req := range w.requests {
		for _, step := range req.Steps {
			if step.MetadataSource == name {
				return true
			}
		}
	}
	return false
}

func normalizeMethod(method string) (string, error) {
	m := strings.ToLower(method)
	switch m {
	case MethodGet, MethodPost:
		return m, nil
	}
	return "", fmt.Errorf("unsupported method %q", method)
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
