package workspace

import (
	"errors"
	"fmt"

	"github.com/postnome/postnome/internal/decode"
	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/logging"
	"github.com/postnome/postnome/internal/template"
	"github.com/postnome/postnome/internal/tree"
	"github.com/postnome/postnome/internal/variable"
)

// Output is an output binding resolved against the captured response.
type Output struct {
	VariableID string
	Name       string
	Path       []string
	Value      tree.Value
}

// OutputAt resolves the index-th output binding of a resource, in binding
// order. It reports false when the index is out of range, nothing has been
// captured, or the path does not exist in the response.
func (w *Workspace) OutputAt(resourceID string, index int) (Output, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, ok := w.resources[resourceID]
	if !ok || index < 0 || index >= len(res.OutputVariableIDs) {
		return Output{}, false
	}
	return w.output(res, res.OutputVariableIDs[index])
}

// Output resolves the output binding of variableID.
func (w *Workspace) Output(resourceID, variableID string) (Output, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, ok := w.resources[resourceID]
	if !ok {
		return Output{}, false
	}
	return w.output(res, variableID)
}

func (w *Workspace) output(res *ir.Resource, varID string) (Output, bool) {
	path, ok := res.OutputPath(varID)
	if !ok || res.Output == "" {
		return Output{}, false
	}
	doc, err := decode.Decode(res.Output, res.ContentType())
	if err != nil {
		return Output{}, false
	}
	value, ok := doc.Walk(path)
	if !ok {
		return Output{}, false
	}
	name, _ := w.vars.Name(varID)
	return Output{
		VariableID: varID,
		Name:       name,
		Path:       append([]string(nil), path...),
		Value:      value,
	}, true
}

// Outputs lists the output bindings of a resource; Value is Null for
// bindings that do not resolve.
func (w *Workspace) Outputs(resourceID string) ([]Output, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return nil, err
	}
	out := make([]Output, 0, len(res.OutputVariableIDs))
	for _, id := range res.OutputVariableIDs {
		o, ok := w.output(res, id)
		if !ok {
			name, _ := w.vars.Name(id)
			o = Output{VariableID: id, Name: name, Path: append([]string(nil), res.OutputVariables[id]...)}
		}
		out = append(out, o)
	}
	return out, nil
}

// SetOutput binds path of the resource response to a variable. With an
// empty variableID the variable is looked up or created by name. A nil
// value leaves the stored value alone. The variable stops being an input of
// the resource.
func (w *Workspace) SetOutput(resourceID, variableID, name string, path []string, value *string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return "", err
	}

	u := variable.Update{ID: variableID, Value: value}
	if name != "" {
		u.Name = &name
	}
	id, err := w.vars.Set(u)
	if err != nil {
		return "", fmt.Errorf("bind output of %q: %w", res.Name, err)
	}

	if res.OutputVariables == nil {
		res.OutputVariables = make(map[string][]string)
	}
	if _, exists := res.OutputVariables[id]; !exists {
		res.OutputVariableIDs = append(res.OutputVariableIDs, id)
	}
	res.OutputVariables[id] = append([]string(nil), path...)
	w.refreshInputs(res)
	if res.Output != "" {
		res.OutputTemplate = w.outputTemplate(res)
	}
	return id, nil
}

// UnbindOutput removes the output binding of variableID; the variable itself
// is kept.
func (w *Workspace) UnbindOutput(resourceID, variableID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return err
	}
	if !res.IsOutput(variableID) {
		return fmt.Errorf("output %s of %q: %w", variableID, res.Name, ir.ErrNotFound)
	}
	delete(res.OutputVariables, variableID)
	res.OutputVariableIDs = removeString(res.OutputVariableIDs, variableID)
	w.refreshInputs(res)
	if res.Output != "" {
		res.OutputTemplate = w.outputTemplate(res)
	}
	return nil
}

// Capture records a response for the resource. The raw body, headers and
// decontextualized template are stored when nothing was captured yet or
// overwrite is set. Either way every output binding is read from raw and
// written to the variable store.
func (w *Workspace) Capture(resourceID, raw string, headers map[string]string, overwrite bool) error {
	_, err := w.CaptureResponse(resourceID, raw, headers, overwrite)
	return err
}

// CaptureResponse is Capture returning the output bindings that resolved in
// raw, in binding order.
func (w *Workspace) CaptureResponse(resourceID, raw string, headers map[string]string, overwrite bool) ([]Output, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return nil, err
	}

	if res.Output == "" || overwrite {
		res.Output = raw
		res.OutputHeaders = make(map[string]string, len(headers))
		for k, v := range headers {
			res.OutputHeaders[k] = v
		}
		res.OutputTemplate = w.outputTemplate(res)
	}

	contentType := ir.ContentTypeOf(headers)
	doc, err := decode.Decode(raw, contentType)
	if err != nil {
		if errors.Is(err, ir.ErrUnsupportedContentType) {
			logging.Warn("response not decoded", "resource", res.Name, "content_type", contentType, "error", err)
			return nil, nil
		}
		return nil, err
	}

	var outputs []Output
	for _, id := range res.OutputVariableIDs {
		path := res.OutputVariables[id]
		value, ok := doc.Walk(path)
		if !ok {
			logging.Debug("output path not in response", "resource", res.Name, "variable", id)
			continue
		}
		text := value.Text()
		if _, err := w.vars.Set(variable.Update{ID: id, Value: &text}); err != nil {
			return nil, fmt.Errorf("capture %q: %w", res.Name, err)
		}
		name, _ := w.vars.Name(id)
		outputs = append(outputs, Output{
			VariableID: id,
			Name:       name,
			Path:       append([]string(nil), path...),
			Value:      value,
		})
	}
	return outputs, nil
}

// outputTemplate decontextualizes the captured response: values equal to an
// input variable become that input's token, and keys at the end of an output
// path become the output's token.
func (w *Workspace) outputTemplate(res *ir.Resource) string {
	doc, err := decode.Decode(res.Output, res.ContentType())
	if err != nil {
		return ""
	}

	inputs := template.Index{}
	for _, id := range res.InputVariables {
		value, ok := w.vars.Value(id)
		if !ok {
			continue
		}
		if _, done := inputs[value]; done {
			continue
		}
		for _, candidate := range w.vars.ByValue(value) {
			if contains(res.InputVariables, candidate) {
				inputs[value] = append(inputs[value], candidate)
			}
		}
	}
	outputs := template.Index{}
	for _, id := range res.OutputVariableIDs {
		path := res.OutputVariables[id]
		if len(path) == 0 {
			continue
		}
		key := path[len(path)-1]
		outputs[key] = append(outputs[key], id)
	}

	doc = template.Decontextualize(doc, []template.Index{inputs}, template.ByValue)
	doc = template.Decontextualize(doc, []template.Index{outputs}, template.ByKey)
	text, err := decode.Encode(doc)
	if err != nil {
		return ""
	}
	return text
}

// OutputTemplate returns the stored template with variable ids replaced by
// their names.
func (w *Workspace) OutputTemplate(resourceID string) (tree.Value, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, err := w.resource(resourceID)
	if err != nil {
		return tree.Value{}, err
	}
	if res.OutputTemplate == "" {
		return tree.NewMap(), nil
	}
	v, err := tree.Parse([]byte(res.OutputTemplate))
	if err != nil {
		return tree.Value{}, fmt.Errorf("output template of %q: %w", res.Name, err)
	}

	names := idNames{vars: w.vars}
	rewrite := func(s string) string {
		out, _ := template.Contextualize(s, []template.Context{names}, template.Options{Left: "{{", Right: "}}"})
		return out
	}
	v = tree.RenameKeys(v, func(key string) (string, bool) { return rewrite(key), true })
	v = tree.ReplaceScalars(v, func(s tree.Value) (tree.Value, bool) {
		if s.Kind() != tree.String {
			return tree.Value{}, false
		}
		return tree.StringValue(rewrite(s.Str())), true
	})
	return v, nil
}

// idNames resolves variable ids to names, keeping unknown ids as they are.
type idNames struct {
	vars *variable.Store
}

func (c idNames) Lookup(key string) (string, bool) {
	if name, ok := c.vars.Name(key); ok {
		return name, true
	}
	return key, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
