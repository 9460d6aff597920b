package ir

import "strings"

// Header is a templated request header. It is persisted as a [name, value] pair.
type Header [2]string

func NewHeader(name, value string) Header { return Header{name, value} }

func (h Header) Name() string  { return h[0] }
func (h Header) Value() string { return h[1] }

// Resource is a reusable call template plus its declared input and output
// variable bindings.
type Resource struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	URL    string `json:"url" yaml:"url"`
	Method string `json:"method" yaml:"method"` // "get" or "post"
	Data   string `json:"data" yaml:"data"`

	ImportType    string `json:"import_type,omitempty" yaml:"import_type,omitempty"` // e.g. ".pdb"; empty means no import
	ImportName    string `json:"import_name,omitempty" yaml:"import_name,omitempty"`
	ImportContent string `json:"import_content,omitempty" yaml:"import_content,omitempty"`

	HeaderIDs []string          `json:"header_ids,omitempty" yaml:"header_ids,omitempty"`
	Headers   map[string]Header `json:"headers,omitempty" yaml:"headers,omitempty"`

	// InputVariables is derived from the templated fields; it is never edited directly.
	InputVariables []string `json:"input_variables,omitempty" yaml:"input_variables,omitempty"`

	OutputVariableIDs []string            `json:"output_variable_ids,omitempty" yaml:"output_variable_ids,omitempty"`
	OutputVariables   map[string][]string `json:"output_variables,omitempty" yaml:"output_variables,omitempty"` // variable id -> tree path

	Output         string            `json:"output,omitempty" yaml:"output,omitempty"`
	OutputHeaders  map[string]string `json:"output_headers,omitempty" yaml:"output_headers,omitempty"`
	OutputTemplate string            `json:"output_template,omitempty" yaml:"output_template,omitempty"`

	References map[string]int `json:"references,omitempty" yaml:"references,omitempty"` // request id -> step count
}

// OrderedHeaders returns the resource headers in insertion order.
func (r *Resource) OrderedHeaders() []Header {
	out := make([]Header, 0, len(r.HeaderIDs))
	for _, id := range r.HeaderIDs {
		if h, ok := r.Headers[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// InUse reports whether any request still holds a positive reference count.
func (r *Resource) InUse() bool {
	for _, n := range r.References {
		if n > 0 {
			return true
		}
	}
	return false
}

// OutputPath returns the tree path bound to the given output variable.
func (r *Resource) OutputPath(varID string) ([]string, bool) {
	p, ok := r.OutputVariables[varID]
	return p, ok
}

// IsOutput reports whether varID is declared as an output of the resource.
func (r *Resource) IsOutput(varID string) bool {
	_, ok := r.OutputVariables[varID]
	return ok
}

// ContentType returns the captured Content-Type header, falling back to text/plain.
func (r *Resource) ContentType() string {
	return ContentTypeOf(r.OutputHeaders)
}

// ContentTypeOf returns the Content-Type of a response header map, matched
// case-insensitively, or text/plain.
func ContentTypeOf(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return "text/plain"
}
