package ir

import "fmt"

// Step binds one resource inside a request.
type Step struct {
	Name           string `json:"name" yaml:"name"`
	ResourceID     string `json:"resource" yaml:"resource"`
	OverrideData   bool   `json:"override_data" yaml:"override_data"`
	MetadataSource string `json:"metadata_source" yaml:"metadata_source"` // variable name
}

// Request is an ordered pipeline of steps.
type Request struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Steps     []*Step         `json:"steps" yaml:"steps"`
	StepNames map[string]bool `json:"step_names" yaml:"step_names"`
}

// StepIndex returns the position of the named step, or -1.
func (r *Request) StepIndex(name string) int {
	for i, s := range r.Steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// OverrideField is the request field that replaces a step's body when the
// step has OverrideData set.
func OverrideField(requestName, stepName string) string {
	return fmt.Sprintf("%s %s data", requestName, stepName)
}
