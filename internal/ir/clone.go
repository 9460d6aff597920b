package ir

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.HeaderIDs = cloneStrings(r.HeaderIDs)
	if r.Headers != nil {
		c.Headers = make(map[string]Header, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	c.InputVariables = cloneStrings(r.InputVariables)
	c.OutputVariableIDs = cloneStrings(r.OutputVariableIDs)
	if r.OutputVariables != nil {
		c.OutputVariables = make(map[string][]string, len(r.OutputVariables))
		for k, v := range r.OutputVariables {
			c.OutputVariables[k] = cloneStrings(v)
		}
	}
	c.OutputHeaders = cloneStringMap(r.OutputHeaders)
	if r.References != nil {
		c.References = make(map[string]int, len(r.References))
		for k, v := range r.References {
			c.References[k] = v
		}
	}
	return &c
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Steps = make([]*Step, len(r.Steps))
	for i, s := range r.Steps {
		step := *s
		c.Steps[i] = &step
	}
	c.StepNames = make(map[string]bool, len(r.StepNames))
	for k, v := range r.StepNames {
		c.StepNames[k] = v
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
