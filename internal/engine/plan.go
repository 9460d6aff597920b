package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/logging"
)

// CreatePlan describes where every input of every step will come from when
// the request runs: an earlier step, a request field, or the store.
func (e *Engine) CreatePlan(requestID string) (*ir.Plan, error) {
	req, ok := e.ws.Request(requestID)
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, ir.ErrNotFound)
	}
	logging.Debug("creating plan", "request", req.Name, "steps", len(req.Steps))

	plan := &ir.Plan{
		RequestID:   req.ID,
		RequestName: req.Name,
		Steps:       []*ir.StepPlan{},
	}

	fields, err := e.ws.RequestFields(req.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		plan.Fields = append(plan.Fields, f.Name)
	}

	vars := e.ws.Variables()
	producedBy := make(map[string]string) // variable id -> step name
	for i, step := range req.Steps {
		res, ok := e.ws.Resource(step.ResourceID)
		if !ok {
			return nil, fmt.Errorf("step %q resource %s: %w", step.Name, step.ResourceID, ir.ErrNotFound)
		}
		sp := &ir.StepPlan{
			Index:        i,
			Name:         step.Name,
			ResourceID:   res.ID,
			ResourceName: res.Name,
			Method:       res.Method,
			Inputs:       []*ir.PlanInput{},
			Outputs:      []string{},
			ImportType:   res.ImportType,
		}

		for _, id := range res.InputVariables {
			name, _ := vars.Name(id)
			in := &ir.PlanInput{VariableID: id, Name: name}
			switch {
			case producedBy[id] != "":
				in.Source = ir.SourceStep
				in.FromStep = producedBy[id]
			case resultIndex(name, i) >= 0:
				in.Source = ir.SourceStep
				in.FromStep = req.Steps[resultIndex(name, i)].Name
			default:
				if v, _ := vars.Value(id); v != "" {
					in.Source = ir.SourceStored
				} else {
					in.Source = ir.SourceField
				}
			}
			sp.Inputs = append(sp.Inputs, in)
		}

		for _, id := range res.OutputVariableIDs {
			name, _ := vars.Name(id)
			sp.Outputs = append(sp.Outputs, name)
			producedBy[id] = step.Name
		}
		plan.Steps = append(plan.Steps, sp)
	}
	return plan, nil
}

// resultIndex returns the step index named by a "stepN" token when it refers
// to a step before current, or -1.
func resultIndex(name string, current int) int {
	if !strings.HasPrefix(name, "step") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "step"))
	if err != nil || n < 1 || n > current {
		return -1
	}
	return n - 1
}
