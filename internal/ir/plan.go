package ir

// Input sources reported by a run plan.
const (
	SourceStep   = "step"   // produced by an earlier step's output binding
	SourceField  = "field"  // supplied as a request field when running
	SourceStored = "stored" // taken from the variable store
)

// Plan describes the data flow of a request before it is run.
type Plan struct {
	RequestID   string      `json:"request_id"`
	RequestName string      `json:"request_name"`
	Steps       []*StepPlan `json:"steps"`
	Fields      []string    `json:"fields"` // request field names, in step order
}

type StepPlan struct {
	Index        int          `json:"index"`
	Name         string       `json:"name"`
	ResourceID   string       `json:"resource_id"`
	ResourceName string       `json:"resource_name"`
	Method       string       `json:"method"`
	Inputs       []*PlanInput `json:"inputs"`
	Outputs      []string     `json:"outputs"` // variable names
	ImportType   string       `json:"import_type,omitempty"`
}

type PlanInput struct {
	VariableID string `json:"variable_id"`
	Name       string `json:"name"`
	Source     string `json:"source"`
	FromStep   string `json:"from_step,omitempty"`
}
