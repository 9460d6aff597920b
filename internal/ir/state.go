package ir

// Document is the persisted settings document.
type Document struct {
	Variables      map[string][2]string `json:"variables" yaml:"variables"`             // id -> [name, value]
	VariableNames  map[string]string    `json:"variable_names" yaml:"variable_names"`   // name -> id
	VariableValues map[string][]string  `json:"variable_values" yaml:"variable_values"` // value -> ids, insertion ordered
	Resources      map[string]*Resource `json:"resources" yaml:"resources"`
	ResourceIDs    []string             `json:"resource_ids" yaml:"resource_ids"`
	Requests       map[string]*Request  `json:"requests" yaml:"requests"`
	RequestIDs     []string             `json:"request_ids" yaml:"request_ids"`
}

// NewDocument returns an empty document with every collection allocated.
func NewDocument() *Document {
	return &Document{
		Variables:      make(map[string][2]string),
		VariableNames:  make(map[string]string),
		VariableValues: make(map[string][]string),
		Resources:      make(map[string]*Resource),
		ResourceIDs:    []string{},
		Requests:       make(map[string]*Request),
		RequestIDs:     []string{},
	}
}
