// Package importer hands fetched documents to their consumer according to
// the file kind configured on a resource.
package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Item is one document produced by a request step.
type Item struct {
	Name     string
	Type     string
	Content  string
	Metadata string
}

// Importer consumes documents of one kind and reports where they went.
type Importer interface {
	Import(ctx context.Context, item Item) (string, error)
}

// SupportedTypes are the file kinds a resource may declare.
var SupportedTypes = []string{".pdb", ".cif", ".sdf", ".mol", ".smi", ".pdf", ".nanome", ".json"}

// Discard is the pseudo type that accepts and drops every document.
const Discard = "discard"

// IsSupported reports whether fileType can be configured on a resource.
func IsSupported(fileType string) bool {
	if fileType == Discard {
		return true
	}
	for _, t := range SupportedTypes {
		if t == fileType {
			return true
		}
	}
	return false
}

// Registry manages the importers of each file kind.
type Registry struct {
	mu        sync.RWMutex
	dir       string
	importers map[string]Importer
}

// NewRegistry creates a registry whose file importers write into dir.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:       dir,
		importers: make(map[string]Importer),
	}
}

// Load initializes and registers the importer for fileType.
func (r *Registry) Load(fileType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.importers[fileType]; exists {
		return nil
	}
	if !IsSupported(fileType) {
		return fmt.Errorf("unknown import type: %s", fileType)
	}

	var imp Importer
	if fileType == Discard {
		imp = discard{}
	} else {
		imp = &FileImporter{Dir: r.dir}
	}
	r.importers[fileType] = imp
	return nil
}

// Register installs a custom importer for fileType.
func (r *Registry) Register(fileType string, imp Importer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importers[fileType] = imp
}

// Get returns a registered importer.
func (r *Registry) Get(fileType string) (Importer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	imp, ok := r.importers[fileType]
	if !ok {
		return nil, fmt.Errorf("importer not loaded: %s", fileType)
	}
	return imp, nil
}

// Loaded lists the file kinds with a registered importer.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.importers))
	for t := range r.importers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Import loads the importer for item.Type if needed and runs it.
func (r *Registry) Import(ctx context.Context, item Item) (string, error) {
	if err := r.Load(item.Type); err != nil {
		return "", err
	}
	imp, err := r.Get(item.Type)
	if err != nil {
		return "", err
	}
	return imp.Import(ctx, item)
}

type discard struct{}

func (discard) Import(context.Context, Item) (string, error) { return "", nil }
