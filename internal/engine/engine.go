// Package engine runs requests: it substitutes each step's templates, hands
// the call to the transport, captures the response and forwards documents to
// the importer.
package engine

import (
	"context"

	"github.com/postnome/postnome/internal/importer"
	"github.com/postnome/postnome/internal/transport"
	"github.com/postnome/postnome/internal/workspace"
)

// DefaultMissingPlaceholder replaces tokens no context can resolve.
const DefaultMissingPlaceholder = "[missing]"

// Transport executes one substituted call.
type Transport interface {
	Do(ctx context.Context, call transport.Call) (*transport.Response, error)
}

// Importer receives documents produced by steps of resources with an import
// type.
type Importer interface {
	Import(ctx context.Context, item importer.Item) (string, error)
}

// Options tune a run.
type Options struct {
	// MissingPlaceholder is substituted for unresolved tokens.
	MissingPlaceholder string
	// LocalhostAlias, when set, replaces "localhost" in URLs.
	LocalhostAlias string
	// OverwriteOutput replaces the captured response of each resource.
	OverwriteOutput bool
}

// Engine orchestrates request runs against a workspace.
type Engine struct {
	ws        *workspace.Workspace
	transport Transport
	importer  Importer
	opts      Options
}

func NewEngine(ws *workspace.Workspace, t Transport, imp Importer, opts Options) *Engine {
	if opts.MissingPlaceholder == "" {
		opts.MissingPlaceholder = DefaultMissingPlaceholder
	}
	return &Engine{
		ws:        ws,
		transport: t,
		importer:  imp,
		opts:      opts,
	}
}
