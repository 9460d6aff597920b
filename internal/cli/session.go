package cli

import (
	"context"
	"fmt"

	"github.com/postnome/postnome/internal/state"
	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

func openBackend() (state.Backend, error) {
	return state.NewBackend(&cfg.Backend, cfg.Settings.Path, cfg.Settings.Format)
}

// loadWorkspace reads the settings document and rebuilds the workspace from it.
func loadWorkspace(ctx context.Context, backend state.Backend) (*workspace.Workspace, error) {
	doc, err := backend.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	ws, err := workspace.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return ws, nil
}

// view runs fn against a read-only workspace.
func view(cmd *cobra.Command, fn func(ws *workspace.Workspace) error) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	ws, err := loadWorkspace(cmd.Context(), backend)
	if err != nil {
		return err
	}
	return fn(ws)
}

// update runs fn under the settings lock and saves the workspace when fn
// succeeds.
func update(cmd *cobra.Command, fn func(ws *workspace.Workspace) error) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	ctx := cmd.Context()
	ws, err := loadWorkspace(ctx, backend)
	if err != nil {
		return err
	}
	if err := fn(ws); err != nil {
		return err
	}
	if err := backend.Write(ctx, ws.Document()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
