package cli

import (
	"fmt"

	"github.com/postnome/postnome/internal/state"
	"github.com/spf13/cobra"
)

var exportFormat string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the settings document",
	Long:  `Commands for inspecting the persisted settings document.`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the settings document",
	Args:  cobra.NoArgs,
	RunE:  runStateShow,
}

var stateExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the settings document",
	Args:  cobra.NoArgs,
	RunE:  runStateExport,
}

var stateSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the settings document",
	Args:  cobra.NoArgs,
	RunE:  runStateSchema,
}

func init() {
	stateExportCmd.Flags().StringVarP(&exportFormat, "format", "f", state.FormatJSON, "Output format (json or yaml)")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateExportCmd)
	stateCmd.AddCommand(stateSchemaCmd)
}

func runStateShow(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	ws, err := loadWorkspace(cmd.Context(), backend)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:   %s\n", backendName())
	if m, ok := backend.(*state.Manager); ok {
		fmt.Fprintf(out, "Settings:  %s (%s)\n", m.Path(), m.Format())
	}
	fmt.Fprintf(out, "Variables: %d\n", ws.Variables().Len())
	fmt.Fprintf(out, "Resources: %d\n", len(ws.Resources()))
	fmt.Fprintf(out, "Requests:  %d\n", len(ws.Requests()))

	captured := 0
	for _, res := range ws.Resources() {
		if res.Output != "" {
			captured++
		}
	}
	fmt.Fprintf(out, "Captured:  %d\n", captured)
	return nil
}

func backendName() string {
	if cfg.Backend.Type == "" {
		return "local"
	}
	return cfg.Backend.Type
}

func runStateExport(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	ws, err := loadWorkspace(cmd.Context(), backend)
	if err != nil {
		return err
	}
	data, err := state.Marshal(ws.Document(), exportFormat)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runStateSchema(cmd *cobra.Command, args []string) error {
	data, err := state.GenerateSchema()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
