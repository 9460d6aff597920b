package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the settings document",
	Long: `Checks the settings document against its schema and verifies the
workspace invariants: variable indexes, step names and resource references.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Validating settings...")

	backend, err := openBackend()
	if err != nil {
		return err
	}

	fmt.Fprint(out, "Checking schema and invariants... ")
	ws, err := loadWorkspace(cmd.Context(), backend)
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := ws.Variables().Check(); err != nil {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintln(out, "OK")

	fmt.Fprintln(out, "\nSettings are valid!")
	return nil
}
