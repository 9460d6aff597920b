package cli

import (
	"fmt"
	"os"

	"github.com/postnome/postnome/internal/ir"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new postnome workspace",
	Long:  `Creates a default postnome.yaml and an empty settings file.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

const defaultConfig = `# postnome configuration
settings:
  path: postnome.json

log:
  level: info
  format: console

transport:
  timeout: 30s
  max_retries: 3
  # localhost_alias: host.docker.internal

run:
  missing_placeholder: "[missing]"
  overwrite_output: false

import:
  dir: imports
`

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	configPath := "postnome.yaml"
	if configFile != "" {
		configPath = configFile
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", configPath, err)
		}
		fmt.Fprintf(out, "Created %s\n", configPath)
	}

	backend, err := openBackend()
	if err != nil {
		return err
	}
	doc, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if len(doc.Variables) == 0 && len(doc.ResourceIDs) == 0 && len(doc.RequestIDs) == 0 {
		if err := backend.Write(cmd.Context(), ir.NewDocument()); err != nil {
			return fmt.Errorf("failed to create settings: %w", err)
		}
		fmt.Fprintf(out, "Initialized settings at %s\n", cfg.Settings.Path)
	}

	fmt.Fprintln(out, "\nPostnome initialized successfully!")
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Run 'postnome resource add <name> <url>' to describe a call")
	fmt.Fprintln(out, "  2. Run 'postnome request add' and 'postnome request step add' to chain calls")
	fmt.Fprintln(out, "  3. Run 'postnome run <request>' to execute it")
	return nil
}
