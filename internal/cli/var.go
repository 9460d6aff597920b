package cli

import (
	"fmt"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/variable"
	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var varCmd = &cobra.Command{
	Use:   "var",
	Short: "Manage variables",
	Long:  `Commands for listing and editing the named variables resources refer to as {{name}}.`,
}

var varListCmd = &cobra.Command{
	Use:   "list",
	Short: "List variables",
	Args:  cobra.NoArgs,
	RunE:  runVarList,
}

var varSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Create a variable or change its value",
	Args:  cobra.ExactArgs(2),
	RunE:  runVarSet,
}

var varRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a variable and every {{reference}} to it",
	Args:  cobra.ExactArgs(2),
	RunE:  runVarRename,
}

var varRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a variable that no resource or step uses",
	Args:  cobra.ExactArgs(1),
	RunE:  runVarRm,
}

func init() {
	varCmd.AddCommand(varListCmd)
	varCmd.AddCommand(varSetCmd)
	varCmd.AddCommand(varRenameCmd)
	varCmd.AddCommand(varRmCmd)
}

func variableID(ws *workspace.Workspace, name string) (string, error) {
	id, ok := ws.Variables().IDOf(name)
	if !ok {
		return "", fmt.Errorf("variable %q: %w", name, ir.ErrNotFound)
	}
	return id, nil
}

func runVarList(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		vars := ws.Variables().All()
		out := cmd.OutOrStdout()
		if len(vars) == 0 {
			fmt.Fprintln(out, "No variables.")
			return nil
		}
		printVariables(out, vars)
		fmt.Fprintf(out, "\nTotal: %d variable(s)\n", len(vars))
		return nil
	})
}

func runVarSet(cmd *cobra.Command, args []string) error {
	name, value := args[0], args[1]
	return update(cmd, func(ws *workspace.Workspace) error {
		if _, err := ws.Variables().Set(variable.Update{Name: &name, Value: &value}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", name)
		return nil
	})
}

func runVarRename(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		id, err := variableID(ws, args[0])
		if err != nil {
			return err
		}
		if err := ws.RenameVariable(id, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
		return nil
	})
}

func runVarRm(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		id, err := variableID(ws, args[0])
		if err != nil {
			return err
		}
		if err := ws.DeleteVariable(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	})
}
