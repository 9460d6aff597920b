package cli

import (
	"fmt"
	"strconv"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	stepName         string
	stepOverrideData bool
	stepMetadata     string
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Manage requests",
	Long:  `Commands for building requests: ordered pipelines of resource steps.`,
}

var requestAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a request",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRequestAdd,
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests",
	Args:  cobra.NoArgs,
	RunE:  runRequestList,
}

var requestShowCmd = &cobra.Command{
	Use:   "show <request>",
	Short: "Show the steps of a request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestShow,
}

var requestRenameCmd = &cobra.Command{
	Use:   "rename <request> <new-name>",
	Short: "Rename a request",
	Args:  cobra.ExactArgs(2),
	RunE:  runRequestRename,
}

var requestRmCmd = &cobra.Command{
	Use:   "rm <request>",
	Short: "Remove a request and release its resources",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestRm,
}

var requestFieldsCmd = &cobra.Command{
	Use:   "fields <request>",
	Short: "List the variables a run of the request reads",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestFields,
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Manage the steps of a request",
	Long:  `Steps are addressed by 1-based position or by name.`,
}

var stepAddCmd = &cobra.Command{
	Use:   "add <request> <resource>",
	Short: "Append a step running a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runStepAdd,
}

var stepRmCmd = &cobra.Command{
	Use:   "rm <request> <step>",
	Short: "Remove a step",
	Args:  cobra.ExactArgs(2),
	RunE:  runStepRm,
}

var stepMvCmd = &cobra.Command{
	Use:   "mv <request> <step> <position>",
	Short: "Move a step to a 1-based position",
	Args:  cobra.ExactArgs(3),
	RunE:  runStepMv,
}

var stepRenameCmd = &cobra.Command{
	Use:   "rename <request> <step> <new-name>",
	Short: "Rename a step",
	Args:  cobra.ExactArgs(3),
	RunE:  runStepRename,
}

var stepSetCmd = &cobra.Command{
	Use:   "set <request> <step>",
	Short: "Change the override and metadata settings of a step",
	Args:  cobra.ExactArgs(2),
	RunE:  runStepSet,
}

func init() {
	stepAddCmd.Flags().StringVar(&stepName, "name", "", "Step name (default \"Step N\")")
	stepAddCmd.Flags().BoolVar(&stepOverrideData, "override-data", false, "Take the body from the \"<request> <step> data\" field")
	stepAddCmd.Flags().StringVar(&stepMetadata, "metadata", "", "Variable whose value is passed to the importer as metadata")

	stepSetCmd.Flags().BoolVar(&stepOverrideData, "override-data", false, "Take the body from the \"<request> <step> data\" field")
	stepSetCmd.Flags().StringVar(&stepMetadata, "metadata", "", "Variable whose value is passed to the importer as metadata")

	stepCmd.AddCommand(stepAddCmd)
	stepCmd.AddCommand(stepRmCmd)
	stepCmd.AddCommand(stepMvCmd)
	stepCmd.AddCommand(stepRenameCmd)
	stepCmd.AddCommand(stepSetCmd)

	requestCmd.AddCommand(requestAddCmd)
	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestShowCmd)
	requestCmd.AddCommand(requestRenameCmd)
	requestCmd.AddCommand(requestRmCmd)
	requestCmd.AddCommand(requestFieldsCmd)
	requestCmd.AddCommand(stepCmd)
}

// stepIndex resolves a 1-based position or a step name.
func stepIndex(req *ir.Request, ref string) (int, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(req.Steps) {
		return n - 1, nil
	}
	if i := req.StepIndex(ref); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("step %q of %q: %w", ref, req.Name, ir.ErrNotFound)
}

func resourceNamer(ws *workspace.Workspace) func(string) string {
	return func(id string) string {
		if res, ok := ws.Resource(id); ok {
			return res.Name
		}
		return id
	}
}

func runRequestAdd(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.AddRequest(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created request %s (%s)\n", req.Name, req.ID)
		return nil
	})
}

func runRequestList(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		out := cmd.OutOrStdout()
		requests := ws.Requests()
		if len(requests) == 0 {
			fmt.Fprintln(out, "No requests.")
			return nil
		}
		for _, req := range requests {
			fmt.Fprintf(out, "  %s (%d step(s))\n", req.Name, len(req.Steps))
		}
		fmt.Fprintf(out, "\nTotal: %d request(s)\n", len(requests))
		return nil
	})
}

func runRequestShow(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		printRequest(cmd.OutOrStdout(), req, resourceNamer(ws))
		return nil
	})
}

func runRequestRename(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		if err := ws.RenameRequest(req.ID, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", req.Name, args[1])
		return nil
	})
}

func runRequestRm(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		if err := ws.DeleteRequest(req.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed request %s\n", req.Name)
		return nil
	})
}

func runRequestFields(cmd *cobra.Command, args []string) error {
	// Fields may create empty override variables, so the workspace is saved.
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		fields, err := ws.RequestFields(req.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s fields\n", req.Name)
		printVariables(out, fields)
		return nil
	})
}

func runStepAdd(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		res, err := ws.FindResource(args[1])
		if err != nil {
			return err
		}
		step, err := ws.AddStep(req.ID, stepName, res.ID, stepMetadata, stepOverrideData)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s -> %s to %s\n", step.Name, res.Name, req.Name)
		return nil
	})
}

func runStepRm(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		i, err := stepIndex(req, args[1])
		if err != nil {
			return err
		}
		if err := ws.DeleteStep(req.ID, i); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", req.Steps[i].Name, req.Name)
		return nil
	})
}

func runStepMv(cmd *cobra.Command, args []string) error {
	to, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("position must be a number: %w", err)
	}
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		from, err := stepIndex(req, args[1])
		if err != nil {
			return err
		}
		if err := ws.MoveStep(req.ID, from, to-1); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to position %d\n", req.Steps[from].Name, to)
		return nil
	})
}

func runStepRename(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		i, err := stepIndex(req, args[1])
		if err != nil {
			return err
		}
		if err := ws.RenameStep(req.ID, i, args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", req.Steps[i].Name, args[2])
		return nil
	})
}

func runStepSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	return update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		i, err := stepIndex(req, args[1])
		if err != nil {
			return err
		}
		c := workspace.StepChange{}
		if flags.Changed("override-data") {
			c.OverrideData = &stepOverrideData
		}
		if flags.Changed("metadata") {
			c.MetadataSource = &stepMetadata
		}
		if err := ws.UpdateStep(req.ID, i, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s of %s\n", req.Steps[i].Name, req.Name)
		return nil
	})
}
