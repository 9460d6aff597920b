package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/postnome/postnome/internal/engine"
	"github.com/postnome/postnome/internal/importer"
	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/transport"
	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Show where every step input of a request comes from",
	Long: `Shows the data flow of a request without calling anything.

Each input of each step is reported as one of:
  • step    produced by an earlier step
  • field   supplied with --set when running
  • stored  taken from the variable store`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func newEngine(ws *workspace.Workspace) *engine.Engine {
	return engine.NewEngine(
		ws,
		transport.New(cfg.TransportOptions()),
		importer.NewRegistry(cfg.Import.Dir),
		cfg.EngineOptions(),
	)
}

func runPlan(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}
		plan, err := newEngine(ws).CreatePlan(req.ID)
		if err != nil {
			return fmt.Errorf("plan generation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if planJSON {
			data, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		renderPlan(out, plan)
		return nil
	})
}

func renderPlan(w io.Writer, plan *ir.Plan) {
	fmt.Fprintf(w, "Request %q will run %d step(s):\n", plan.RequestName, len(plan.Steps))
	for _, sp := range plan.Steps {
		fmt.Fprintf(w, "\n  %d. %s -> %s %s\n", sp.Index+1, sp.Name, sp.Method, sp.ResourceName)
		for _, in := range sp.Inputs {
			color := colorYellow
			source := in.Source
			switch in.Source {
			case ir.SourceStep:
				color = colorCyan
				source = "from " + in.FromStep
			case ir.SourceStored:
				color = colorGreen
			}
			fmt.Fprintf(w, "%s       < %s (%s)%s\n", colorize(color), in.Name, source, colorize(colorReset))
		}
		for _, name := range sp.Outputs {
			fmt.Fprintf(w, "       > %s\n", name)
		}
		if sp.ImportType != "" {
			fmt.Fprintf(w, "       imports %s\n", sp.ImportType)
		}
	}

	if len(plan.Fields) > 0 {
		fmt.Fprintln(w, "\nFields:")
		for _, f := range plan.Fields {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
