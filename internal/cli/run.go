package cli

import (
	"fmt"
	"time"

	"github.com/postnome/postnome/internal/engine"
	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	runFields  []string
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run the steps of a request in order",
	Long: `Runs every step of a request. Tokens resolve against --set fields first,
then the results of earlier steps (step1, step2, ...), then stored variables.
Responses are captured and output bindings update the stored variables.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runFields, "set", "s", nil, "Request field as name=value (repeatable)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print each step's result")
}

func runRun(cmd *cobra.Command, args []string) error {
	fields := make(map[string]string, len(runFields))
	for _, f := range runFields {
		name, value, err := parseAssignment(f)
		if err != nil {
			return err
		}
		fields[name] = value
	}

	out := cmd.OutOrStdout()
	var runErr error
	// Captures made before a failing step are still saved.
	err := update(cmd, func(ws *workspace.Workspace) error {
		req, err := ws.FindRequest(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Running %s...\n", req.Name)
		result, err := newEngine(ws).RunWithCallback(cmd.Context(), req.ID, fields, func(ev engine.StepEvent) {
			switch ev.Status {
			case engine.StatusStarted:
				fmt.Fprintf(out, "  %d. %s: calling %s...\n", ev.Index+1, ev.Step, ev.Resource)
			case engine.StatusCompleted:
				fmt.Fprintf(out, "%s  %d. %s: %d after %s%s\n", colorize(colorGreen), ev.Index+1, ev.Step, ev.StatusCode, ev.Duration.Round(time.Millisecond), colorize(colorReset))
			case engine.StatusFailed:
				fmt.Fprintf(out, "%s  %d. %s: failed: %v%s\n", colorize(colorRed), ev.Index+1, ev.Step, ev.Error, colorize(colorReset))
			}
		})
		runErr = err
		if result == nil {
			return err
		}

		for _, sr := range result.Steps {
			if sr.ImportedTo != "" {
				fmt.Fprintf(out, "  %s imported to %s\n", sr.Name, sr.ImportedTo)
			}
			if runVerbose {
				fmt.Fprintf(out, "\n# %s\n%s\n", sr.Name, sr.Result)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	fmt.Fprintf(out, "\nRun complete.\n")
	return nil
}
