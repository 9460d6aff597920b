package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	captureHeaders   []string
	captureOverwrite bool
)

var outputCmd = &cobra.Command{
	Use:   "output",
	Short: "Manage resource outputs",
	Long: `Output bindings copy a value out of a resource's captured response into a
variable. Paths are object keys and list indices separated by spaces.`,
}

var outputBindCmd = &cobra.Command{
	Use:   "bind <resource> <variable> [path...]",
	Short: "Bind a response path to a variable",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runOutputBind,
}

var outputUnbindCmd = &cobra.Command{
	Use:   "unbind <resource> <variable>",
	Short: "Remove an output binding, keeping the variable",
	Args:  cobra.ExactArgs(2),
	RunE:  runOutputUnbind,
}

var outputShowCmd = &cobra.Command{
	Use:   "show <resource>",
	Short: "Show output bindings and the response template",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutputShow,
}

var outputCaptureCmd = &cobra.Command{
	Use:   "capture <resource> <file|->",
	Short: "Record a response body from a file or stdin",
	Args:  cobra.ExactArgs(2),
	RunE:  runOutputCapture,
}

var outputFetchCmd = &cobra.Command{
	Use:   "fetch <resource>",
	Short: "Call a resource with stored variables and capture the response",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutputFetch,
}

var outputClearCmd = &cobra.Command{
	Use:   "clear <resource>",
	Short: "Forget the captured response",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutputClear,
}

func init() {
	outputCaptureCmd.Flags().StringArrayVarP(&captureHeaders, "header", "H", nil, "Response header as 'Name: value' (repeatable)")
	outputCaptureCmd.Flags().BoolVar(&captureOverwrite, "overwrite", false, "Replace an earlier capture")

	outputCmd.AddCommand(outputBindCmd)
	outputCmd.AddCommand(outputUnbindCmd)
	outputCmd.AddCommand(outputShowCmd)
	outputCmd.AddCommand(outputCaptureCmd)
	outputCmd.AddCommand(outputFetchCmd)
	outputCmd.AddCommand(outputClearCmd)
}

func runOutputBind(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		if _, err := ws.SetOutput(res.ID, "", args[1], args[2:], nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Bound %s to %s [%s]\n", args[1], res.Name, strings.Join(args[2:], " "))
		return nil
	})
}

func runOutputUnbind(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		id, err := variableID(ws, args[1])
		if err != nil {
			return err
		}
		if err := ws.UnbindOutput(res.ID, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unbound %s from %s\n", args[1], res.Name)
		return nil
	})
}

func runOutputShow(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		outputs, err := ws.Outputs(res.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s outputs\n", res.Name)
		if len(outputs) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, o := range outputs {
			value := colorize(colorYellow) + "<unresolved>" + colorize(colorReset)
			if !o.Value.IsNull() {
				value = o.Value.Text()
			}
			fmt.Fprintf(out, "  %s [%s] = %s\n", o.Name, strings.Join(o.Path, " "), value)
		}

		if res.Output == "" {
			fmt.Fprintln(out, "\nNo response captured.")
			return nil
		}
		tmpl, err := ws.OutputTemplate(res.ID)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(tmpl, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render template: %w", err)
		}
		fmt.Fprintf(out, "\nTemplate:\n%s\n", data)
		return nil
	})
}

func runOutputCapture(cmd *cobra.Command, args []string) error {
	var (
		body []byte
		err  error
	)
	if args[1] == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	parsed, err := parseHeaders(captureHeaders)
	if err != nil {
		return err
	}
	headers := make(map[string]string, len(parsed)+1)
	for _, h := range parsed {
		headers[h.Name()] = h.Value()
	}
	if ct := captureContentType(args[1]); ct != "" && !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = ct
	}

	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		if err := ws.Capture(res.ID, string(body), headers, captureOverwrite); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Captured %d bytes for %s\n", len(body), res.Name)
		return nil
	})
}

func runOutputFetch(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		resp, err := newEngine(ws).Fetch(cmd.Context(), res.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %d (%d bytes captured)\n", res.Name, resp.Status, len(resp.Body))
		return nil
	})
}

func runOutputClear(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		if err := ws.ClearOutput(res.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared output of %s\n", res.Name)
		return nil
	})
}

// captureContentType guesses a response type from the body file's extension.
func captureContentType(path string) string {
	if path == "-" {
		return ""
	}
	return mime.TypeByExtension(filepath.Ext(path))
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
