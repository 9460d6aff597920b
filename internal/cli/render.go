package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/variable"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// colorize returns code unless color output is disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

func printVariables(w io.Writer, vars []variable.Variable) {
	if len(vars) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	width := 0
	for _, v := range vars {
		width = max(width, len(v.Name))
	}
	for _, v := range vars {
		value := v.Value
		if value == "" {
			value = colorize(colorYellow) + "<unset>" + colorize(colorReset)
		}
		fmt.Fprintf(w, "  %-*s = %s\n", width, v.Name, value)
	}
}

func printResource(w io.Writer, res *ir.Resource, inputs []variable.Variable) {
	fmt.Fprintf(w, "# %s (%s)\n", res.Name, res.ID)
	fmt.Fprintf(w, "  method = %s\n", strings.ToUpper(res.Method))
	fmt.Fprintf(w, "  url    = %s\n", res.URL)
	if res.Data != "" {
		fmt.Fprintf(w, "  data   = %s\n", res.Data)
	}
	if res.ImportType != "" {
		fmt.Fprintf(w, "  import = %s name=%q content=%q\n", res.ImportType, res.ImportName, res.ImportContent)
	}

	if len(res.HeaderIDs) > 0 {
		fmt.Fprintln(w, "\n  Headers:")
		for _, id := range res.HeaderIDs {
			h := res.Headers[id]
			fmt.Fprintf(w, "    %s: %s\n", h.Name(), h.Value())
		}
	}

	fmt.Fprintln(w, "\n  Inputs:")
	printVariables(w, inputs)

	if len(res.References) > 0 {
		fmt.Fprintf(w, "\n  Used by %d request(s)\n", len(res.References))
	}
}

func printRequest(w io.Writer, req *ir.Request, resourceName func(id string) string) {
	fmt.Fprintf(w, "# %s (%s)\n", req.Name, req.ID)
	if len(req.Steps) == 0 {
		fmt.Fprintln(w, "  (no steps)")
		return
	}
	for i, step := range req.Steps {
		fmt.Fprintf(w, "  %d. %s -> %s", i+1, step.Name, resourceName(step.ResourceID))
		if step.OverrideData {
			fmt.Fprint(w, " [override data]")
		}
		if step.MetadataSource != "" {
			fmt.Fprintf(w, " [metadata: %s]", step.MetadataSource)
		}
		fmt.Fprintln(w)
	}
}

// parseAssignment splits "name=value".
func parseAssignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	return name, value, nil
}

// parseHeaders turns "Name: value" arguments into headers.
func parseHeaders(raw []string) ([]ir.Header, error) {
	var out []ir.Header
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected header as 'Name: value', got %q", h)
		}
		out = append(out, ir.NewHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}
	return out, nil
}
