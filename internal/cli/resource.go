package cli

import (
	"fmt"

	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	resourceMethod        string
	resourceData          string
	resourceHeaders       []string
	resourceImportType    string
	resourceImportName    string
	resourceImportContent string

	setName          string
	setURL           string
	setMethod        string
	setData          string
	setImportType    string
	setImportName    string
	setImportContent string
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage resources",
	Long:  `Commands for creating and editing templated HTTP resources.`,
}

var resourceAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Create a resource",
	Long: `Creates a resource. The URL, body, headers and import fields may refer to
variables as {{name}}; referenced variables are created on demand.`,
	Args: cobra.ExactArgs(2),
	RunE: runResourceAdd,
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	Args:  cobra.NoArgs,
	RunE:  runResourceList,
}

var resourceShowCmd = &cobra.Command{
	Use:   "show <resource>",
	Short: "Show a resource with its inputs",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourceShow,
}

var resourceSetCmd = &cobra.Command{
	Use:   "set <resource>",
	Short: "Change fields of a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourceSet,
}

var resourceRmCmd = &cobra.Command{
	Use:   "rm <resource>",
	Short: "Remove a resource no request uses",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourceRm,
}

func init() {
	resourceAddCmd.Flags().StringVarP(&resourceMethod, "method", "X", "get", "HTTP method (get or post)")
	resourceAddCmd.Flags().StringVarP(&resourceData, "data", "d", "", "Request body")
	resourceAddCmd.Flags().StringArrayVarP(&resourceHeaders, "header", "H", nil, "Header as 'Name: value' (repeatable)")
	resourceAddCmd.Flags().StringVar(&resourceImportType, "import-type", "", "Import the response as this file type, e.g. .pdb")
	resourceAddCmd.Flags().StringVar(&resourceImportName, "import-name", "", "Import name template")
	resourceAddCmd.Flags().StringVar(&resourceImportContent, "import-content", "", "Import content template")

	resourceSetCmd.Flags().StringVar(&setName, "name", "", "New name")
	resourceSetCmd.Flags().StringVar(&setURL, "url", "", "URL template")
	resourceSetCmd.Flags().StringVarP(&setMethod, "method", "X", "", "HTTP method (get or post); changing it clears the captured output")
	resourceSetCmd.Flags().StringVarP(&setData, "data", "d", "", "Request body")
	resourceSetCmd.Flags().StringVar(&setImportType, "import-type", "", "Import file type, empty to disable")
	resourceSetCmd.Flags().StringVar(&setImportName, "import-name", "", "Import name template")
	resourceSetCmd.Flags().StringVar(&setImportContent, "import-content", "", "Import content template")

	resourceCmd.AddCommand(resourceAddCmd)
	resourceCmd.AddCommand(resourceListCmd)
	resourceCmd.AddCommand(resourceShowCmd)
	resourceCmd.AddCommand(resourceSetCmd)
	resourceCmd.AddCommand(resourceRmCmd)
	resourceCmd.AddCommand(headerCmd)
	resourceCmd.AddCommand(outputCmd)
}

func runResourceAdd(cmd *cobra.Command, args []string) error {
	headers, err := parseHeaders(resourceHeaders)
	if err != nil {
		return err
	}
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.AddResource(args[0], args[1], resourceMethod, resourceImportType, headers, resourceData)
		if err != nil {
			return err
		}
		if resourceImportName != "" || resourceImportContent != "" {
			c := workspace.Change{}
			if resourceImportName != "" {
				c.ImportName = &resourceImportName
			}
			if resourceImportContent != "" {
				c.ImportContent = &resourceImportContent
			}
			if err := ws.ChangeResource(res.ID, c); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created resource %s (%s)\n", res.Name, res.ID)
		return nil
	})
}

func runResourceList(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		out := cmd.OutOrStdout()
		resources := ws.Resources()
		if len(resources) == 0 {
			fmt.Fprintln(out, "No resources.")
			return nil
		}
		for _, res := range resources {
			captured := ""
			if res.Output != "" {
				captured = colorize(colorGreen) + " (captured)" + colorize(colorReset)
			}
			fmt.Fprintf(out, "  %-4s %s %s%s\n", res.Method, res.Name, res.URL, captured)
		}
		fmt.Fprintf(out, "\nTotal: %d resource(s)\n", len(resources))
		return nil
	})
}

func runResourceShow(cmd *cobra.Command, args []string) error {
	return view(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		inputs, err := ws.Inputs(res.ID)
		if err != nil {
			return err
		}
		printResource(cmd.OutOrStdout(), res, inputs)
		return nil
	})
}

func runResourceSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}

		c := workspace.Change{}
		if flags.Changed("url") {
			c.URL = &setURL
		}
		if flags.Changed("data") {
			c.Data = &setData
		}
		if flags.Changed("import-name") {
			c.ImportName = &setImportName
		}
		if flags.Changed("import-content") {
			c.ImportContent = &setImportContent
		}
		if err := ws.ChangeResource(res.ID, c); err != nil {
			return err
		}
		if flags.Changed("method") {
			if err := ws.SetMethod(res.ID, setMethod); err != nil {
				return err
			}
		}
		if flags.Changed("import-type") {
			if err := ws.SetImportType(res.ID, setImportType); err != nil {
				return err
			}
		}
		if flags.Changed("name") {
			if err := ws.RenameResource(res.ID, setName); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated resource %s\n", res.ID)
		return nil
	})
}

func runResourceRm(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		if err := ws.DeleteResource(res.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed resource %s\n", res.Name)
		return nil
	})
}
