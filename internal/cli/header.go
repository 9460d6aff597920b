package cli

import (
	"fmt"

	"github.com/postnome/postnome/internal/workspace"
	"github.com/spf13/cobra"
)

var headerCmd = &cobra.Command{
	Use:   "header",
	Short: "Manage resource headers",
}

var headerAddCmd = &cobra.Command{
	Use:   "add <resource> <name> <value>",
	Short: "Add a header",
	Args:  cobra.ExactArgs(3),
	RunE:  runHeaderAdd,
}

var headerSetCmd = &cobra.Command{
	Use:   "set <resource> <header> <name> <value>",
	Short: "Replace a header's name and value",
	Args:  cobra.ExactArgs(4),
	RunE:  runHeaderSet,
}

var headerRmCmd = &cobra.Command{
	Use:   "rm <resource> <header>",
	Short: "Remove a header",
	Args:  cobra.ExactArgs(2),
	RunE:  runHeaderRm,
}

func init() {
	headerCmd.AddCommand(headerAddCmd)
	headerCmd.AddCommand(headerSetCmd)
	headerCmd.AddCommand(headerRmCmd)
}

func runHeaderAdd(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		if _, err := ws.AddHeader(res.ID, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added header %s to %s\n", args[1], res.Name)
		return nil
	})
}

func runHeaderSet(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		hid, err := ws.FindHeader(res.ID, args[1])
		if err != nil {
			return err
		}
		if err := ws.SetHeader(res.ID, hid, args[2], args[3]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated header %s of %s\n", args[2], res.Name)
		return nil
	})
}

func runHeaderRm(cmd *cobra.Command, args []string) error {
	return update(cmd, func(ws *workspace.Workspace) error {
		res, err := ws.FindResource(args[0])
		if err != nil {
			return err
		}
		hid, err := ws.FindHeader(res.ID, args[1])
		if err != nil {
			return err
		}
		if err := ws.DeleteHeader(res.ID, hid); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed header %s from %s\n", args[1], res.Name)
		return nil
	})
}
