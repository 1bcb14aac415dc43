package commands

import (
	"os"

	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statesCmd)
	rootCmd.AddCommand(districtsCmd)
	rootCmd.AddCommand(complexesCmd)
	rootCmd.AddCommand(courtsCmd)
}

func renderNodes(nodes []ecourts.HierarchyNode) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Code", "Name"})
	for _, node := range nodes {
		t.AppendRow(table.Row{node.Code, node.Name})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Lists the states known to the portal.",
	Run: func(cmd *cobra.Command, args []string) {
		nodes, err := newClient().States(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch states", err)
		}
		renderNodes(nodes)
	},
}

var districtsCmd = &cobra.Command{
	Use:   "districts <state_code>",
	Short: "Lists the districts of a state.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		nodes, err := newClient().Districts(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch districts", err)
		}
		renderNodes(nodes)
	},
}

var complexesCmd = &cobra.Command{
	Use:   "complexes <state_code> <district_code>",
	Short: "Lists the court complexes of a district.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		nodes, err := newClient().CourtComplexes(cmd.Context(), args[0], args[1])
		if err != nil {
			serviceutil.Fatal("failed to fetch court complexes", err)
		}
		renderNodes(nodes)
	},
}

var courtsCmd = &cobra.Command{
	Use:   "courts <state_code> <district_code> <complex_code>",
	Short: "Lists the courts of a court complex.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		nodes, err := newClient().Courts(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			serviceutil.Fatal("failed to fetch courts", err)
		}
		renderNodes(nodes)
	},
}
