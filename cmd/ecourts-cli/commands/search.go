package commands

import (
	"os"
	"sort"

	"ecourts-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var searchState *string
var searchDistrict *string

func init() {
	searchState = searchCmd.Flags().String("state", "", "Optional state code hint.")
	searchDistrict = searchCmd.Flags().String("district", "", "Optional district code hint.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <cnr>",
	Short: "Looks a case up by its CNR number.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := newClient().SearchCaseByCNR(
			cmd.Context(), args[0], *searchState, *searchDistrict)
		if err != nil {
			serviceutil.Fatal("search failed", err)
		}
		if !result.Found {
			cmd.Println("no case found")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Listed today", result.ListedToday})
		t.AppendRow(table.Row{"Listed tomorrow", result.ListedTomorrow})
		if result.NextHearingDate != "" {
			t.AppendRow(table.Row{"Next hearing", result.NextHearingDate})
		}
		if result.SerialNumber != "" {
			t.AppendRow(table.Row{"Serial number", result.SerialNumber})
		}
		if result.CourtName != "" {
			t.AppendRow(table.Row{"Court", result.CourtName})
		}
		if result.CaseStatus != "" {
			t.AppendRow(table.Row{"Status", result.CaseStatus})
		}

		labels := make([]string, 0, len(result.Details))
		for label := range result.Details {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			t.AppendRow(table.Row{label, result.Details[label]})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
