/*
Package notify handles reporting of scraper runs via console output and email
notifications.
*/
package notify

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/shanehull/bottlescraper/internal/types"
)

// ReportRun prints a per-item summary of a run.
func ReportRun(w io.Writer, outcomes []types.ItemOutcome, report *types.Report, logPath string) {
	inStock := 0
	for _, o := range outcomes {
		if o.Kind != types.NoStock {
			inStock++
		}
	}

	fmt.Fprintln(w, "\n===========================================")
	if inStock == 0 {
		fmt.Fprintln(w, "No stock found for any catalog item.")
	} else {
		fmt.Fprintf(w, "✅ %d of %d ITEMS IN STOCK\n", inStock, len(outcomes))
	}
	fmt.Fprintln(w, "===========================================")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Code", "Product", "Result", "Stores", "Error"})
	for i, o := range outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		t.AppendRow(table.Row{i + 1, o.Entry.Code, o.Entry.Name, o.Kind.String(), o.Stores, errText})
	}
	t.Render()

	if report != nil {
		for _, m := range report.Maps {
			fmt.Fprintf(w, "Map for %s: %s (%d markers)\n", m.ProductName, m.URL, len(m.Markers))
		}
	}

	fmt.Fprintf(w, "Run complete. Log appended to %s.\n", logPath)
}
