package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/ivtree/pkg/catalog"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	return tbl
}

func renderEntries(w io.Writer, entries []catalog.Entry) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Tree", "Handle", "Low", "High", "Label"})

	for _, e := range entries {
		tbl.AppendRow(table.Row{e.Tree, e.Handle, e.Low, e.High, e.Label})
	}

	tbl.AppendFooter(table.Row{"", "", "", "Total", humanize.Comma(int64(len(entries)))})
	tbl.Render()
}

func renderStats(w io.Writer, stats catalog.Stats) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Tree", "Intervals", "Height"})

	for _, ts := range stats.Trees {
		tbl.AppendRow(table.Row{ts.Name, humanize.Comma(int64(ts.Len)), ts.Height})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d shards", stats.Shards),
		humanize.Comma(int64(stats.Nodes)),
		"",
	})
	tbl.Render()
}

func printOK(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, format, args...)
}

func printFail(w io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprintf(w, format, args...)
}
