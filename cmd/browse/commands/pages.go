package commands

import (
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	flagMaxPages int
	flagSymbols  []string
)

func init() {
	f := pagesCmd.Flags()
	f.IntVar(&flagMaxPages, "max", 10, "Stop after this many pages.")
	f.StringSliceVar(&flagSymbols, "symbol", nil, "Next-page link text to match instead of the built-in set.")
	rootCmd.AddCommand(pagesCmd)
}

var pagesCmd = &cobra.Command{
	Use:   "pages <url>",
	Short: "Follows next-page links from a starting URL and lists the chain.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		session, err := newSession()
		if err != nil {
			log.Fatal(err)
		}
		defer session.Close()

		res, err := session.Get(ctx, args[0])
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Status", "URL"})
		t.AppendRow(table.Row{1, res.StatusCode(), res.URL().String()})

		count := 1
		it := res.Pages(flagSymbols...)
		for count < flagMaxPages && it.Next(ctx) {
			count++
			page := it.Page()
			t.AppendRow(table.Row{count, page.StatusCode(), page.URL().String()})
		}
		if err := it.Err(); err != nil {
			log.Fatal(err)
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
