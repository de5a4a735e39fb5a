package commands

import (
	"log"
	"os"
	"time"

	"browsehtml/lib/browse"
	"browsehtml/lib/htmlutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	flagRender     bool
	flagScript     string
	flagScrolldown int
	flagSleep      time.Duration
	flagWait       time.Duration
	flagRetries    int
	flagRenderWait time.Duration
	flagLinks      bool
	flagAbsolute   bool
)

func init() {
	f := getCmd.Flags()
	f.BoolVar(&flagRender, "render", false, "Render the page in a headless browser before printing.")
	f.StringVar(&flagScript, "script", "", "JavaScript to evaluate in the rendered page.")
	f.IntVar(&flagScrolldown, "scrolldown", 0, "Number of page-down presses after navigation.")
	f.DurationVar(&flagSleep, "sleep", 0, "Pause after navigation (or between scrolls).")
	f.DurationVar(&flagWait, "wait", browse.DefaultWait, "Pause before navigation, 0 disables it.")
	f.IntVar(&flagRetries, "retries", 0, "Render attempt budget.")
	f.DurationVar(&flagRenderWait, "render-timeout", 0, "Per-attempt navigation deadline.")
	f.BoolVar(&flagLinks, "links", false, "Print the page's anchors instead of its text.")
	f.BoolVar(&flagAbsolute, "absolute", false, "With --links, resolve hrefs against the page URL.")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Fetches a page and prints its text, title or links.",
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

		if flagRender {
			result, err := res.Render(ctx, browse.RenderOptions{
				Script:     flagScript,
				Scrolldown: flagScrolldown,
				Sleep:      flagSleep,
				Wait:       &flagWait,
				Retries:    flagRetries,
				Timeout:    flagRenderWait,
			})
			if err != nil {
				log.Fatal(err)
			}
			if result != nil {
				log.Println("script result:", result)
			}
		}

		doc, err := res.HTML()
		if err != nil {
			log.Fatal(err)
		}

		if flagLinks {
			printLinks(cmd, doc)
			return
		}

		text, err := doc.Text()
		if err != nil {
			log.Fatal(err)
		}
		cmd.Println(text)
	},
}

func printLinks(cmd *cobra.Command, doc *browse.Document) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Href"})

	if flagAbsolute {
		links, err := doc.AbsoluteLinks()
		if err != nil {
			log.Fatal(err)
		}
		for _, link := range links {
			t.AppendRow(table.Row{"", link})
		}
	} else {
		sel, err := doc.Find("a[href]")
		if err != nil {
			log.Fatal(err)
		}
		for _, anchor := range htmlutil.GetAnchors(cmd.Context(), sel) {
			t.AppendRow(table.Row{anchor.Name, anchor.Href})
		}
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
