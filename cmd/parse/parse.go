package parse

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/thyholm1234/DOF.not/internal/conf"
	"github.com/thyholm1234/DOF.not/internal/fetch"
	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/output"
	"github.com/thyholm1234/DOF.not/internal/species"
	"github.com/thyholm1234/DOF.not/internal/thread"
)

// Command creates the parse command, which prints the observations found
// in log files or standard input.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		format  string
		threads bool
	)

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Parse observation log lines",
		Long: `Parse region log files and print the observations they contain.

Reads standard input when no file is given or the file is "-".

Examples:
  dofnot parse logs/regions/su-fyn.log
  tail -n 50 su-kobenhavn.log | dofnot parse --threads -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			return run(cmd, settings, args, f, threads)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, yaml")
	cmd.Flags().BoolVar(&threads, "threads", false, "Group observations into threads")
	cmd.Flags().String("classes", "", "Species classification table, overrides classification.path")

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, files []string, format output.Format, threads bool) error {
	loc := settings.Location()
	parser := observation.NewParser(loc)

	if len(files) == 0 {
		files = []string{"-"}
	}
	var items []observation.Observation
	skipped := 0
	for _, name := range files {
		res, err := parseFile(parser, cmd.InOrStdin(), name)
		if err != nil {
			return err
		}
		items = append(items, res.Observations...)
		skipped += res.Skipped
	}
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d unparseable lines\n", skipped)
	}

	var table *species.Table
	if path := settings.Classification.Path; path != "" {
		t, err := species.LoadTableFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "classification table unavailable: %v\n", err)
		} else {
			table = t
		}
	}

	w := cmd.OutOrStdout()
	if threads {
		agg := thread.NewAggregator(table)
		agg.AddAll(fetch.Result{Items: items}.Chronological())
		list := agg.Threads()
		return output.Write(w, format, list, threadTable(list, loc))
	}
	return output.Write(w, format, items, observationTable(items, table, loc))
}

func parseFile(parser *observation.Parser, stdin io.Reader, name string) (observation.ParseResult, error) {
	if name == "-" {
		return parser.ParseLines(stdin)
	}
	f, err := os.Open(name) //nolint:gosec // user supplied path
	if err != nil {
		return observation.ParseResult{}, err
	}
	defer func() { _ = f.Close() }()
	return parser.ParseLines(f)
}

func observationTable(items []observation.Observation, table *species.Table, loc *time.Location) output.Table {
	tbl := output.Table{
		Headers: []string{"Time", "Region", "Category", "Count", "Species", "Locality", "Observer"},
		Right:   []int{3},
	}
	for i := range items {
		o := &items[i]
		tbl.Rows = append(tbl.Rows, []string{
			formatTime(o.Timestamp, loc),
			o.RegionKey(),
			string(table.Resolve(o.Species, o.LiteralCategory())),
			countText(o.CountText, o.Count),
			o.Species,
			o.Locality,
			o.Observer,
		})
	}
	return tbl
}

func threadTable(list []*thread.Thread, loc *time.Location) output.Table {
	tbl := output.Table{
		Headers: []string{"Last seen", "Status", "Species", "Locality", "Count", "Events", "Thread"},
		Right:   []int{4, 5},
	}
	for _, t := range list {
		tbl.Rows = append(tbl.Rows, []string{
			formatTime(t.DisplayTimestamp(), loc),
			string(t.Status),
			t.Species,
			t.Locality,
			countText(t.LastCountText, t.LastCount),
			strconv.Itoa(t.EventCount),
			t.ID,
		})
	}
	return tbl
}

func formatTime(ts *time.Time, loc *time.Location) string {
	if ts == nil {
		return "-"
	}
	return ts.In(loc).Format("2006-01-02 15:04")
}

func countText(text string, n *int) string {
	if text != "" {
		return text
	}
	if n != nil {
		return strconv.Itoa(*n)
	}
	return ""
}
