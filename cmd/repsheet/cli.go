package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/giygas/repertory-api/analysis"
	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/repertory/entities"
	"github.com/giygas/repertory-api/validation"
)

// searcherFactory builds the upstream bridge lazily, so commands that never
// touch the network do not need a valid configuration
type searcherFactory func() (interfaces.RepertorySearcher, error)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(newSearcher searcherFactory, out io.Writer) *cli.App {
	app := &cli.App{
		Name:   "repsheet",
		Usage:  "Search a repertory and print repertorisation sheets",
		Writer: out,
		Commands: []*cli.Command{
			searchCmd(newSearcher),
			sheetCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// searchCmd creates the search command.
func searchCmd(newSearcher searcherFactory) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Look up rubrics (supports * wildcards, \"exact phrases\" and -exclusions)",
		ArgsUsage: "<symptom...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repertory", Aliases: []string{"r"}, Value: "publicum", Usage: "Repertory abbreviation"},
			&cli.IntFlag{Name: "min-weight", Value: 1, Usage: "Minimum remedy weight (1-4)"},
			&cli.IntFlag{Name: "page", Usage: "Zero-based result page"},
			&cli.StringFlag{Name: "remedy", Usage: "Only rubrics containing this remedy"},
			&cli.BoolFlag{Name: "remedies", Usage: "Include weighted remedies"},
			&cli.BoolFlag{Name: "json", Usage: "Print the raw result as JSON"},
		},
		Action: func(c *cli.Context) error {
			symptom := strings.Join(c.Args().Slice(), " ")
			query, err := buildQuery(c, symptom)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			searcher, err := newSearcher()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctx, cancel := context.WithTimeout(c.Context, time.Minute)
			defer cancel()

			result, err := searcher.Search(ctx, query)
			if err != nil {
				return cli.Exit(fmt.Sprintf("search failed: %v", err), 1)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, result)
			}
			return writeRubrics(c.App.Writer, result)
		},
	}
}

func buildQuery(c *cli.Context, symptom string) (entities.SearchQuery, error) {
	v := validation.NewInputValidator()

	if err := v.ValidateInput(symptom); err != nil {
		return entities.SearchQuery{}, err
	}
	if err := v.ValidateRepertory(c.String("repertory")); err != nil {
		return entities.SearchQuery{}, err
	}
	minWeight, err := v.ValidateMinWeight(fmt.Sprint(c.Int("min-weight")))
	if err != nil {
		return entities.SearchQuery{}, err
	}
	page, err := v.ValidatePage(fmt.Sprint(c.Int("page")))
	if err != nil {
		return entities.SearchQuery{}, err
	}
	remedy, err := v.NormalizeRemedyFilter(c.String("remedy"))
	if err != nil {
		return entities.SearchQuery{}, err
	}

	return entities.SearchQuery{
		Symptom:         symptom,
		Repertory:       c.String("repertory"),
		Page:            page,
		MinWeight:       minWeight,
		RemedyFilter:    remedy,
		IncludeRemedies: c.Bool("remedies"),
	}, nil
}

func writeRubrics(w io.Writer, result *entities.SearchResult) error {
	if len(result.Results) == 0 {
		_, err := fmt.Fprintln(w, "No matching rubrics.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range result.Results {
		remedies := make([]string, 0, len(r.WeightedRemedies))
		for _, wr := range r.WeightedRemedies {
			remedies = append(remedies, fmt.Sprintf("%s(%d)", wr.Remedy.NameAbbrev, wr.Weight))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.FullPath, strings.Join(remedies, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	more := ""
	if result.HasMore {
		more = ", more available"
	}
	_, err := fmt.Fprintf(w, "\n%d of %d rubrics (page %d%s)\n", len(result.Results), result.TotalResults, result.Page, more)
	return err
}

// sheetCmd creates the sheet command.
func sheetCmd() *cli.Command {
	return &cli.Command{
		Name:      "sheet",
		Usage:     "Rank a saved case and print its repertorisation sheet",
		ArgsUsage: "<case.json|->",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text|html|json"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: analysis.DefaultSheetRemedies, Usage: "Remedies to list"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Sheet title"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one case file (use - for stdin)", 2)
			}

			caseData, err := readCaseFile(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			opts := analysis.SheetOptions{
				Title:     c.String("title"),
				Limit:     c.Int("limit"),
				Generated: time.Now(),
			}

			switch c.String("format") {
			case "text":
				return analysis.WriteSheet(c.App.Writer, caseData, opts)
			case "html":
				return analysis.RenderSheetHTML(c.App.Writer, caseData, opts)
			case "json":
				ranking := caseData.Ranking()
				ranking.Remedies = ranking.Top(opts.Limit)
				return outputJSON(c.App.Writer, ranking)
			default:
				return cli.Exit(fmt.Sprintf("unknown format %q: must be text, html or json", c.String("format")), 2)
			}
		},
	}
}

// readCaseFile decodes a case saved as {"rubrics":[...]}; "-" reads stdin
func readCaseFile(path string) (*analysis.Case, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening case file: %w", err)
		}
		defer f.Close()
		r = f
	}

	c := analysis.NewCase()
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("decoding case file: %w", err)
	}
	return c, nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
