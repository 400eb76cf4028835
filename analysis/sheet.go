package analysis

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultSheetRemedies is how many ranked remedies a sheet lists
const DefaultSheetRemedies = 20

type SheetOptions struct {
	Title     string
	Limit     int
	Generated time.Time
}

func (o SheetOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultSheetRemedies
	}
	return o.Limit
}

// WriteSheet writes the printable repertory sheet as plain text: the selected
// rubrics with their importance, then the top ranked remedies.
func WriteSheet(w io.Writer, c *Case, opts SheetOptions) error {
	rubrics := c.Rubrics()
	ranking := c.Ranking()

	var b bytes.Buffer
	title := opts.Title
	if title == "" {
		title = "Repertory sheet"
	}
	b.WriteString(title + "\n")
	if !opts.Generated.IsZero() {
		fmt.Fprintf(&b, "Generated %s\n", opts.Generated.Format("2006-01-02 15:04"))
	}

	fmt.Fprintf(&b, "\nSelected rubrics (%d)\n", len(rubrics))
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for i, sr := range rubrics {
		fmt.Fprintf(tw, "%d.\t%s\t%s\timportance %d\n", i+1, sr.Rubric.Repertory, sr.Rubric.FullPath, sr.Importance)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	top := ranking.Top(opts.limit())
	fmt.Fprintf(&b, "\nRemedies (top %d of %d)\n", len(top), len(ranking.Remedies))
	tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRemedy\tName\tScore\tCoverage\tRubrics")
	for i, rs := range top {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d%%\t%d\n", i+1, rs.Abbrev, rs.Name, rs.TotalScore, rs.Coverage, rs.Occurrences)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warn := range ranking.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", warn.Message)
	}

	_, err := w.Write(b.Bytes())
	return err
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderSheetHTML renders the same sheet as HTML for printing
func RenderSheetHTML(w io.Writer, c *Case, opts SheetOptions) error {
	var md bytes.Buffer
	writeSheetMarkdown(&md, c, opts)

	if err := markdown.Convert(md.Bytes(), w); err != nil {
		return fmt.Errorf("rendering sheet: %w", err)
	}
	return nil
}

func writeSheetMarkdown(b *bytes.Buffer, c *Case, opts SheetOptions) {
	rubrics := c.Rubrics()
	ranking := c.Ranking()

	title := opts.Title
	if title == "" {
		title = "Repertory sheet"
	}
	fmt.Fprintf(b, "# %s\n\n", escapeMarkdown(title))
	if !opts.Generated.IsZero() {
		fmt.Fprintf(b, "_Generated %s_\n\n", opts.Generated.Format("2006-01-02 15:04"))
	}

	fmt.Fprintf(b, "## Selected rubrics (%d)\n\n", len(rubrics))
	for _, sr := range rubrics {
		fmt.Fprintf(b, "1. %s (%s), importance %d\n",
			escapeMarkdown(sr.Rubric.FullPath), escapeMarkdown(sr.Rubric.Repertory), sr.Importance)
	}
	b.WriteString("\n")

	top := ranking.Top(opts.limit())
	fmt.Fprintf(b, "## Remedies (top %d of %d)\n\n", len(top), len(ranking.Remedies))
	if len(top) == 0 {
		b.WriteString("No remedies.\n")
		return
	}

	b.WriteString("| # | Remedy | Name | Score | Coverage | Rubrics |\n")
	b.WriteString("|---|---|---|---:|---:|---:|\n")
	for i, rs := range top {
		fmt.Fprintf(b, "| %d | %s | %s | %d | %d%% | %d |\n",
			i+1, escapeMarkdown(rs.Abbrev), escapeMarkdown(rs.Name), rs.TotalScore, rs.Coverage, rs.Occurrences)
	}

	if len(ranking.Warnings) > 0 {
		b.WriteString("\n")
		for _, warn := range ranking.Warnings {
			fmt.Fprintf(b, "- warning: %s\n", escapeMarkdown(warn.Message))
		}
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
