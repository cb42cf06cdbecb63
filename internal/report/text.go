package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
	"github.com/olekukonko/tablewriter"

	"auditgate/internal/aggregate"
	"auditgate/internal/config"
	"auditgate/internal/model"
)

// Console writes the human-readable summary of a run.
type Console struct {
	out *termenv.Output
}

// NewConsole writes to w. Colours are used only when w is a terminal and
// noColor is false.
func NewConsole(w io.Writer, noColor bool) *Console {
	var opts []termenv.OutputOption
	if noColor {
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	}
	return &Console{out: termenv.NewOutput(w, opts...)}
}

func (c *Console) severity(s model.Severity) string {
	label := strings.ToUpper(s.String())
	switch s {
	case model.SeverityCritical:
		return c.out.String(label).Foreground(termenv.ANSIBrightRed).Bold().String()
	case model.SeverityHigh:
		return c.out.String(label).Foreground(termenv.ANSIRed).String()
	case model.SeverityModerate:
		return c.out.String(label).Foreground(termenv.ANSIYellow).String()
	case model.SeverityLow:
		return c.out.String(label).Foreground(termenv.ANSIBlue).String()
	default:
		return label
	}
}

// Print writes the run summary: counts per bucket, the missing exclusions
// warning and one block per reportable advisory.
func (c *Console) Print(cfg config.RunConfig, res aggregate.Result, meta Meta) {
	w := c.out
	fmt.Fprintf(w, "Minimum severity level to report: %s\n", cfg.MinSeverity)
	if meta.TotalDependencies > 0 {
		fmt.Fprintf(w, "Dependencies audited: %d\n", meta.TotalDependencies)
	}
	if meta.Attempts > 1 {
		fmt.Fprintf(w, "Audit attempts: %d (network errors retried)\n", meta.Attempts)
	}

	n := res.ReportableCount()
	line := fmt.Sprintf("Found %d vulnerabilit%s", n, plural(n, "y", "ies"))
	if n == 0 {
		fmt.Fprintln(w, w.String(line).Foreground(termenv.ANSIGreen).String())
	} else {
		fmt.Fprintln(w, w.String(line).Bold().String())
	}
	fmt.Fprintln(w)

	devAction := "reported"
	if cfg.IgnoreDevDeps {
		devAction = "ignored"
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Reason", "Count", "Advisories"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.Append([]string{"below minimum severity (" + cfg.MinSeverity.String() + ")", strconv.Itoa(len(res.SeverityIgnored)), idList(res.SeverityIgnored)})
	table.Append([]string{"excluded", strconv.Itoa(len(res.Excluded)), idList(res.Excluded)})
	table.Append([]string{"dev dependencies (" + devAction + ")", strconv.Itoa(len(res.DevDependency)), idList(res.DevDependency)})
	table.Render()
	fmt.Fprintln(w)

	if len(res.MissingExclusions) > 0 {
		msg := fmt.Sprintf("WARNING: %d excluded advisor%s not found in the audit output: %s",
			len(res.MissingExclusions), plural(len(res.MissingExclusions), "y was", "ies were"), strings.Join(res.MissingExclusions, ", "))
		fmt.Fprintln(w, w.String(msg).Foreground(termenv.ANSIYellow).String())
		fmt.Fprintln(w, "Consider removing them from your exclusions.")
		fmt.Fprintln(w)
	}

	for _, a := range res.Reportable {
		fmt.Fprintln(w, "Vulnerability Found:")
		fmt.Fprintf(w, "  Severity: %s\n", c.severity(a.Severity))
		if a.Title != "" {
			fmt.Fprintf(w, "  Title: %s\n", a.Title)
		}
		fmt.Fprintf(w, "  Advisory: %s\n", strings.Join(a.Keys(), " / "))
		fmt.Fprintf(w, "  Modules: %s\n", strings.Join(a.Paths(), ", "))
		if a.PatchedVersions != "" {
			fmt.Fprintf(w, "  Patched in: %s\n", a.PatchedVersions)
		}
		fmt.Fprintf(w, "  URL: %s\n\n", a.URL)
	}

	if n > 0 {
		fmt.Fprintln(w, "Run `yarn audit` for more information")
	}
}

func idList(advs []model.Advisory) string {
	const limit = 10
	ids := make([]string, 0, limit)
	for i, a := range advs {
		if i == limit {
			ids = append(ids, fmt.Sprintf("... +%d", len(advs)-limit))
			break
		}
		ids = append(ids, a.ID)
	}
	return strings.Join(ids, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
