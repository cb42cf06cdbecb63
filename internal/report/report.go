package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"auditgate/internal/aggregate"
	"auditgate/internal/config"
	"auditgate/internal/model"
)

// Meta describes the run a report belongs to.
type Meta struct {
	RunID             string   `json:"run_id"`
	Directory         string   `json:"directory"`
	Timestamp         string   `json:"timestamp"`
	YarnVersion       string   `json:"yarn_version,omitempty"`
	MinSeverity       string   `json:"min_severity"`
	Exclusions        []string `json:"exclusions"`
	IgnoreDevDeps     bool     `json:"ignore_dev_deps"`
	Attempts          int      `json:"attempts"`
	TotalDependencies int      `json:"total_dependencies,omitempty"`
}

// Counts are the bucket sizes of a run.
type Counts struct {
	Reportable      int `json:"reportable"`
	SeverityIgnored int `json:"severity_ignored"`
	Excluded        int `json:"excluded"`
	DevDependency   int `json:"dev_dependency"`
	Total           int `json:"total"`
}

type Report struct {
	Meta              Meta             `json:"meta"`
	Counts            Counts           `json:"counts"`
	MissingExclusions []string         `json:"missing_exclusions"`
	Reportable        []model.Advisory `json:"reportable"`
	SeverityIgnored   []string         `json:"severity_ignored"`
	Excluded          []string         `json:"excluded"`
	DevDependency     []string         `json:"dev_dependency"`
}

// New builds the report document for a finished aggregation.
func New(meta Meta, res aggregate.Result) Report {
	return Report{
		Meta: meta,
		Counts: Counts{
			Reportable:      res.ReportableCount(),
			SeverityIgnored: len(res.SeverityIgnored),
			Excluded:        len(res.Excluded),
			DevDependency:   len(res.DevDependency),
			Total:           len(res.All),
		},
		MissingExclusions: nonNil(res.MissingExclusions),
		Reportable:        nonNilAdvisories(res.Reportable),
		SeverityIgnored:   advisoryIDs(res.SeverityIgnored),
		Excluded:          advisoryIDs(res.Excluded),
		DevDependency:     advisoryIDs(res.DevDependency),
	}
}

// NewMeta fills the configuration-derived fields of Meta.
func NewMeta(cfg config.RunConfig) Meta {
	return Meta{
		Directory:     cfg.Dir,
		MinSeverity:   cfg.MinSeverity.String(),
		Exclusions:    nonNil(cfg.Exclusions()),
		IgnoreDevDeps: cfg.IgnoreDevDeps,
	}
}

// Generate writes report.json and report.md into outDir.
func Generate(fs afero.Fs, outDir string, rep Report) error {
	if err := fs.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	// 1. JSON Report
	jsonBytes, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, filepath.Join(outDir, "report.json"), jsonBytes, 0644); err != nil {
		return err
	}

	// 2. Markdown Report
	md := generateMarkdown(rep)
	if err := afero.WriteFile(fs, filepath.Join(outDir, "report.md"), []byte(md), 0644); err != nil {
		return err
	}

	return nil
}

func generateMarkdown(rep Report) string {
	var sb strings.Builder
	meta := rep.Meta

	sb.WriteString("# yarn audit report\n\n")
	fmt.Fprintf(&sb, "**Directory:** `%s`\n", meta.Directory)
	fmt.Fprintf(&sb, "**Timestamp:** %s\n", meta.Timestamp)
	fmt.Fprintf(&sb, "**Run:** %s\n", meta.RunID)
	if meta.YarnVersion != "" {
		fmt.Fprintf(&sb, "**Yarn:** %s\n", meta.YarnVersion)
	}
	fmt.Fprintf(&sb, "**Minimum severity:** %s\n\n", meta.MinSeverity)

	// Counts by severity
	counts := make(map[model.Severity]int)
	for _, a := range rep.Reportable {
		counts[a.Severity]++
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("| :--- | :--- |\n")
	for i := len(model.Severities) - 1; i >= 0; i-- {
		s := model.Severities[i]
		fmt.Fprintf(&sb, "| %s | %d |\n", strings.ToUpper(s.String()[:1])+s.String()[1:], counts[s])
	}
	sb.WriteString("\n")

	sb.WriteString("| Ignored | Count |\n")
	sb.WriteString("| :--- | :--- |\n")
	fmt.Fprintf(&sb, "| Below minimum severity | %d |\n", rep.Counts.SeverityIgnored)
	fmt.Fprintf(&sb, "| Excluded | %d |\n", rep.Counts.Excluded)
	devLabel := "Dev dependencies (reported)"
	if meta.IgnoreDevDeps {
		devLabel = "Dev dependencies (ignored)"
	}
	fmt.Fprintf(&sb, "| %s | %d |\n", devLabel, rep.Counts.DevDependency)
	sb.WriteString("\n")

	// Top advisories (Limit 30)
	sb.WriteString("## Vulnerabilities\n\n")
	if len(rep.Reportable) == 0 {
		sb.WriteString("_No vulnerabilities._\n")
	} else {
		sb.WriteString("| Sev | Advisory | Module | Patched | Title | Paths |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- |\n")

		limit := 30
		if len(rep.Reportable) < limit {
			limit = len(rep.Reportable)
		}

		for _, a := range rep.Reportable[:limit] {
			fmt.Fprintf(&sb, "| %s | [%s](%s) | %s | %s | %s | %s |\n",
				a.Severity, mdCell(a.ID), mdCell(a.URL), mdCell(a.ModuleName), mdCell(a.PatchedVersions),
				mdCell(a.Title), mdCell(strings.Join(a.Paths(), "<br>")))
		}
		if len(rep.Reportable) > 30 {
			fmt.Fprintf(&sb, "\n*...and %d more vulnerabilities inside report.json*\n", len(rep.Reportable)-30)
		}
	}

	if len(rep.MissingExclusions) > 0 {
		fmt.Fprintf(&sb, "\n## ⚠️ Missing Exclusions (%d)\n\n", len(rep.MissingExclusions))
		fmt.Fprintf(&sb, "> [!WARNING]\n")
		fmt.Fprintf(&sb, "> The following excluded advisories were not reported by yarn audit and can probably be removed.\n\n")
		for _, id := range rep.MissingExclusions {
			fmt.Fprintf(&sb, "- %s\n", id)
		}
	}

	return sb.String()
}

var mdCellReplacer = strings.NewReplacer("|", "\\|", "\r\n", "<br>", "\n", "<br>", "\r", "")

// mdCell escapes text for a Markdown table cell.
func mdCell(s string) string {
	return mdCellReplacer.Replace(s)
}

func advisoryIDs(advs []model.Advisory) []string {
	ids := make([]string, 0, len(advs))
	for _, a := range advs {
		ids = append(ids, a.ID)
	}
	return ids
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilAdvisories(a []model.Advisory) []model.Advisory {
	if a == nil {
		return []model.Advisory{}
	}
	return a
}
