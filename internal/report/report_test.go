package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditgate/internal/aggregate"
	"auditgate/internal/config"
	"auditgate/internal/model"
)

func sampleResult() aggregate.Result {
	qs := model.Advisory{
		ID:               "1096366",
		GitHubAdvisoryID: "GHSA-hrpp-h998-j3pp",
		Severity:         model.SeverityCritical,
		URL:              "https://github.com/advisories/GHSA-hrpp-h998-j3pp",
		ModuleName:       "qs",
		Title:            "qs vulnerable to Prototype Pollution",
		PatchedVersions:  ">=6.5.3",
		Findings:         []model.Finding{{Paths: []string{"express>qs", "express>body-parser>qs"}}},
	}
	minimist := model.Advisory{ID: "1179", Severity: model.SeverityLow, URL: "https://npmjs.com/advisories/1179"}
	braces := model.Advisory{ID: "1084", Severity: model.SeverityHigh, URL: "u", Findings: []model.Finding{{Paths: []string{"jest>braces"}}}}

	var res aggregate.Result
	res.All = []model.Advisory{qs, braces, minimist}
	res.Reportable = []model.Advisory{qs}
	res.SeverityIgnored = []model.Advisory{minimist}
	res.Excluded = []model.Advisory{braces}
	res.DevDependency = []model.Advisory{braces}
	res.MissingExclusions = []string{"9"}
	return res
}

func TestConsolePrint(t *testing.T) {
	cfg := config.Default()
	cfg.MinSeverity = model.SeverityModerate

	var buf bytes.Buffer
	NewConsole(&buf, true).Print(cfg, sampleResult(), Meta{TotalDependencies: 312, Attempts: 3})
	out := buf.String()

	assert.Contains(t, out, "Minimum severity level to report: moderate")
	assert.Contains(t, out, "Dependencies audited: 312")
	assert.Contains(t, out, "Audit attempts: 3")
	assert.Contains(t, out, "Found 1 vulnerability")
	assert.Contains(t, out, "dev dependencies (reported)")
	assert.Contains(t, out, "1 excluded advisory was not found in the audit output: 9")
	assert.Contains(t, out, "Severity: CRITICAL")
	assert.Contains(t, out, "Modules: express>qs, express>body-parser>qs")
	assert.Contains(t, out, "URL: https://github.com/advisories/GHSA-hrpp-h998-j3pp")
	assert.Contains(t, out, "Run `yarn audit` for more information")
	assert.NotContains(t, out, "\x1b[", "no colour codes when disabled")
}

func TestConsolePrint_Clean(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, true).Print(config.Default(), aggregate.Result{}, Meta{})
	out := buf.String()

	assert.Contains(t, out, "Found 0 vulnerabilities")
	assert.NotContains(t, out, "Vulnerability Found")
	assert.NotContains(t, out, "WARNING")
}

func TestGenerate(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := config.Default().WithExclusions("1084", "9")
	meta := NewMeta(cfg)
	meta.RunID = "run-1"
	meta.Timestamp = "2026-10-15T10:00:00Z"

	require.NoError(t, Generate(fs, "/out", New(meta, sampleResult())))

	raw, err := afero.ReadFile(fs, filepath.Join("/out", "report.json"))
	require.NoError(t, err)
	var rep Report
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, 1, rep.Counts.Reportable)
	assert.Equal(t, 3, rep.Counts.Total)
	assert.Equal(t, []string{"1084"}, rep.Excluded)
	assert.Equal(t, []string{"9"}, rep.MissingExclusions)
	assert.Equal(t, []string{"9", "1084"}, rep.Meta.Exclusions)

	md, err := afero.ReadFile(fs, filepath.Join("/out", "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "| Critical | 1 |")
	assert.Contains(t, string(md), "[1096366](https://github.com/advisories/GHSA-hrpp-h998-j3pp)")
	assert.Contains(t, string(md), "Missing Exclusions (1)")
}

func TestGenerate_EscapesTableCells(t *testing.T) {
	var res aggregate.Result
	res.Reportable = []model.Advisory{{
		ID:              "1179",
		Severity:        model.SeverityHigh,
		URL:             "https://npmjs.com/advisories/1179",
		ModuleName:      "minimist",
		Title:           "Prototype Pollution | via constructor\nand __proto__",
		PatchedVersions: ">=1.2.6 || >=0.2.4 <1.0.0",
		Findings:        []model.Finding{{Paths: []string{"a|b>minimist"}}},
	}}
	res.All = res.Reportable

	fs := afero.NewMemMapFs()
	require.NoError(t, Generate(fs, "/out", New(NewMeta(config.Default()), res)))
	md, err := afero.ReadFile(fs, "/out/report.md")
	require.NoError(t, err)

	var row string
	for _, line := range strings.Split(string(md), "\n") {
		if strings.HasPrefix(line, "| high |") {
			row = line
		}
	}
	require.NotEmpty(t, row)
	assert.Contains(t, row, `>=1.2.6 \|\| >=0.2.4 <1.0.0`)
	assert.Contains(t, row, `Prototype Pollution \| via constructor<br>and __proto__`)
	assert.Contains(t, row, `a\|b>minimist`)
	assert.Equal(t, 8, strings.Count(row, "|")-strings.Count(row, `\|`), "seven columns")
}

func TestGenerate_Empty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, Generate(fs, "/out", New(NewMeta(config.Default()), aggregate.Result{})))

	raw, err := afero.ReadFile(fs, "/out/report.json")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"reportable": []`))

	md, err := afero.ReadFile(fs, "/out/report.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "_No vulnerabilities._")
}
