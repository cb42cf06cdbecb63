// Package pipeline runs one complete audit: yarn audit with retries,
// streaming decode, classification, and the printed summary.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"auditgate/internal/aggregate"
	"auditgate/internal/config"
	"auditgate/internal/detect"
	depExec "auditgate/internal/exec"
	"auditgate/internal/manifest"
	"auditgate/internal/report"
	"auditgate/internal/scanners/yarn"
)

// Pipeline wires the audit stages together. FS holds the project, the
// temporary output and the report directory.
type Pipeline struct {
	FS     afero.Fs
	Runner depExec.Runner
	Out    io.Writer
	Now    func() time.Time
}

// New returns a pipeline that runs real processes on the OS filesystem.
func New(out io.Writer) *Pipeline {
	return &Pipeline{
		FS:     afero.NewOsFs(),
		Runner: depExec.CommandRunner{},
		Out:    out,
		Now:    time.Now,
	}
}

// Run audits the project described by cfg and returns the number of
// reportable advisories. Temporary files are removed on every return path.
func (p *Pipeline) Run(ctx context.Context, cfg config.RunConfig) (int, error) {
	exclusionsFile, _ := cfg.ExclusionsPath()
	project, err := detect.DetectProject(p.FS, cfg.Dir, exclusionsFile)
	if err != nil {
		return 0, errors.Wrap(err, "failed to inspect project directory")
	}
	if project.ExclusionsFile != "" {
		log.Debug().Str("file", project.ExclusionsFile).Msg("found exclusions file")
	}
	for _, w := range project.Warnings() {
		log.Warn().Msg(w)
	}

	m, err := manifest.Load(p.FS, cfg.Dir)
	if err != nil {
		return 0, err
	}
	dev := m.DevPredicate()
	if dev == nil {
		log.Debug().Msg("no manifest, skipping dev dependency classification")
	}

	meta := report.NewMeta(cfg)
	meta.RunID = uuid.NewString()
	meta.Timestamp = p.Now().Format(time.RFC3339)

	v, err := yarn.CheckVersion(ctx, p.Runner, cfg)
	if err != nil {
		return 0, err
	}
	if v != nil {
		meta.YarnVersion = v.String()
	}

	ws, err := yarn.NewWorkspace(p.FS)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			log.Warn().Err(err).Str("dir", ws.Dir()).Msg("failed to remove temporary directory")
		}
	}()

	scan, err := yarn.NewScanner(p.Runner, ws).ScanYarn(ctx, cfg)
	meta.Attempts = scan.Attempts
	if err != nil {
		return 0, err
	}
	defer scan.Artifact.Remove()

	r, err := scan.Artifact.Open()
	if err != nil {
		return 0, err
	}
	defer r.Close()

	stream := yarn.NewStream(r)
	res, err := aggregate.AggregateAdvisories(stream.Advisories(), cfg, dev)
	if err != nil {
		if cfg.Debug {
			log.Debug().Str("output", scan.Artifact.Text()).Msg("audit output")
		}
		return 0, err
	}
	if sum := stream.Summary(); sum != nil {
		meta.TotalDependencies = sum.TotalDependencies
	}

	report.NewConsole(p.Out, cfg.NoColor).Print(cfg, res, meta)

	if len(res.MissingExclusions) > 0 {
		log.Warn().Strs("ids", res.MissingExclusions).Msg("excluded advisories not found in audit output")
	}

	if cfg.OutDir != "" {
		if err := report.Generate(p.FS, cfg.OutDir, report.New(meta, res)); err != nil {
			return 0, errors.Wrap(err, "failed to generate report")
		}
		log.Info().Str("dir", cfg.OutDir).Msg("reports saved")
	}

	if err := res.CheckExclusions(cfg); err != nil {
		return res.ReportableCount(), err
	}
	return res.ReportableCount(), nil
}
