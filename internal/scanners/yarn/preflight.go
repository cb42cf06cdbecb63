package yarn

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"auditgate/internal/cmderr"
	"auditgate/internal/config"
	depExec "auditgate/internal/exec"
)

// SupportedVersions are the yarn releases that still ship `yarn audit`.
// yarn 2+ replaced it with `yarn npm audit`, which has a different output.
const SupportedVersions = "< 2.0.0-0"

// CheckVersion asks yarn for its version and rejects releases without
// `yarn audit`. An unreadable version is logged and tolerated.
func CheckVersion(ctx context.Context, runner depExec.Runner, cfg config.RunConfig) (*semver.Version, error) {
	var out strings.Builder
	res, err := runner.Run(ctx, cfg.Yarn, []string{"--version"}, cfg.Dir, &out)
	if res.ExitCode == depExec.ExitNotFound {
		return nil, cmderr.Tool(res.ExitCode, "", errors.Errorf("%s executable not found in PATH", cfg.Yarn))
	}
	if err != nil {
		log.Debug().Err(err).Str("output", out.String()).Msg("could not determine yarn version")
		return nil, nil
	}

	raw := strings.TrimSpace(out.String())
	if i := strings.LastIndexByte(raw, '\n'); i >= 0 {
		raw = strings.TrimSpace(raw[i+1:])
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		log.Debug().Str("version", raw).Msg("yarn printed an unparseable version")
		return nil, nil
	}

	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return v, cmderr.Tool(0, "", errors.Errorf("yarn %s does not provide `yarn audit`, a yarn 1.x (classic) release is required", v))
	}
	log.Debug().Str("version", v.String()).Msg("found yarn")
	return v, nil
}
