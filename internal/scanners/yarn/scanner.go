package yarn

import (
	"context"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"auditgate/internal/cmderr"
	"auditgate/internal/config"
	depExec "auditgate/internal/exec"
)

// Args returns the yarn arguments for an audit with the given configuration.
// yarn pre-filters by --level; the classifier applies the threshold again.
func Args(cfg config.RunConfig) []string {
	args := []string{"audit", "--json", "--level", cfg.MinSeverity.String()}
	if cfg.IgnoreDevDeps {
		args = append(args, "--groups", "dependencies")
	}
	return args
}

// Attempt is the result of one yarn audit execution.
type Attempt struct {
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
	Artifact *Artifact
}

// Invoker runs yarn audit once, capturing its output into the workspace.
type Invoker struct {
	Runner    depExec.Runner
	Workspace *Workspace
}

// Invoke executes one attempt. The returned error is set only when the
// attempt could not run at all (no output file, yarn missing or not
// startable, timeout); in that case no artifact is left behind.
func (i *Invoker) Invoke(ctx context.Context, cfg config.RunConfig) (Attempt, error) {
	artifact, f, err := i.Workspace.create()
	if err != nil {
		return Attempt{}, err
	}

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	args := Args(cfg)
	log.Debug().Str("cmd", cfg.Yarn).Strs("args", args).Str("dir", cfg.Dir).Str("output", artifact.Path()).Msg("running audit")
	res, runErr := i.Runner.Run(runCtx, cfg.Yarn, args, cfg.Dir, f)

	// classification only starts once the output is closed for writing
	if err := f.Close(); err != nil {
		_ = artifact.Remove()
		return Attempt{}, errors.Wrap(err, "failed to close audit output")
	}

	switch res.ExitCode {
	case depExec.ExitNotFound:
		_ = artifact.Remove()
		return Attempt{}, cmderr.Tool(res.ExitCode, "", errors.Errorf("%s executable not found in PATH", cfg.Yarn))
	case depExec.ExitTimeout:
		text := artifact.Text()
		_ = artifact.Remove()
		return Attempt{}, cmderr.Tool(res.ExitCode, text, errors.Errorf("yarn audit timed out after %s", cfg.Timeout))
	}
	if runErr != nil && ctx.Err() != nil {
		_ = artifact.Remove()
		return Attempt{}, errors.Wrap(ctx.Err(), "yarn audit interrupted")
	}
	var startErr *depExec.StartError
	if errors.As(runErr, &startErr) {
		text := artifact.Text()
		_ = artifact.Remove()
		return Attempt{}, cmderr.Tool(res.ExitCode, text, errors.Wrap(runErr, "failed to start yarn audit"))
	}

	r, err := artifact.Open()
	if err != nil {
		_ = artifact.Remove()
		return Attempt{}, err
	}
	outcome, err := ClassifyOutcome(res.ExitCode, r, cfg.NetworkFailureSignature)
	r.Close()
	if err != nil {
		_ = artifact.Remove()
		return Attempt{}, errors.Wrap(err, "failed to inspect audit output")
	}

	log.Debug().Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Stringer("outcome", outcome).Msg("audit finished")
	return Attempt{
		Outcome:  outcome,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
		Artifact: artifact,
	}, nil
}

// Result is the outcome of a successful audit run.
type Result struct {
	Artifact *Artifact
	// Attempts counts executions, including those that hit a network error.
	Attempts int
}

// Scanner runs yarn audit until it succeeds, retrying network failures when
// the configuration allows it. Attempts never overlap.
type Scanner struct {
	Invoker *Invoker
}

func NewScanner(runner depExec.Runner, ws *Workspace) *Scanner {
	return &Scanner{Invoker: &Invoker{Runner: runner, Workspace: ws}}
}

// ScanYarn returns the artifact of the successful attempt. Tool errors are
// never retried; network errors are retried without limit after
// cfg.RetryDelay when cfg.RetryOnNetworkFailure is set.
func (s *Scanner) ScanYarn(ctx context.Context, cfg config.RunConfig) (Result, error) {
	var res Result

	r := retrier.New(retrier.ConstantBackoff(1, cfg.RetryDelay), networkClassifier{retry: cfg.RetryOnNetworkFailure}).
		WithInfiniteRetry()

	err := r.RunCtx(ctx, func(ctx context.Context) error {
		res.Attempts++
		attempt, err := s.Invoker.Invoke(ctx, cfg)
		if err != nil {
			return err
		}

		switch attempt.Outcome {
		case OutcomeSuccess:
			res.Artifact = attempt.Artifact
			return nil
		case OutcomeNetworkError:
			text := attempt.Artifact.Text()
			// the next attempt gets a fresh artifact
			if err := attempt.Artifact.Remove(); err != nil {
				log.Warn().Err(err).Msg("failed to remove audit output")
			}
			if cfg.RetryOnNetworkFailure {
				log.Warn().Int("attempt", res.Attempts).Dur("delay", cfg.RetryDelay).Msg("network error while running yarn audit, retrying")
			}
			return cmderr.Network(text)
		default:
			text := attempt.Artifact.Text()
			_ = attempt.Artifact.Remove()
			return cmderr.Tool(attempt.ExitCode, text, nil)
		}
	})
	if err != nil {
		return Result{Attempts: res.Attempts}, err
	}
	return res, nil
}

type networkClassifier struct {
	retry bool
}

func (c networkClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case c.retry && cmderr.Is(err, cmderr.KindNetwork):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}
