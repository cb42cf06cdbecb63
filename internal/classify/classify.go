// Package classify decides which report buckets an advisory belongs to.
// Everything here is pure: the same advisory and configuration always give
// the same answer.
package classify

import (
	"auditgate/internal/config"
	"auditgate/internal/manifest"
	"auditgate/internal/model"
)

type Bucket string

const (
	BucketSeverityIgnored Bucket = "severity-ignored"
	BucketExcluded        Bucket = "excluded"
	BucketDevDependency   Bucket = "dev-dependency"
	BucketReportable      Bucket = "reportable"
)

// Result holds bucket membership for one advisory. Memberships overlap: a
// dev-dependency advisory may also be excluded or severity-ignored.
type Result struct {
	SeverityIgnored bool
	Excluded        bool
	DevDependency   bool
	Reportable      bool
}

// Buckets lists the buckets the advisory belongs to, in a fixed order.
func (r Result) Buckets() []Bucket {
	var b []Bucket
	if r.SeverityIgnored {
		b = append(b, BucketSeverityIgnored)
	}
	if r.Excluded {
		b = append(b, BucketExcluded)
	}
	if r.DevDependency {
		b = append(b, BucketDevDependency)
	}
	if r.Reportable {
		b = append(b, BucketReportable)
	}
	return b
}

// Classify applies the severity threshold, the exclusion set and the
// dev-dependency predicate to adv. A nil predicate means no manifest was
// found, and then no advisory is dev-only.
func Classify(adv model.Advisory, cfg config.RunConfig, dev manifest.DevPredicate) Result {
	devOnly := IsDevOnly(adv, dev)
	severityIgnored := adv.Severity.Below(cfg.MinSeverity)
	inExclusions := cfg.IsExcluded(adv.Keys()...)

	return Result{
		SeverityIgnored: severityIgnored,
		// severity filtering wins, so an advisory is never counted as both
		Excluded:      inExclusions && !severityIgnored,
		DevDependency: devOnly,
		Reportable:    !severityIgnored && !inExclusions && !(devOnly && cfg.IgnoreDevDeps),
	}
}

// IsDevOnly reports whether every dependency path of every finding is a dev
// path. An advisory without findings is vacuously dev-only.
func IsDevOnly(adv model.Advisory, dev manifest.DevPredicate) bool {
	if dev == nil {
		return false
	}
	for _, f := range adv.Findings {
		for _, p := range f.Paths {
			if !dev(model.ParseDependencyPath(p)) {
				return false
			}
		}
	}
	return true
}
