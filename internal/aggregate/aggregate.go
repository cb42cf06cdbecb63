package aggregate

import (
	"iter"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"

	"auditgate/internal/classify"
	"auditgate/internal/cmderr"
	"auditgate/internal/config"
	"auditgate/internal/manifest"
	"auditgate/internal/model"
)

// Buckets accumulates classified advisories for one run.
type Buckets struct {
	// All holds every decoded advisory regardless of classification.
	All             []model.Advisory
	Reportable      []model.Advisory
	DevDependency   []model.Advisory
	SeverityIgnored []model.Advisory
	Excluded        []model.Advisory
}

// Result is the outcome of aggregating one audit stream.
type Result struct {
	Buckets
	// MissingExclusions are configured exclusion ids no advisory matched.
	MissingExclusions []string
}

// ReportableCount is the number of advisories that fail the run.
func (r Result) ReportableCount() int {
	return len(r.Reportable)
}

// CheckExclusions returns a MissingExclusions error when exclusions were not
// found and the configuration asks to fail on that.
func (r Result) CheckExclusions(cfg config.RunConfig) error {
	if len(r.MissingExclusions) == 0 || !cfg.FailOnMissingExclusions {
		return nil
	}
	return cmderr.MissingExclusions(r.MissingExclusions)
}

// AggregateAdvisories consumes the advisory sequence once, classifying every
// advisory into its buckets. The first decode error aborts aggregation.
// An advisory id seen twice in one run is only counted the first time.
func AggregateAdvisories(advisories iter.Seq2[model.Advisory, error], cfg config.RunConfig, dev manifest.DevPredicate) (Result, error) {
	var res Result
	seenIDs := mapset.NewThreadUnsafeSet[string]()
	seenKeys := mapset.NewThreadUnsafeSet[string]()

	for adv, err := range advisories {
		if err != nil {
			return Result{}, err
		}
		if !seenIDs.Add(adv.ID) {
			log.Debug().Str("id", adv.ID).Msg("skipping duplicate advisory")
			continue
		}
		for _, k := range adv.Keys() {
			seenKeys.Add(config.NormalizeID(k))
		}

		c := classify.Classify(adv, cfg, dev)
		log.Debug().Str("id", adv.ID).Stringer("severity", adv.Severity).Interface("buckets", c.Buckets()).Msg("classified advisory")

		res.All = append(res.All, adv)
		if c.SeverityIgnored {
			res.SeverityIgnored = append(res.SeverityIgnored, adv)
		}
		if c.Excluded {
			res.Excluded = append(res.Excluded, adv)
		}
		if c.DevDependency {
			res.DevDependency = append(res.DevDependency, adv)
		}
		if c.Reportable {
			res.Reportable = append(res.Reportable, adv)
		}
	}

	for _, id := range cfg.Exclusions() {
		if !seenKeys.Contains(id) {
			res.MissingExclusions = append(res.MissingExclusions, id)
		}
	}

	for _, b := range [][]model.Advisory{res.All, res.Reportable, res.DevDependency, res.SeverityIgnored, res.Excluded} {
		SortAdvisories(b)
	}
	return res, nil
}

// SortAdvisories orders advisories by severity (critical first), then id.
func SortAdvisories(advs []model.Advisory) {
	sort.SliceStable(advs, func(i, j int) bool {
		ai, aj := advs[i], advs[j]

		// Severity DESC
		ri, rj := ai.Severity.Rank(), aj.Severity.Rank()
		if ri != rj {
			return ri > rj
		}

		// ID ASC
		return config.LessID(ai.ID, aj.ID)
	})
}
