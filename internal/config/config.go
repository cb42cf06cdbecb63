package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"auditgate/internal/cmderr"
	"auditgate/internal/model"
)

// Viper keys. Flags of the same name are bound to them.
const (
	KeyMinSeverity             = "min-severity"
	KeyExclude                 = "exclude"
	KeyExclusionsFile          = "exclusions-file"
	KeyIgnoreDevDeps           = "ignore-dev-deps"
	KeyFailOnMissingExclusions = "fail-on-missing-exclusions"
	KeyRetryOnNetworkFailure   = "retry-on-network-failure"
	KeyDebug                   = "debug"
	KeyDir                     = "dir"
	KeyYarn                    = "yarn"
	KeyTimeout                 = "timeout"
	KeyRetryDelay              = "retry-delay"
	KeyNetworkSignature        = "network-failure-signature"
	KeyOut                     = "out"
	KeyNoColor                 = "no-color"
)

const (
	DefaultMinSeverity    = model.SeverityLow
	DefaultExclusionsFile = ".iyarc"
	DefaultYarn           = "yarn"
	DefaultRetryDelay     = time.Second
	// DefaultNetworkSignature is the text yarn prints when a registry request
	// fails. yarn does not document it, so it is configurable.
	DefaultNetworkSignature = "Error: Request failed"
)

var exclusionIDPattern = regexp.MustCompile(`(?i)^(\d+|GHSA(-[0-9a-z]{4}){3})$`)

// RunConfig is the effective configuration of one audit run. It is built
// once before the pipeline starts and is never mutated afterwards.
type RunConfig struct {
	MinSeverity             model.Severity
	IgnoreDevDeps           bool
	FailOnMissingExclusions bool
	RetryOnNetworkFailure   bool
	Debug                   bool

	Dir                     string
	ExclusionsFile          string // empty means DefaultExclusionsFile in Dir
	Yarn                    string
	Timeout                 time.Duration
	RetryDelay              time.Duration
	NetworkFailureSignature string
	OutDir                  string
	NoColor                 bool

	exclusions mapset.Set[string]
}

// Default returns the configuration used when no flag is given.
func Default() RunConfig {
	return RunConfig{
		MinSeverity:             DefaultMinSeverity,
		Dir:                     ".",
		Yarn:                    DefaultYarn,
		RetryDelay:              DefaultRetryDelay,
		NetworkFailureSignature: DefaultNetworkSignature,
		exclusions:              mapset.NewThreadUnsafeSet[string](),
	}
}

// WithExclusions returns a copy of c whose exclusion set holds ids.
func (c RunConfig) WithExclusions(ids ...string) RunConfig {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, id := range ids {
		set.Add(NormalizeID(id))
	}
	c.exclusions = set
	return c
}

// IsExcluded reports whether any of the given advisory keys is excluded.
func (c RunConfig) IsExcluded(keys ...string) bool {
	if c.exclusions == nil {
		return false
	}
	for _, k := range keys {
		if c.exclusions.Contains(NormalizeID(k)) {
			return true
		}
	}
	return false
}

// Exclusions returns the configured exclusion ids, sorted.
func (c RunConfig) Exclusions() []string {
	if c.exclusions == nil {
		return nil
	}
	ids := c.exclusions.ToSlice()
	sortIDs(ids)
	return ids
}

// FromViper validates the values in v and builds the run configuration.
// Exclusions come from the exclude key, or from the exclusions file when
// none were given.
func FromViper(v *viper.Viper, fs afero.Fs) (RunConfig, error) {
	c := Default()

	if s := v.GetString(KeyMinSeverity); s != "" {
		sev, err := model.ParseSeverity(s)
		if err != nil {
			return RunConfig{}, cmderr.Configf("invalid %s %q, expected one of %s", KeyMinSeverity, s, strings.Join(model.SeverityNames(), ", "))
		}
		c.MinSeverity = sev
	}

	c.IgnoreDevDeps = v.GetBool(KeyIgnoreDevDeps)
	c.FailOnMissingExclusions = v.GetBool(KeyFailOnMissingExclusions)
	c.RetryOnNetworkFailure = v.GetBool(KeyRetryOnNetworkFailure)
	c.Debug = v.GetBool(KeyDebug)
	c.NoColor = v.GetBool(KeyNoColor)
	c.OutDir = v.GetString(KeyOut)
	c.ExclusionsFile = v.GetString(KeyExclusionsFile)

	if dir := v.GetString(KeyDir); dir != "" {
		c.Dir = dir
	}
	if yarn := v.GetString(KeyYarn); yarn != "" {
		c.Yarn = yarn
	}
	if sig := v.GetString(KeyNetworkSignature); sig != "" {
		c.NetworkFailureSignature = sig
	}

	c.Timeout = v.GetDuration(KeyTimeout)
	if c.Timeout < 0 {
		return RunConfig{}, cmderr.Configf("invalid %s %s", KeyTimeout, c.Timeout)
	}
	if v.IsSet(KeyRetryDelay) {
		c.RetryDelay = v.GetDuration(KeyRetryDelay)
		if c.RetryDelay < 0 {
			return RunConfig{}, cmderr.Configf("invalid %s %s", KeyRetryDelay, c.RetryDelay)
		}
	}

	ids, err := ParseExclusionList(v.GetStringSlice(KeyExclude))
	if err != nil {
		return RunConfig{}, cmderr.Config(err)
	}
	if len(ids) == 0 {
		ids, err = c.exclusionsFromFile(fs)
		if err != nil {
			return RunConfig{}, cmderr.Config(err)
		}
	}

	return c.WithExclusions(ids...), nil
}

// ParseExclusionList validates exclusion ids given on the command line.
// Entries may themselves be comma separated. Every malformed id is reported.
func ParseExclusionList(raw []string) ([]string, error) {
	var ids []string
	var result *multierror.Error
	for _, entry := range raw {
		for _, tok := range strings.Split(entry, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if !exclusionIDPattern.MatchString(tok) {
				result = multierror.Append(result, &InvalidExclusionError{ID: tok})
				continue
			}
			ids = append(ids, NormalizeID(tok))
		}
	}
	return ids, result.ErrorOrNil()
}

// InvalidExclusionError is a malformed advisory id.
type InvalidExclusionError struct {
	ID     string
	Source string
	Line   int
}

func (e *InvalidExclusionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("invalid exclusion %q in %s line %d", e.ID, e.Source, e.Line)
	}
	return fmt.Sprintf("invalid exclusion %q: expected a numeric advisory id or a GHSA id", e.ID)
}

// ExclusionsPath resolves the exclusions file against Dir. explicit is false
// when the default file is used.
func (c RunConfig) ExclusionsPath() (path string, explicit bool) {
	path = c.ExclusionsFile
	explicit = path != ""
	if !explicit {
		path = DefaultExclusionsFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, path)
	}
	return path, explicit
}

func (c RunConfig) exclusionsFromFile(fs afero.Fs) ([]string, error) {
	path, explicit := c.ExclusionsPath()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		if explicit {
			return nil, &MissingFileError{Path: path}
		}
		return nil, nil
	}
	return LoadExclusionsFile(fs, path)
}

// MissingFileError is returned when an explicitly configured exclusions file does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return "exclusions file " + e.Path + " does not exist"
}

// NormalizeID puts an advisory id into the form used for set lookups. GHSA
// ids are case-insensitive; numeric ids are unaffected.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 4 && strings.EqualFold(id[:4], "ghsa") {
		return "GHSA" + strings.ToLower(id[4:])
	}
	return id
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return LessID(ids[i], ids[j]) })
}

// LessID orders numeric ids numerically and before GHSA ids.
func LessID(a, b string) bool {
	an, bn := isNumeric(a), isNumeric(b)
	if an != bn {
		return an
	}
	if an && len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
