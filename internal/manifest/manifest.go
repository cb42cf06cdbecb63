// Package manifest reads the project's package.json to tell which dependency
// paths belong to development dependencies.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"auditgate/internal/model"
)

const FileName = "package.json"

// Manifest is the subset of package.json auditgate cares about.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// DevPredicate reports whether a dependency path resolves entirely through
// development dependencies.
type DevPredicate func(model.DependencyPath) bool

// Load reads package.json from dir. A missing manifest is not an error and
// yields a nil manifest.
func Load(fs afero.Fs, dir string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read "+FileName)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse "+FileName)
	}
	return &m, nil
}

// DevDependencyNames returns the declared development dependencies.
func (m *Manifest) DevDependencyNames() mapset.Set[string] {
	names := mapset.NewThreadUnsafeSet[string]()
	if m == nil {
		return names
	}
	for name := range m.DevDependencies {
		names.Add(name)
	}
	return names
}

// DevPredicate returns the dev-only path predicate for this manifest, or nil
// for a nil manifest. A path is dev-only when its top-level package is a
// declared development dependency; everything below it was pulled in by it.
func (m *Manifest) DevPredicate() DevPredicate {
	if m == nil {
		return nil
	}
	return NewDevPredicate(m.DevDependencyNames())
}

// NewDevPredicate builds a predicate from a set of development dependency names.
func NewDevPredicate(devDeps mapset.Set[string]) DevPredicate {
	return func(p model.DependencyPath) bool {
		root := p.Root()
		return root != "" && devDeps.Contains(root)
	}
}
