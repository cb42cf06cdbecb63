package detect

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	ManifestFile    = "package.json"
	YarnLockFile    = "yarn.lock"
	PackageLockFile = "package-lock.json"
)

// Project describes what was found in the audited directory. Paths are
// empty when the file does not exist.
type Project struct {
	Root           string
	Manifest       string
	YarnLock       string
	PackageLock    string
	ExclusionsFile string
	// NestedYarnLocks are yarn.lock files below Root, sorted.
	NestedYarnLocks []string
}

// Ignored directories (exact match on folder name)
var ignoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".yarn":        {},
	"bin":          {},
	"obj":          {},
	".venv":        {},
	"venv":         {},
}

// DetectProject inspects root for the files a yarn audit depends on. The
// tree below root is walked for other yarn.lock files, skipping ignored and
// unreadable directories, so a wrong working directory can be pointed out.
// Only a root that cannot be read is an error.
func DetectProject(fs afero.Fs, root, exclusionsFile string) (Project, error) {
	res := Project{Root: root}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{ManifestFile, &res.Manifest},
		{YarnLockFile, &res.YarnLock},
		{PackageLockFile, &res.PackageLock},
		{exclusionsFile, &res.ExclusionsFile},
	} {
		if f.name == "" {
			continue
		}
		path := f.name
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		ok, err := afero.Exists(fs, path)
		if err != nil {
			return res, err
		}
		if ok {
			*f.dst = path
		}
	}

	cleanRoot := filepath.Clean(root)
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if filepath.Clean(path) == cleanRoot {
				return err
			}
			// nested lockfiles only feed warnings, an unreadable subtree is skipped
			log.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Handle directory skipping
		if info.IsDir() {
			if _, ok := ignoredDirs[info.Name()]; ok {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Name() == YarnLockFile && filepath.Dir(path) != cleanRoot {
			res.NestedYarnLocks = append(res.NestedYarnLocks, path)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	// Ensure deterministic order
	sort.Strings(res.NestedYarnLocks)

	return res, nil
}

// Warnings returns hints about a project that yarn audit is unlikely to handle.
func (p Project) Warnings() []string {
	var w []string
	if p.Manifest == "" {
		w = append(w, "no "+ManifestFile+" found, dev dependencies cannot be identified")
	}
	if p.YarnLock == "" {
		switch {
		case p.PackageLock != "":
			w = append(w, "found "+PackageLockFile+" but no "+YarnLockFile+", this looks like an npm project")
		case len(p.NestedYarnLocks) > 0:
			w = append(w, "no "+YarnLockFile+" in "+p.Root+", but found one in "+filepath.Dir(p.NestedYarnLocks[0]))
		default:
			w = append(w, "no "+YarnLockFile+" found, yarn audit will resolve dependencies itself")
		}
	}
	return w
}
