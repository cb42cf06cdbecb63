package yarn

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Workspace is the temporary directory holding the captured audit output of
// one run. Close removes it together with any artifact left behind.
type Workspace struct {
	fs  afero.Fs
	dir string
}

// NewWorkspace creates a fresh temporary directory on fs.
func NewWorkspace(fs afero.Fs) (*Workspace, error) {
	dir, err := afero.TempDir(fs, "", "auditgate-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary directory")
	}
	return &Workspace{fs: fs, dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Close removes the workspace directory.
func (w *Workspace) Close() error {
	return w.fs.RemoveAll(w.dir)
}

// create opens a new artifact for writing. The caller must close the file
// before reading the artifact.
func (w *Workspace) create() (*Artifact, afero.File, error) {
	f, err := afero.TempFile(w.fs, w.dir, "yarn-audit-*.ndjson")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create audit output file")
	}
	return &Artifact{fs: w.fs, path: f.Name()}, f, nil
}

// Artifact is the captured, interleaved output of one audit attempt.
type Artifact struct {
	fs   afero.Fs
	path string
}

func (a *Artifact) Path() string { return a.path }

// Open re-reads the captured output from the start.
func (a *Artifact) Open() (io.ReadCloser, error) {
	f, err := a.fs.Open(a.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audit output")
	}
	return f, nil
}

// Text returns the whole captured output. Only used for diagnostics of
// failed attempts, which are short.
func (a *Artifact) Text() string {
	data, err := afero.ReadFile(a.fs, a.path)
	if err != nil {
		return ""
	}
	return string(data)
}

// Remove deletes the artifact. Removing twice is harmless.
func (a *Artifact) Remove() error {
	if a == nil {
		return nil
	}
	err := a.fs.Remove(a.path)
	if err != nil && !isNotExist(a.fs, a.path) {
		return errors.Wrap(err, "failed to remove audit output")
	}
	return nil
}

func isNotExist(fs afero.Fs, path string) bool {
	ok, err := afero.Exists(fs, path)
	return err == nil && !ok
}
