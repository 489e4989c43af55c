package fs

import (
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// AferoFS adapts an afero filesystem to the ports used by the saver, the
// share provider and the source resolver.
type AferoFS struct {
	Fs afero.Fs
}

func NewOS() AferoFS {
	return AferoFS{Fs: afero.NewOsFs()}
}

func NewMemory() AferoFS {
	return AferoFS{Fs: afero.NewMemMapFs()}
}

func (a AferoFS) Stat(path string) (fs.FileInfo, error) {
	return a.Fs.Stat(path)
}

func (a AferoFS) ReadDir(path string) ([]fs.FileInfo, error) {
	return afero.ReadDir(a.Fs, path)
}

func (a AferoFS) MkdirAll(path string, perm fs.FileMode) error {
	return a.Fs.MkdirAll(path, perm)
}

func (a AferoFS) Open(path string) (io.ReadCloser, error) {
	return a.Fs.Open(path)
}

// CreateExclusive creates path for writing and fails if it already exists.
// The returned writer also implements Sync.
func (a AferoFS) CreateExclusive(path string, perm fs.FileMode) (io.WriteCloser, error) {
	return a.Fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
}

func (a AferoFS) Rename(oldPath, newPath string) error {
	return a.Fs.Rename(oldPath, newPath)
}

func (a AferoFS) Remove(path string) error {
	return a.Fs.Remove(path)
}
