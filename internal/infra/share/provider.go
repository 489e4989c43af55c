// Package share maps files under registered cache roots to content:// references
// that other components can read without knowing the filesystem layout.
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"capcache/internal/domain"
	"capcache/internal/logging"
)

const (
	Scheme          = "content"
	authoritySuffix = ".fileprovider"
	filePerm        = 0o644
	stagingSuffix   = ".part"

	// DefaultStaleAfter is how old a staging file must be before a later
	// save treats it as abandoned.
	DefaultStaleAfter = time.Minute
)

var (
	ErrNoOwner          = errors.New("owner identity is required")
	ErrNotShared        = errors.New("path is not under a registered share root")
	ErrForeignAuthority = errors.New("reference belongs to another authority")
	ErrBadReference     = errors.New("malformed shareable reference")
)

type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	CreateExclusive(path string, perm fs.FileMode) (io.WriteCloser, error)
	Rename(oldPath, newPath string) error
	Remove(path string) error
	ReadDir(path string) ([]fs.FileInfo, error)
}

// Root exposes every file below Path under the reference segment Name.
type Root struct {
	Name string
	Path string
}

type Provider struct {
	FS         FileSystem
	Roots      []Root
	Logger     logging.Logger
	StaleAfter time.Duration
}

func Authority(owner string) string {
	return owner + authoritySuffix
}

// URIFor returns the reference for path. The most specific root wins when
// roots are nested.
func (p *Provider) URIFor(path, owner string) (domain.ShareableRef, error) {
	if strings.TrimSpace(owner) == "" {
		return "", ErrNoOwner
	}
	root, rel, ok := p.match(filepath.Clean(path))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotShared, path)
	}

	segments := []string{url.PathEscape(root.Name)}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		segments = append(segments, url.PathEscape(part))
	}
	return domain.ShareableRef(Scheme + "://" + Authority(owner) + "/" + strings.Join(segments, "/")), nil
}

// Resolve maps a reference issued for owner back to its filesystem path.
func (p *Provider) Resolve(ref domain.ShareableRef, owner string) (string, error) {
	if strings.TrimSpace(owner) == "" {
		return "", ErrNoOwner
	}
	u, err := url.Parse(ref.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadReference, err)
	}
	if u.Scheme != Scheme {
		return "", fmt.Errorf("%w: scheme %q", ErrBadReference, u.Scheme)
	}
	if u.Host != Authority(owner) {
		return "", fmt.Errorf("%w: %s", ErrForeignAuthority, u.Host)
	}

	raw := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")
	if len(raw) < 2 {
		return "", fmt.Errorf("%w: %s", ErrBadReference, ref)
	}
	parts := make([]string, 0, len(raw))
	for _, segment := range raw {
		part, err := url.PathUnescape(segment)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadReference, err)
		}
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("%w: segment %q", ErrBadReference, segment)
		}
		parts = append(parts, part)
	}

	for _, root := range p.Roots {
		if root.Name == parts[0] {
			return filepath.Join(append([]string{filepath.Clean(root.Path)}, parts[1:]...)...), nil
		}
	}
	return "", fmt.Errorf("%w: unknown root %q", ErrBadReference, parts[0])
}

// RegisterAndOpenWrite returns the reference for path together with a
// destination that replaces path atomically on Close.
func (p *Provider) RegisterAndOpenWrite(ctx context.Context, path, owner string) (domain.ShareableRef, domain.Destination, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if p.FS == nil {
		return "", nil, errors.New("share provider requires FS")
	}
	ref, err := p.URIFor(path, owner)
	if err != nil {
		return "", nil, err
	}

	dir, base := filepath.Dir(filepath.Clean(path)), filepath.Base(path)
	p.sweepStaging(dir, base)

	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+stagingSuffix)
	file, err := p.FS.CreateExclusive(tmpPath, filePerm)
	if err != nil {
		return "", nil, err
	}
	p.Logger.Verbosef("Registered %s for %s (staging %s)", ref, path, filepath.Base(tmpPath))

	return ref, &pendingFile{fs: p.FS, file: file, tmpPath: tmpPath, path: path}, nil
}

// sweepStaging removes staging files for base left behind by saves that
// never reached Close or Abort. Files younger than StaleAfter may belong to a
// save still in flight and are kept.
func (p *Provider) sweepStaging(dir, base string) {
	infos, err := p.FS.ReadDir(dir)
	if err != nil {
		p.Logger.Verbosef("Skipping staging sweep in %s: %v", dir, err)
		return
	}
	grace := p.StaleAfter
	if grace <= 0 {
		grace = DefaultStaleAfter
	}
	cutoff := time.Now().Add(-grace)
	prefix := "." + base + "."

	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, stagingSuffix) {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := p.FS.Remove(filepath.Join(dir, name)); err != nil {
			p.Logger.Warnf("could not remove stale staging file %s: %v", name, err)
			continue
		}
		p.Logger.Verbosef("Removed stale staging file %s", name)
	}
}

// OpenRead opens the file behind ref and reports its size.
func (p *Provider) OpenRead(ctx context.Context, ref domain.ShareableRef, owner string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if p.FS == nil {
		return nil, 0, errors.New("share provider requires FS")
	}
	path, err := p.Resolve(ref, owner)
	if err != nil {
		return nil, 0, err
	}
	info, err := p.FS.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrBadReference, ref)
	}
	file, err := p.FS.Open(path)
	if err != nil {
		return nil, 0, err
	}
	return file, info.Size(), nil
}

func (p *Provider) match(path string) (Root, string, bool) {
	var best Root
	var bestRel string
	found := false
	for _, root := range p.Roots {
		rootPath := filepath.Clean(root.Path)
		rel, err := filepath.Rel(rootPath, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !found || len(rootPath) > len(filepath.Clean(best.Path)) {
			best, bestRel, found = root, rel, true
		}
	}
	return best, bestRel, found
}

type syncer interface {
	Sync() error
}

type pendingFile struct {
	fs      FileSystem
	file    io.WriteCloser
	tmpPath string
	path    string
	done    bool
}

func (f *pendingFile) Write(b []byte) (int, error) {
	if f.done {
		return 0, fs.ErrClosed
	}
	return f.file.Write(b)
}

func (f *pendingFile) Close() error {
	if f.done {
		return nil
	}
	f.done = true

	if s, ok := f.file.(syncer); ok {
		if err := s.Sync(); err != nil {
			f.file.Close()
			f.fs.Remove(f.tmpPath)
			return err
		}
	}
	if err := f.file.Close(); err != nil {
		f.fs.Remove(f.tmpPath)
		return err
	}
	if err := f.fs.Rename(f.tmpPath, f.path); err != nil {
		f.fs.Remove(f.tmpPath)
		return err
	}
	return nil
}

func (f *pendingFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	f.file.Close()
	return f.fs.Remove(f.tmpPath)
}
