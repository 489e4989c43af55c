package app

import (
	"context"
	"io"
	"io/fs"
	"time"

	"capcache/internal/domain"
)

type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	MkdirAll(path string, perm fs.FileMode) error
	Open(path string) (io.ReadCloser, error)
}

// SourceResolver opens the bytes behind a capture reference. Size is -1 when
// the source cannot tell in advance.
type SourceResolver interface {
	OpenRead(ctx context.Context, ref string) (io.ReadCloser, int64, error)
}

// ShareRegistry hands out a shareable reference for a path together with a
// writer for its contents, scoped to the owner's identity.
type ShareRegistry interface {
	RegisterAndOpenWrite(ctx context.Context, path, owner string) (domain.ShareableRef, domain.Destination, error)
}

type ExifReader interface {
	DateTimeOriginal(ctx context.Context, r io.Reader) (time.Time, error)
}
