package app

import (
	"context"
	"errors"
	"io"

	"capcache/internal/domain"
	appErrors "capcache/internal/errors"
	"capcache/internal/logging"
)

// ProgressFunc is called while copying with the bytes written so far and the
// expected total, which is -1 when unknown.
type ProgressFunc func(written, total int64)

// CaptureSaver copies a captured image into the single cache slot and hands
// back a shareable reference to it.
type CaptureSaver struct {
	FS         FileSystem
	Sources    SourceResolver
	Share      ShareRegistry
	CacheRoot  string
	Owner      string
	Logger     logging.Logger
	OnProgress ProgressFunc
}

// Save overwrites the cached capture with the bytes behind sourceRef.
// Concurrent calls are not serialized; the last one to finish wins.
func (s *CaptureSaver) Save(ctx context.Context, sourceRef string) (domain.SaveResult, error) {
	if s.FS == nil || s.Sources == nil || s.Share == nil {
		return domain.SaveResult{}, errors.New("capture saver requires FS, Sources and Share")
	}
	if s.CacheRoot == "" {
		return domain.SaveResult{}, appErrors.Wrap(appErrors.InvalidConfig, "save", "", errors.New("cache root is required"))
	}

	if err := ctx.Err(); err != nil {
		return domain.SaveResult{}, err
	}

	stop := s.Logger.Measure("Saving capture")
	defer stop()

	dir := domain.CaptureDir(s.CacheRoot)
	if err := s.FS.MkdirAll(dir, 0o755); err != nil {
		return domain.SaveResult{}, appErrors.Wrap(appErrors.IOFailure, "mkdir", dir, err)
	}
	path := domain.CapturePath(s.CacheRoot)

	ref, dst, err := s.Share.RegisterAndOpenWrite(ctx, path, s.Owner)
	if err != nil {
		return domain.SaveResult{}, appErrors.Wrap(appErrors.DestinationUnavailable, "share", path, err)
	}
	// No-op once the destination has been committed.
	defer dst.Abort()

	src, total, err := s.Sources.OpenRead(ctx, sourceRef)
	if err != nil {
		return domain.SaveResult{}, appErrors.Wrap(appErrors.SourceUnavailable, "open", sourceRef, err)
	}
	defer src.Close()
	s.Logger.Verbosef("Copying %s to %s", sourceRef, path)

	s.report(0, total)
	written, err := io.Copy(dst, &progressReader{ctx: ctx, r: src, total: total, fn: s.report})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.Logger.Verbosef("Save of %s cancelled after %d bytes", sourceRef, written)
			return domain.SaveResult{}, ctxErr
		}
		return domain.SaveResult{}, appErrors.Wrap(appErrors.IOFailure, "copy", path, err)
	}
	if err := dst.Close(); err != nil {
		return domain.SaveResult{}, appErrors.Wrap(appErrors.IOFailure, "commit", path, err)
	}
	if total >= 0 && written != total {
		s.Logger.Warnf("source %s announced %d bytes but delivered %d", sourceRef, total, written)
	}
	s.Logger.Verbosef("Saved %d bytes as %s", written, ref)

	return domain.SaveResult{
		Ref:    ref,
		Path:   path,
		Bytes:  written,
		Source: sourceRef,
	}, nil
}

func (s *CaptureSaver) report(written, total int64) {
	if s.OnProgress != nil {
		s.OnProgress(written, total)
	}
}

// progressReader stops the copy between reads once ctx is done.
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	total   int64
	written int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		p.fn(p.written, p.total)
	}
	return n, err
}
