package app

import (
	"bufio"
	"context"
	"errors"
	"io/fs"

	"capcache/internal/domain"
	appErrors "capcache/internal/errors"
	"capcache/internal/logging"
)

// Inspector reports on the cached capture without modifying it.
type Inspector struct {
	FS        FileSystem
	Exif      ExifReader
	CacheRoot string
	Logger    logging.Logger
}

func (i *Inspector) Inspect(ctx context.Context) (domain.CaptureInfo, error) {
	if i.FS == nil {
		return domain.CaptureInfo{}, errors.New("inspector requires FS")
	}
	path := domain.CapturePath(i.CacheRoot)

	info, err := i.FS.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CaptureInfo{}, appErrors.Wrap(appErrors.NotFound, "stat", path, err)
		}
		return domain.CaptureInfo{}, appErrors.Wrap(appErrors.IOFailure, "stat", path, err)
	}

	file, err := i.FS.Open(path)
	if err != nil {
		return domain.CaptureInfo{}, appErrors.Wrap(appErrors.IOFailure, "open", path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	// Short files yield a short header, which simply fails the check.
	header, _ := reader.Peek(3)

	result := domain.CaptureInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsJPEG:  domain.HasJPEGHeader(header),
	}
	if !result.IsJPEG || i.Exif == nil {
		return result, nil
	}

	takenAt, err := i.Exif.DateTimeOriginal(ctx, reader)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.CaptureInfo{}, err
		}
		i.Logger.Verbosef("EXIF not found for %s: %v", path, err)
		return result, nil
	}
	result.TakenAt = &takenAt
	return result, nil
}
