package exif

import (
	"context"
	"errors"
	"io"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
)

var ErrNoDateTime = errors.New("exif datetime not found")

type Reader struct{}

// DateTimeOriginal decodes the EXIF block at the start of r and returns the
// capture time, falling back to the generic DateTime tag.
func (Reader) DateTimeOriginal(ctx context.Context, r io.Reader) (time.Time, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	default:
	}

	x, err := goexif.Decode(r)
	if err != nil {
		return time.Time{}, err
	}

	if tag, err := x.Get(goexif.DateTimeOriginal); err == nil {
		if str, err := tag.StringVal(); err == nil {
			parsed, err := time.Parse("2006:01:02 15:04:05", str)
			if err == nil {
				return parsed, nil
			}
		}
	}

	if parsed, err := x.DateTime(); err == nil {
		return parsed, nil
	}

	return time.Time{}, ErrNoDateTime
}
