package domain

import (
	"bytes"
	"io"
	"path/filepath"
	"time"
)

// The cached capture lives at a fixed location so that a new capture always
// replaces the previous one.
const (
	CacheSubdir = "downloads"
	CaptureName = "temp_upload_capture_image"
	CaptureExt  = "jpg"
)

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

// CaptureFileName returns the file name of the cached capture.
func CaptureFileName() string {
	return CaptureName + "." + CaptureExt
}

func CaptureDir(cacheRoot string) string {
	return filepath.Join(cacheRoot, CacheSubdir)
}

func CapturePath(cacheRoot string) string {
	return filepath.Join(CaptureDir(cacheRoot), CaptureFileName())
}

// ShareableRef identifies a shared file without exposing its filesystem path.
type ShareableRef string

func (r ShareableRef) String() string {
	return string(r)
}

func (r ShareableRef) IsZero() bool {
	return r == ""
}

type SaveResult struct {
	Ref    ShareableRef
	Path   string
	Bytes  int64
	Source string
}

type CaptureInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsJPEG  bool
	TakenAt *time.Time
}

func HasJPEGHeader(header []byte) bool {
	return bytes.HasPrefix(header, jpegSOI)
}

// Destination is a pending write to a shared file. Close publishes the
// written bytes; Abort discards them. Whichever runs first wins and the other
// becomes a no-op.
type Destination interface {
	io.WriteCloser
	Abort() error
}
