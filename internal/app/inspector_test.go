package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"

	"capcache/internal/domain"
	appErrors "capcache/internal/errors"
	infrafs "capcache/internal/infra/fs"
)

type mockExif struct {
	takenAt time.Time
	err     error
	calls   int
}

func (m *mockExif) DateTimeOriginal(ctx context.Context, r io.Reader) (time.Time, error) {
	m.calls++
	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.takenAt, nil
}

func seedCapture(t *testing.T, store infrafs.AferoFS, data []byte) {
	t.Helper()
	if err := afero.WriteFile(store.Fs, domain.CapturePath(cacheRoot), data, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestInspectMissingCaptureIsNotFound(t *testing.T) {
	inspector := Inspector{FS: infrafs.NewMemory(), CacheRoot: cacheRoot}
	_, err := inspector.Inspect(context.Background())
	if !appErrors.Is(err, appErrors.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestInspectReportsJPEGAndCaptureTime(t *testing.T) {
	store := infrafs.NewMemory()
	seedCapture(t, store, []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00})
	taken := time.Date(2024, 10, 2, 15, 1, 0, 0, time.UTC)
	exif := &mockExif{takenAt: taken}

	info, err := (&Inspector{FS: store, Exif: exif, CacheRoot: cacheRoot}).Inspect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsJPEG || info.Size != 5 || info.Path != domain.CapturePath(cacheRoot) {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.TakenAt == nil || !info.TakenAt.Equal(taken) {
		t.Fatalf("expected capture time %v, got %v", taken, info.TakenAt)
	}
}

func TestInspectToleratesMissingExif(t *testing.T) {
	store := infrafs.NewMemory()
	seedCapture(t, store, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	exif := &mockExif{err: errors.New("no exif")}

	info, err := (&Inspector{FS: store, Exif: exif, CacheRoot: cacheRoot}).Inspect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsJPEG || info.TakenAt != nil {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestInspectSkipsExifForNonJPEG(t *testing.T) {
	store := infrafs.NewMemory()
	seedCapture(t, store, []byte("not an image"))
	exif := &mockExif{}

	info, err := (&Inspector{FS: store, Exif: exif, CacheRoot: cacheRoot}).Inspect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.IsJPEG || exif.calls != 0 {
		t.Fatalf("expected non-JPEG without EXIF lookup, got %+v (calls=%d)", info, exif.calls)
	}
}

func TestInspectEmptyCapture(t *testing.T) {
	store := infrafs.NewMemory()
	seedCapture(t, store, nil)

	info, err := (&Inspector{FS: store, CacheRoot: cacheRoot}).Inspect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size != 0 || info.IsJPEG {
		t.Fatalf("unexpected info: %+v", info)
	}
}
