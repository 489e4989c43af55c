package share

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"

	"capcache/internal/domain"
	"capcache/internal/infra/fs"
)

const owner = "com.example.camera"

func newProvider() (*Provider, fs.AferoFS) {
	store := fs.NewMemory()
	return &Provider{
		FS: store,
		Roots: []Root{
			{Name: "downloads", Path: "/cache/downloads"},
			{Name: "thumbs", Path: "/cache/downloads/thumbs"},
		},
	}, store
}

func TestURIForBuildsContentReference(t *testing.T) {
	p, _ := newProvider()

	ref, err := p.URIFor("/cache/downloads/temp_upload_capture_image.jpg", owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ShareableRef("content://com.example.camera.fileprovider/downloads/temp_upload_capture_image.jpg")
	if ref != want {
		t.Fatalf("expected %q, got %q", want, ref)
	}
}

func TestURIForPrefersMostSpecificRoot(t *testing.T) {
	p, _ := newProvider()

	ref, err := p.URIFor("/cache/downloads/thumbs/a b.jpg", owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "content://com.example.camera.fileprovider/thumbs/a%20b.jpg" {
		t.Fatalf("unexpected ref %q", ref)
	}

	path, err := p.Resolve(ref, owner)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != "/cache/downloads/thumbs/a b.jpg" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestURIForRejectsUnsharedPathsAndMissingOwner(t *testing.T) {
	p, _ := newProvider()

	if _, err := p.URIFor("/cache/other/x.jpg", owner); !errors.Is(err, ErrNotShared) {
		t.Fatalf("expected ErrNotShared, got %v", err)
	}
	if _, err := p.URIFor("/cache/downloads", owner); !errors.Is(err, ErrNotShared) {
		t.Fatalf("expected root itself to be rejected, got %v", err)
	}
	if _, err := p.URIFor("/cache/downloads/x.jpg", " "); !errors.Is(err, ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func TestResolveRejectsForeignAndEscapingReferences(t *testing.T) {
	p, _ := newProvider()

	cases := []struct {
		ref  domain.ShareableRef
		want error
	}{
		{"content://other.app.fileprovider/downloads/x.jpg", ErrForeignAuthority},
		{"file:///cache/downloads/x.jpg", ErrBadReference},
		{"content://com.example.camera.fileprovider/downloads/../../etc/passwd", ErrBadReference},
		{"content://com.example.camera.fileprovider/downloads/%2E%2E/x.jpg", ErrBadReference},
		{"content://com.example.camera.fileprovider/downloads/a%2Fb.jpg", ErrBadReference},
		{"content://com.example.camera.fileprovider/unknown/x.jpg", ErrBadReference},
		{"content://com.example.camera.fileprovider/downloads", ErrBadReference},
	}
	for _, tc := range cases {
		if _, err := p.Resolve(tc.ref, owner); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.ref, tc.want, err)
		}
	}
}

func TestRegisterAndOpenWriteReplacesOnClose(t *testing.T) {
	p, store := newProvider()
	path := "/cache/downloads/temp_upload_capture_image.jpg"
	if err := afero.WriteFile(store.Fs, path, []byte("previous"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ref, dst, err := p.RegisterAndOpenWrite(context.Background(), path, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dst.Write([]byte("fresh")); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, _ := afero.ReadFile(store.Fs, path)
	if string(data) != "previous" {
		t.Fatalf("expected previous contents before commit, got %q", data)
	}

	if err := dst.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := dst.Abort(); err != nil {
		t.Fatalf("abort after close should be a no-op: %v", err)
	}

	r, size, err := p.OpenRead(context.Background(), ref, owner)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "fresh" || size != 5 {
		t.Fatalf("expected fresh (5 bytes), got %q (%d)", got, size)
	}

	entries, err := afero.ReadDir(store.Fs, "/cache/downloads")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, got %d entries", len(entries))
	}
}

func TestAbortKeepsPreviousContents(t *testing.T) {
	p, store := newProvider()
	path := "/cache/downloads/temp_upload_capture_image.jpg"
	if err := afero.WriteFile(store.Fs, path, []byte("previous"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, dst, err := p.RegisterAndOpenWrite(context.Background(), path, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dst.Write([]byte("partial"))
	if err := dst.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := dst.Write([]byte("more")); err == nil {
		t.Fatalf("expected write after abort to fail")
	}

	data, _ := afero.ReadFile(store.Fs, path)
	if string(data) != "previous" {
		t.Fatalf("expected previous contents, got %q", data)
	}
	entries, _ := afero.ReadDir(store.Fs, "/cache/downloads")
	if len(entries) != 1 {
		t.Fatalf("expected staging file to be removed, got %d entries", len(entries))
	}
}

func TestRegisterAndOpenWriteHonoursCancelledContext(t *testing.T) {
	p, _ := newProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := p.RegisterAndOpenWrite(ctx, "/cache/downloads/x.jpg", owner); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegisterAndOpenWriteSweepsStaleStagingFiles(t *testing.T) {
	p, store := newProvider()
	dir := "/cache/downloads"
	old := time.Now().Add(-time.Hour)

	stale := dir + "/.temp_upload_capture_image.jpg.abandoned.part"
	fresh := dir + "/.temp_upload_capture_image.jpg.inflight.part"
	other := dir + "/.other.jpg.abandoned.part"
	for _, path := range []string{stale, fresh, other} {
		if err := afero.WriteFile(store.Fs, path, nil, 0o644); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
	for _, path := range []string{stale, other} {
		if err := store.Fs.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	_, dst, err := p.RegisterAndOpenWrite(context.Background(), dir+"/temp_upload_capture_image.jpg", owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer dst.Abort()

	if ok, _ := afero.Exists(store.Fs, stale); ok {
		t.Fatalf("expected stale staging file to be removed")
	}
	if ok, _ := afero.Exists(store.Fs, fresh); !ok {
		t.Fatalf("expected recent staging file to be kept")
	}
	if ok, _ := afero.Exists(store.Fs, other); !ok {
		t.Fatalf("expected staging files of other targets to be kept")
	}
}
