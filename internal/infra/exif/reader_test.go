package exif

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestDateTimeOriginalRejectsDataWithoutExif(t *testing.T) {
	_, err := Reader{}.DateTimeOriginal(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	if err == nil {
		t.Fatalf("expected error for JPEG without EXIF block")
	}
}

func TestDateTimeOriginalHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Reader{}.DateTimeOriginal(ctx, bytes.NewReader(nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
