package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func newStoreForTest(t *testing.T) *MinIOImageStore {
	t.Helper()
	// Points at nothing; only pre-network validation paths run in these tests.
	store, err := NewMinIOImageStore("127.0.0.1:1", "access", "secret", "test-bucket", false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutRejectsOversizedPayload(t *testing.T) {
	store := newStoreForTest(t)

	_, err := store.Put(context.Background(), bytes.NewReader(nil), MaxImageSize+1)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestPutRejectsNonImagePayload(t *testing.T) {
	store := newStoreForTest(t)

	payload := strings.NewReader("definitely not an image, just plain text that sniffs as text/plain")
	_, err := store.Put(context.Background(), payload, payload.Size())
	if !errors.Is(err, ErrUnsupportedImageType) {
		t.Fatalf("expected ErrUnsupportedImageType, got %v", err)
	}
}

func TestPutRejectsPDFPayload(t *testing.T) {
	store := newStoreForTest(t)

	payload := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x20}, 600)...)
	_, err := store.Put(context.Background(), bytes.NewReader(payload), int64(len(payload)))
	if !errors.Is(err, ErrUnsupportedImageType) {
		t.Fatalf("expected ErrUnsupportedImageType, got %v", err)
	}
}

func TestExistsAndDeleteIgnoreEmptyPath(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "  ")
	if err != nil || ok {
		t.Fatalf("empty path: ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, ""); err != nil {
		t.Fatalf("empty path delete: %v", err)
	}
}
