package integration

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/storefrontlab/storefront-api/internal/storage"
)

func TestImageStorePutStoresSniffedContentType(t *testing.T) {
	env := newMinIOIntegrationEnv(t)
	ctx := context.Background()

	jpeg := jpegFixtureBytes()
	path, err := env.store.Put(ctx, bytes.NewReader(jpeg), int64(len(jpeg)))
	if err != nil {
		t.Fatalf("put jpeg: %v", err)
	}
	if !strings.HasPrefix(path, "images/") || !strings.HasSuffix(path, ".jpg") {
		t.Fatalf("unexpected object path %q", path)
	}
	info := env.mustStatObject(t, path)
	if info.ContentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", info.ContentType)
	}
	if info.Size != int64(len(jpeg)) {
		t.Fatalf("expected size %d, got %d", len(jpeg), info.Size)
	}

	png := pngFixtureBytes()
	pngPath, err := env.store.Put(ctx, bytes.NewReader(png), int64(len(png)))
	if err != nil {
		t.Fatalf("put png: %v", err)
	}
	if !strings.HasSuffix(pngPath, ".png") {
		t.Fatalf("unexpected png path %q", pngPath)
	}

	// Bytes win over any claimed filename: a text payload is rejected even
	// though the bucket is live.
	text := []byte(strings.Repeat("hello world ", 64))
	if _, err := env.store.Put(ctx, bytes.NewReader(text), int64(len(text))); err != storage.ErrUnsupportedImageType {
		t.Fatalf("expected ErrUnsupportedImageType, got %v", err)
	}
}

func TestImageStoreExistsAndDelete(t *testing.T) {
	env := newMinIOIntegrationEnv(t)
	ctx := context.Background()

	jpeg := jpegFixtureBytes()
	path, err := env.store.Put(ctx, bytes.NewReader(jpeg), int64(len(jpeg)))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	ok, err := env.store.Exists(ctx, path)
	if err != nil || !ok {
		t.Fatalf("exists after put: ok=%v err=%v", ok, err)
	}

	if err := env.store.Delete(ctx, path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.mustObjectExists(t, path) {
		t.Fatal("object should be gone after delete")
	}
	ok, err = env.store.Exists(ctx, path)
	if err != nil || ok {
		t.Fatalf("exists after delete: ok=%v err=%v", ok, err)
	}

	// Deleting again is a no-op.
	if err := env.store.Delete(ctx, path); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}

	if err := env.store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestImageStoreCreatesBucketLazily(t *testing.T) {
	env := newMinIOIntegrationEnv(t)
	ctx := context.Background()

	exists, err := env.client.BucketExists(ctx, env.bucket)
	if err != nil {
		t.Fatalf("bucket exists: %v", err)
	}
	if exists {
		t.Fatal("bucket should not exist before first put")
	}

	jpeg := jpegFixtureBytes()
	if _, err := env.store.Put(ctx, bytes.NewReader(jpeg), int64(len(jpeg))); err != nil {
		t.Fatalf("put: %v", err)
	}

	exists, err = env.client.BucketExists(ctx, env.bucket)
	if err != nil {
		t.Fatalf("bucket exists: %v", err)
	}
	if !exists {
		t.Fatal("bucket should be created on first put")
	}
}
