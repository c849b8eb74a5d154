package service

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fableweaver/internal/config"
	"fableweaver/internal/storage"
	"fableweaver/internal/testutil"
)

func newTestImageService(t *testing.T, maxMB int) (*ImageService, *storage.LocalBucket) {
	t.Helper()
	bucket, err := storage.NewLocalBucket(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	return NewImageService(bucket, &config.Config{ImageMaxUploadSizeMB: maxMB}), bucket
}

func TestImageServiceStoresCoverRenditions(t *testing.T) {
	svc, bucket := newTestImageService(t, 1)

	stored, err := svc.Store(context.Background(), UploadImageInput{
		UserID:      42,
		Filename:    "cover.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 1200, 800),
	}, CoverPreset)
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if !strings.HasPrefix(stored.URL, "/media/covers/") || !strings.HasSuffix(stored.URL, ".jpg") {
		t.Fatalf("unexpected cover url %q", stored.URL)
	}
	if strings.TrimSuffix(stored.URL, ".jpg") != strings.TrimSuffix(stored.WebPURL, ".webp") {
		t.Fatalf("renditions should share a key: %q vs %q", stored.URL, stored.WebPURL)
	}

	key, ok := bucket.KeyFromURL(stored.URL)
	if !ok {
		t.Fatalf("url %q not served by bucket", stored.URL)
	}
	f, err := os.Open(filepath.Join(bucket.Root(), key))
	if err != nil {
		t.Fatalf("expected jpeg on disk: %v", err)
	}
	defer func() { _ = f.Close() }()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode stored jpeg: %v", err)
	}
	if cfg.Width != 600 || cfg.Height != 900 {
		t.Fatalf("expected 600x900 cover, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestImageServiceRemoveDeletesBothRenditions(t *testing.T) {
	svc, bucket := newTestImageService(t, 1)

	stored, err := svc.Store(context.Background(), UploadImageInput{
		UserID:  7,
		Content: testutil.TinyPNG(t, 300, 300),
	}, AvatarPreset)
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	svc.Remove(context.Background(), stored.URL)

	for _, u := range []string{stored.URL, stored.WebPURL} {
		key, _ := bucket.KeyFromURL(u)
		if _, err := os.Stat(filepath.Join(bucket.Root(), key)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be deleted, stat err=%v", u, err)
		}
	}
}

func TestImageServiceUploadValidation(t *testing.T) {
	svc, _ := newTestImageService(t, 1)

	cases := map[string]UploadImageInput{
		"not an image":  {UserID: 1, ContentType: "text/plain", Content: []byte("not an image")},
		"too large":     {UserID: 1, ContentType: "image/png", Content: bytes.Repeat([]byte{'a'}, 2*1024*1024)},
		"empty":         {UserID: 1, ContentType: "image/png"},
		"no user":       {ContentType: "image/png", Content: testutil.TinyPNG(t, 10, 10)},
		"type mismatch": {UserID: 1, ContentType: "image/gif", Content: testutil.TinyPNG(t, 10, 10)},
	}
	for name, in := range cases {
		if _, err := svc.Store(context.Background(), in, AvatarPreset); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestCenterCrop(t *testing.T) {
	wide := centerCrop(image.Rect(0, 0, 1200, 800), 600, 900)
	if wide.Dy() != 800 || wide.Dx() != 533 || wide.Min.X != 333 {
		t.Fatalf("unexpected crop of wide source: %v", wide)
	}
	tall := centerCrop(image.Rect(0, 0, 400, 1000), 256, 256)
	if tall.Dx() != 400 || tall.Dy() != 400 || tall.Min.Y != 300 {
		t.Fatalf("unexpected crop of tall source: %v", tall)
	}
}
