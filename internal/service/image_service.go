package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"mime"
	"net/http"
	"strings"

	"fableweaver/internal/config"
	"fableweaver/internal/models"
	"fableweaver/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	JPEGQuality                 = 82
	WebPQuality                 = 70
)

// ImagePreset describes the output frame an upload is cropped and scaled to.
type ImagePreset struct {
	Name   string
	Width  int
	Height int
}

var (
	CoverPreset  = ImagePreset{Name: "covers", Width: 600, Height: 900}
	AvatarPreset = ImagePreset{Name: "avatars", Width: 256, Height: 256}
)

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// StoredImage is the result of a processed upload. URL points at the JPEG,
// WebPURL at the WebP rendition of the same frame.
type StoredImage struct {
	URL     string `json:"url"`
	WebPURL string `json:"webp_url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ImageService validates, crops and stores uploaded images.
type ImageService struct {
	bucket             storage.Bucket
	maxUploadSizeBytes int64
}

func NewImageService(bucket storage.Bucket, cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &ImageService{
		bucket:             bucket,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// MaxUploadBytes is the largest accepted upload.
func (s *ImageService) MaxUploadBytes() int64 { return s.maxUploadSizeBytes }

// Store decodes the upload, center-crops it to the preset's aspect ratio,
// scales it to the preset size and writes JPEG and WebP renditions.
func (s *ImageService) Store(ctx context.Context, in UploadImageInput, preset ImagePreset) (*StoredImage, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	sourceMimeType := decodedFormatToMime(format)
	if sourceMimeType == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	framed := fillFrame(decoded, preset.Width, preset.Height)

	jpg, err := encodeJPEG(framed, JPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	wp, err := encodeWebP(framed, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	base := storage.NewObjectKey(preset.Name, "")
	jpgURL, err := s.bucket.Put(ctx, base+".jpg", jpg)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	webpURL, err := s.bucket.Put(ctx, base+".webp", wp)
	if err != nil {
		_ = s.bucket.Delete(ctx, base+".jpg")
		return nil, models.NewInternalError(err)
	}

	return &StoredImage{URL: jpgURL, WebPURL: webpURL, Width: preset.Width, Height: preset.Height}, nil
}

// Remove deletes both renditions behind a URL returned by Store. Unknown URLs
// are ignored.
func (s *ImageService) Remove(ctx context.Context, url string) {
	lb, ok := s.bucket.(interface{ KeyFromURL(string) (string, bool) })
	if !ok || url == "" {
		return
	}
	key, ok := lb.KeyFromURL(url)
	if !ok {
		return
	}
	base := strings.TrimSuffix(key, ".jpg")
	_ = s.bucket.Delete(ctx, base+".jpg")
	_ = s.bucket.Delete(ctx, base+".webp")
}

// centerCrop returns the largest centered rectangle of src with aspect w:h.
func centerCrop(bounds image.Rectangle, w, h int) image.Rectangle {
	sw, sh := bounds.Dx(), bounds.Dy()
	if sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return bounds
	}
	target := float64(w) / float64(h)
	if float64(sw)/float64(sh) > target {
		cw := max(int(float64(sh)*target), 1)
		x := bounds.Min.X + (sw-cw)/2
		return image.Rect(x, bounds.Min.Y, x+cw, bounds.Max.Y)
	}
	ch := max(int(float64(sw)/target), 1)
	y := bounds.Min.Y + (sh-ch)/2
	return image.Rect(bounds.Min.X, y, bounds.Max.X, y+ch)
}

// fillFrame crops src to the w:h aspect and scales it to exactly w x h.
func fillFrame(src image.Image, w, h int) image.Image {
	crop := centerCrop(src.Bounds(), w, h)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
