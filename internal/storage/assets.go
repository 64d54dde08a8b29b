package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"folio/internal/imaging"
)

// MaxAssetSize is the largest accepted upload (10 MB).
const MaxAssetSize = 10 << 20

var (
	// ErrUnsupportedType is returned for files that are not web images.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned for files over MaxAssetSize.
	ErrTooLarge = errors.New("file too large")
)

// Bucket is the subset of Client the asset uploader needs.
type Bucket interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	FileURL(key string) string
	ExtractKey(rawURL string) (string, bool)
}

// Asset is an uploaded file and its optional thumbnail.
type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ThumbURL    string `json:"thumb_url,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Assets stores site images in a bucket.
type Assets struct {
	bucket Bucket
	now    func() time.Time
}

// NewAssets creates an asset uploader backed by bucket.
func NewAssets(bucket Bucket) *Assets {
	return &Assets{bucket: bucket, now: time.Now}
}

// Put validates and stores an image read from r. Keys have the form
// assets/YYYY/MM/<uuid><ext>; a JPEG thumbnail is stored next to wide
// raster images. A failed thumbnail is logged and skipped.
func (a *Assets) Put(ctx context.Context, filename string, r io.Reader) (*Asset, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxAssetSize {
		return nil, ErrTooLarge
	}

	contentType := imaging.DetectType(data, filename)
	if !imaging.Allowed(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	now := a.now()
	fileID := uuid.New().String()
	prefix := fmt.Sprintf("assets/%d/%02d/%s", now.Year(), now.Month(), fileID)
	key := prefix + imaging.Extension(contentType)

	if err := a.bucket.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}

	asset := &Asset{
		Key:         key,
		URL:         a.bucket.FileURL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	if imaging.Thumbable(contentType) {
		thumb, err := imaging.Thumbnail(data, imaging.ThumbMaxWidth)
		switch {
		case err != nil:
			slog.Warn("thumbnail generation failed", "error", err, "key", key)
		case thumb != nil:
			thumbKey := prefix + "_thumb.jpg"
			if err := a.bucket.Upload(ctx, thumbKey, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
				slog.Warn("thumbnail upload failed", "error", err, "key", thumbKey)
			} else {
				asset.ThumbURL = a.bucket.FileURL(thumbKey)
			}
		}
	}

	return asset, nil
}

// Remove deletes the object behind a URL previously returned by Put, along
// with its thumbnail. URLs outside the bucket are ignored.
func (a *Assets) Remove(ctx context.Context, rawURL string) error {
	key, ok := a.bucket.ExtractKey(rawURL)
	if !ok || !strings.HasPrefix(key, "assets/") {
		return nil
	}
	if err := a.bucket.Delete(ctx, key); err != nil {
		return err
	}
	if dot := strings.LastIndex(key, "."); dot > 0 {
		thumbKey := key[:dot] + "_thumb.jpg"
		if thumbKey != key {
			if err := a.bucket.Delete(ctx, thumbKey); err != nil {
				slog.Warn("thumbnail delete failed", "error", err, "key", thumbKey)
			}
		}
	}
	return nil
}
