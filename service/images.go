package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxImageBytes is the size ceiling for cover uploads.
const MaxImageBytes = 5 * 1024 * 1024

const coverPrefix = "covers/"

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectStore is the binary storage behind cover images. Keys are the file ids stored on e-books.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageFile is an image staged for upload.
type ImageFile struct {
	Name        string // original filename, informational only
	ContentType string
	Size        int64
	Body        io.Reader
}

// Images validates cover uploads and resolves file ids to fetchable URLs.
type Images struct {
	Store     ObjectStore
	URLExpiry time.Duration
	NewKey    func(ext string) string
}

func NewImages(store ObjectStore) *Images {
	return &Images{Store: store, URLExpiry: time.Hour, NewKey: newObjectKey}
}

// Upload checks type and size, stores the image, and returns its file id.
func (im *Images) Upload(ctx context.Context, f *ImageFile) (string, error) {
	if f == nil || f.Body == nil {
		return "", invalid("image", "File is required.")
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(f.ContentType, ";")[0]))
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", invalid("image", "Invalid file type. Please upload an image (JPEG, PNG, GIF, or WebP).")
	}
	if f.Size > MaxImageBytes {
		return "", invalid("image", "File size exceeds 5MB limit. Please upload a smaller image.")
	}
	// Size may be unknown for streamed bodies; read one byte past the ceiling to enforce it.
	data, err := io.ReadAll(io.LimitReader(f.Body, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", invalid("image", "File size exceeds 5MB limit. Please upload a smaller image.")
	}
	key := im.NewKey(ext)
	if err := im.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", classify(err, "upload image")
	}
	return key, nil
}

// URLFor returns a fetchable URL for id, or "" when id is empty or cannot be resolved.
func (im *Images) URLFor(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	url, err := im.Store.URL(ctx, id, im.URLExpiry)
	if err != nil {
		log.Warn().Err(err).Str("image", id).Msg("resolve image url")
		return ""
	}
	return url
}

func (im *Images) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("image", "File ID is required.")
	}
	if err := im.Store.Delete(ctx, id); err != nil {
		return classify(err, "delete image")
	}
	return nil
}

func newObjectKey(ext string) string {
	return coverPrefix + uuid.New().String() + ext
}
