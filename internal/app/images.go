package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"bookstore/internal/util"
	"bookstore/pkg/domain"
)

const (
	MaxImagesPerBook = 2
	MaxImageBytes    = 5 << 20
	MaxUploadBytes   = 20 << 20
	sniffBytes       = 3072
)

// ImageUpload is one file part of a multipart book form.
type ImageUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

type preparedImage struct {
	upload      ImageUpload
	contentType string
	ext         string
}

// prepareImages validates a batch against the per-book limits before anything is uploaded.
func prepareImages(existing int, uploads []ImageUpload) ([]preparedImage, error) {
	if existing+len(uploads) > MaxImagesPerBook {
		return nil, ErrTooManyImages
	}
	var total int64
	out := make([]preparedImage, 0, len(uploads))
	for _, up := range uploads {
		if up.Size > MaxImageBytes {
			return nil, fmt.Errorf("%w: %s", ErrImageTooLarge, up.Filename)
		}
		total += up.Size
		if total > MaxUploadBytes {
			return nil, ErrUploadTooLarge
		}
		contentType, ext, err := sniffImage(up.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, up.Filename)
		}
		out = append(out, preparedImage{upload: up, contentType: contentType, ext: ext})
	}
	return out, nil
}

// sniffImage detects the type from the leading bytes and rewinds r.
func sniffImage(r io.ReadSeeker) (string, string, error) {
	if r == nil {
		return "", "", ErrUnsupportedImageType
	}
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "", fmt.Errorf("read image: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("rewind image: %w", err)
	}
	mt := mimetype.Detect(head[:n])
	switch {
	case mt.Is("image/jpeg"):
		return "image/jpeg", ".jpg", nil
	case mt.Is("image/png"):
		return "image/png", ".png", nil
	default:
		return "", "", ErrUnsupportedImageType
	}
}

// uploadImages puts every prepared image in the bucket. On failure the
// objects already written are removed again.
func (a *App) uploadImages(ctx context.Context, prepared []preparedImage) ([]domain.Image, error) {
	images := make([]domain.Image, 0, len(prepared))
	for _, p := range prepared {
		key := "books/" + util.NewID() + p.ext
		if err := a.objects.Put(ctx, key, p.upload.Content, p.upload.Size, p.contentType); err != nil {
			a.removeObjects(ctx, images)
			return nil, fmt.Errorf("%w: %v", ErrImageUpload, err)
		}
		images = append(images, domain.Image{URL: a.objects.URL(key), StorageKey: key})
	}
	return images, nil
}

// removeObjects never fails the caller. Keys that cannot be deleted inline
// are handed to the cleanup queue when one is configured.
func (a *App) removeObjects(ctx context.Context, images []domain.Image) {
	logger := util.LoggerFromContext(ctx)
	for _, img := range images {
		if img.StorageKey == "" {
			continue
		}
		err := a.objects.Delete(ctx, img.StorageKey)
		if err == nil {
			continue
		}
		if a.cleanup == nil {
			logger.Warn("object_delete_failed", "key", img.StorageKey, "err", err)
			continue
		}
		if _, qerr := a.cleanup.Enqueue(ctx, img.StorageKey); qerr != nil {
			logger.Warn("object_delete_failed", "key", img.StorageKey, "err", err, "queue_err", qerr)
			continue
		}
		logger.Info("object_delete_deferred", "key", img.StorageKey, "err", err)
	}
}
