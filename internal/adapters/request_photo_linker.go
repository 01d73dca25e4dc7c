package adapters

import (
	"context"

	"marketplace_backend/internal/adapters/storage"
	quotesvc "marketplace_backend/internal/quotes/service"
)

// DownloadURLGenerator presigns object downloads.
type DownloadURLGenerator interface {
	GenerateDownloadURL(ctx context.Context, bucket, objectKey string) (string, error)
}

// RequestPhotoLinker presigns request photos from the configured bucket.
type RequestPhotoLinker struct {
	storage DownloadURLGenerator
	bucket  string
}

func NewRequestPhotoLinker(storage DownloadURLGenerator, bucket string) *RequestPhotoLinker {
	return &RequestPhotoLinker{storage: storage, bucket: bucket}
}

func (l *RequestPhotoLinker) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	return l.storage.GenerateDownloadURL(ctx, l.bucket, objectKey)
}

var (
	_ quotesvc.PhotoLinker = (*RequestPhotoLinker)(nil)
	_ DownloadURLGenerator = (*storage.MinIOService)(nil)
)
