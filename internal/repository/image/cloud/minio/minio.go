package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"image-normalizer/internal/config"
	"image-normalizer/internal/domain"
	"image-normalizer/internal/repository/image"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type FileRepository struct {
	client  *minio.Client
	bucket  string
	retries retry.Strategy
	logger  *zlog.Zerolog
}

func NewMinIORepository(cfg *config.Config, retries retry.Strategy, logger *zlog.Zerolog) (*FileRepository, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	r := &FileRepository{
		client:  client,
		bucket:  cfg.MinIO.Bucket,
		retries: retries,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *FileRepository) ensureBucket(ctx context.Context) error {
	return retry.Do(func() error {
		exists, err := r.client.BucketExists(ctx, r.bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", r.bucket, err)
		}
		if exists {
			return nil
		}

		if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
		}
		r.logger.Info().Str("bucket", r.bucket).Msg("Bucket created")
		return nil
	}, r.retries)
}

// OriginalPath builds the object key for an upload, keeping the client's extension.
func OriginalPath(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return domain.PathPrefixOriginal + uuid.New().String() + ext
}

func (r *FileRepository) SaveOriginal(ctx context.Context, filename string, data io.Reader, size int64, contentType string) (string, error) {
	objectPath := OriginalPath(filename)
	if err := r.put(ctx, objectPath, data, size, contentType); err != nil {
		return "", err
	}
	return objectPath, nil
}

func (r *FileRepository) SaveProcessed(ctx context.Context, objectPath string, data io.Reader, size int64, contentType string) error {
	return r.put(ctx, objectPath, data, size, contentType)
}

func (r *FileRepository) put(ctx context.Context, objectPath string, data io.Reader, size int64, contentType string) error {
	seeker, rewindable := data.(io.Seeker)
	strategy := r.retries
	if !rewindable {
		strategy.Attempts = 1
	}

	err := retry.Do(func() error {
		if rewindable {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		_, err := r.client.PutObject(ctx, r.bucket, objectPath, data, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	}, strategy)
	if err != nil {
		r.logger.Error().Err(err).Str("path", objectPath).Msg("Failed to upload object")
		return fmt.Errorf("%w: failed to upload %s: %w", image.ErrStorageError, objectPath, err)
	}

	return nil
}

func (r *FileRepository) GetObject(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	var obj *minio.Object

	err := retry.Do(func() error {
		o, err := r.client.GetObject(ctx, r.bucket, objectPath, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		if _, err := o.Stat(); err != nil {
			o.Close()
			if isNotFound(err) {
				return nil
			}
			return err
		}
		obj = o
		return nil
	}, r.retries)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s: %w", image.ErrStorageError, objectPath, err)
	}
	if obj == nil {
		return nil, image.ErrFileNotFound
	}

	return obj, nil
}

func (r *FileRepository) DeleteObject(ctx context.Context, objectPath string) error {
	err := retry.Do(func() error {
		return r.client.RemoveObject(ctx, r.bucket, objectPath, minio.RemoveObjectOptions{})
	}, r.retries)
	if err != nil {
		return fmt.Errorf("%w: failed to delete %s: %w", image.ErrStorageError, objectPath, err)
	}
	return nil
}

func (r *FileRepository) DeleteObjectsWithPrefix(ctx context.Context, prefix string) error {
	objects := r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var errs []error
	for removeErr := range r.client.RemoveObjects(ctx, r.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("%s: %w", removeErr.ObjectName, removeErr.Err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: failed to delete prefix %s: %w", image.ErrStorageError, prefix, errors.Join(errs...))
	}
	return nil
}

// PresignedURL returns a time-limited GET URL that browsers can render directly.
func (r *FileRepository) PresignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	var u *url.URL

	err := retry.Do(func() error {
		var err error
		u, err = r.client.PresignedGetObject(ctx, r.bucket, objectPath, ttl, url.Values{})
		return err
	}, r.retries)
	if err != nil {
		return "", fmt.Errorf("%w: failed to presign %s: %w", image.ErrStorageError, objectPath, err)
	}

	return u.String(), nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
