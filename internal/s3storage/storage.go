// Package s3storage keeps LabelDrop blobs in MinIO/S3. Uploaded inputs go to
// the raw bucket; rendered labels and exports go to the labels bucket.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

// Storage implements storage.Blobs on MinIO/S3.
type Storage struct {
	client       *minio.Client
	rawBucket    string
	labelsBucket string
	region       string
}

var _ storage.Blobs = (*Storage)(nil)

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:       client,
		rawBucket:    cfg.RawBucket,
		labelsBucket: cfg.LabelsBucket,
		region:       cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure both buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.rawBucket, s.labelsBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// Put uploads data, replacing any object at p.
func (s *Storage) Put(ctx context.Context, p string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: ContentType(p)}
	_, err := s.client.PutObject(ctx, s.bucketFor(p), p, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	return nil
}

// Get downloads the object at p.
func (s *Storage) Get(ctx context.Context, p string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketFor(p), p, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", p, mapErr(err))
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", p, mapErr(err))
	}
	return buf, nil
}

// Delete removes the object at p. Removing a missing object succeeds.
func (s *Storage) Delete(ctx context.Context, p string) error {
	if err := s.client.RemoveObject(ctx, s.bucketFor(p), p, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", p, mapErr(err))
	}
	return nil
}

// Presign returns a signed GET URL for the object at p.
func (s *Storage) Presign(ctx context.Context, p string, ttl time.Duration, filename string) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketFor(p), p, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", p, err)
	}
	return u.String(), nil
}

// bucketFor routes uploads to the raw bucket and generated output to the
// labels bucket.
func (s *Storage) bucketFor(p string) string {
	switch strings.SplitN(p, "/", 2)[0] {
	case "datasets", "barcodes":
		return s.rawBucket
	}
	return s.labelsBucket
}

// ContentType guesses the MIME type of a blob from its extension.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	case ".zip":
		return "application/zip"
	case ".pdf":
		return "application/pdf"
	}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func mapErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	return err
}
