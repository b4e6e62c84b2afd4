// Package storage keeps the spreadsheets behind batch imports so every batch
// report can link to the exact file it came from.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/pkg/retry"
)

// Object is a stored upload. Key is empty when nothing was written.
type Object struct {
	shared.SourceFile
	Key string
}

// Uploader stores one uploaded file and describes where it went. Delete
// removes an object whose batch was rejected.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (Object, error)
	Delete(ctx context.Context, key string) error
}

// Config holds S3 settings.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for S3-compatible services
	Prefix   string
}

// S3Storage writes uploads to an S3 bucket.
type S3Storage struct {
	client   *s3.S3
	bucket   string
	prefix   string
	endpoint string
	region   string
	retrier  *retry.Retrier
	now      func() time.Time
}

// NewS3Storage builds a client from the default credential chain.
func NewS3Storage(cfg Config) (*S3Storage, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create session: %w", err)
	}

	return &S3Storage{
		client:   s3.New(sess),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		region:   cfg.Region,
		retrier:  retry.Storage(transient),
		now:      time.Now,
	}, nil
}

// Upload puts the file under a unique key and returns its public link.
func (s *S3Storage) Upload(ctx context.Context, name string, data []byte) (Object, error) {
	key := objectKey(s.prefix, name, s.now())

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType(name)),
		})
		return err
	})
	if err != nil {
		return Object{}, fmt.Errorf("storage: upload %q: %w", name, err)
	}

	return Object{SourceFile: shared.SourceFile{Name: name, Link: objectLink(s.endpoint, s.bucket, s.region, key)}, Key: key}, nil
}

// transient reports whether a failed PutObject may succeed on another try.
func transient(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	if failure, ok := aerr.(awserr.RequestFailure); ok && failure.StatusCode() >= 500 {
		return true
	}
	switch aerr.Code() {
	case request.ErrCodeRequestError, request.ErrCodeResponseTimeout,
		"RequestTimeout", "SlowDown", "Throttling", "InternalError", "ServiceUnavailable":
		return true
	}
	return false
}

// objectKey is <prefix><yyyy/mm/dd>/<uuid>-<base name>.
func objectKey(prefix, name string, at time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload.xlsx"
	}
	return prefix + at.UTC().Format("2006/01/02") + "/" + uuid.NewString() + "-" + base
}

func objectLink(endpoint, bucket, region, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if endpoint != "" {
		return endpoint + "/" + bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, escaped)
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}

// NameOnly records the file name without storing the content. It is used
// when no bucket is configured.
type NameOnly struct{}

// Upload returns the name with an empty link.
func (NameOnly) Upload(_ context.Context, name string, _ []byte) (Object, error) {
	return Object{SourceFile: shared.SourceFile{Name: name}}, nil
}

// Delete has nothing to remove.
func (NameOnly) Delete(context.Context, string) error {
	return nil
}
