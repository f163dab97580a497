package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of the S3 client the store calls.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	api      S3API
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
	urlTTL   time.Duration
	now      func() time.Time
}

// NewS3Store loads the default AWS credential chain. A non-empty endpoint
// (MinIO, LocalStack) switches to path-style addressing.
func NewS3Store(ctx context.Context, region, bucket, endpoint string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, region, bucket, endpoint), nil
}

func newS3Store(client *s3.Client, region, bucket, endpoint string) *S3Store {
	s := NewS3StoreFromAPI(client, region, bucket, endpoint)
	s.presign = s3.NewPresignClient(client)
	return s
}

func NewS3StoreFromAPI(api S3API, region, bucket, endpoint string) *S3Store {
	return &S3Store{api: api, bucket: bucket, region: region, endpoint: strings.TrimRight(endpoint, "/"), urlTTL: time.Hour, now: time.Now}
}


func (s *S3Store) Upload(ctx context.Context, f File, folder string) (string, error) {
	now := s.now()
	body, contentType, key := prepare(f, folder, now)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
		Metadata: map[string]string{
			"originalName": url.PathEscape(f.Filename),
			"uploadedAt":   now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

// PresignGet returns a time-limited GET URL for key.
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.presign == nil {
		return "", fmt.Errorf("presigning not available")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// URL presigns a GET for an object returned by Upload. The bucket is
// private, so the plain object URL is not fetchable.
func (s *S3Store) URL(ctx context.Context, ref string) (string, error) {
	return s.PresignGet(ctx, s.KeyFromURL(ref), s.urlTTL)
}

// Delete accepts either an object key or a URL returned by Upload.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key := s.KeyFromURL(ref)
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// KeyFromURL recovers the object key from a URL returned by Upload.
func (s *S3Store) KeyFromURL(u string) string {
	prefix := strings.TrimSuffix(s.objectURL(""), "/") + "/"
	return strings.TrimPrefix(u, prefix)
}

func (s *S3Store) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
