// Package storage provides the S3-backed single-object store that holds the
// watermark document.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/sony/gobreaker/v2"

	"reportpoller/internal/types"
)

// S3ObjectClient abstracts the S3 object operations for testability.
// Production code uses the *s3.Client from aws-sdk-go-v2.
type S3ObjectClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3BlobStore reads and writes one S3 object. A missing object reads as "".
// All calls go through a circuit breaker so a failing bucket surfaces as a
// fast upstream_unavailable error instead of a stalled invocation.
type S3BlobStore struct {
	client  S3ObjectClient
	bucket  string
	key     string
	breaker *gobreaker.CircuitBreaker[string]
}

func newBreaker(name string) *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewS3BlobStore creates a store for s3://bucket/key.
func NewS3BlobStore(client S3ObjectClient, bucket, key string) *S3BlobStore {
	return &S3BlobStore{
		client:  client,
		bucket:  bucket,
		key:     key,
		breaker: newBreaker("s3-state:" + bucket),
	}
}

// Get returns the object body, or "" when the object does not exist.
func (s *S3BlobStore) Get(ctx context.Context) (string, error) {
	body, err := s.breaker.Execute(func() (string, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			if isNotFound(err) {
				return "", nil
			}
			return "", err
		}
		defer out.Body.Close()

		b, err := io.ReadAll(out.Body)
		if err != nil {
			return "", fmt.Errorf("reading object body: %w", err)
		}
		return string(b), nil
	})
	if err != nil {
		return "", s.mapError("get", err)
	}
	if body == "" {
		types.LoggerFromContext(ctx).DebugContext(ctx, "state object not found or empty",
			"bucket", s.bucket,
			"key", s.key,
		)
	}
	return body, nil
}

// Post overwrites the object with body.
func (s *S3BlobStore) Post(ctx context.Context, body string) error {
	_, err := s.breaker.Execute(func() (string, error) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key),
			Body:        strings.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		return "", err
	})
	if err != nil {
		return s.mapError("put", err)
	}
	return nil
}

func (s *S3BlobStore) mapError(op string, err error) *types.AppError {
	details := map[string]any{
		"bucket": s.bucket,
		"key":    s.key,
		"op":     op,
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; state store unavailable",
			err,
		).WithDetails(details)
	}
	return types.NewAppError(
		types.ErrCodeInternalStateStore,
		fmt.Sprintf("state object %s failed", op),
		err,
	).WithDetails(details)
}

// isNotFound reports whether err means the object does not exist. S3 returns
// the typed NoSuchKey on GetObject, but S3-compatible endpoints sometimes
// surface a bare 404 or a generic NotFound code instead.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
