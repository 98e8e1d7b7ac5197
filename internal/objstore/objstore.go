// Package objstore wraps the MinIO client for the S3-compatible store that
// holds the raw search export and the derived artifacts.
//
// Design goals:
//
//   - Credentials come from the environment only (OBJSTORE_ACCESS_KEY /
//     OBJSTORE_SECRET_KEY), never from job files.
//   - Fail fast: Open surfaces a missing object at call time instead of on
//     the first read.
//   - Keep the API narrow (Open, Put, EnsureBucket) so tests can fake it
//     behind the datasource and sink interfaces.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Environment variables holding the store credentials.
const (
	EnvAccessKey = "OBJSTORE_ACCESS_KEY"
	EnvSecretKey = "OBJSTORE_SECRET_KEY"
)

// Config configures the store client.
type Config struct {
	// Endpoint is the host:port of the S3-compatible endpoint, e.g. "minio:9000".
	Endpoint string

	// AccessKey and SecretKey authenticate the client. Usually populated
	// via CredentialsFromEnv.
	AccessKey string
	SecretKey string

	// Secure selects https transport.
	Secure bool
}

// CredentialsFromEnv reads the access and secret keys from the environment.
// Both must be present; a partial pair is an error so a typo in one variable
// cannot silently produce anonymous access.
func CredentialsFromEnv() (access, secret string, err error) {
	access = os.Getenv(EnvAccessKey)
	secret = os.Getenv(EnvSecretKey)
	if access == "" || secret == "" {
		return "", "", fmt.Errorf("objstore: %s and %s must both be set", EnvAccessKey, EnvSecretKey)
	}
	return access, secret, nil
}

// Client is a thin wrapper over the MinIO SDK client.
type Client struct {
	mc *minio.Client
}

// New constructs a Client from Config using static V4 credentials.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("objstore: endpoint is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: create client: %w", err)
	}
	return &Client{mc: mc}, nil
}

// Open returns a reader over the named object. The object is stat'ed up
// front so a missing key fails here rather than on the first Read.
func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objstore: get s3://%s/%s: %w", bucket, key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("objstore: stat s3://%s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// Put uploads data under the given key with the supplied content type and
// user metadata.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string, meta map[string]string) error {
	r := bytes.NewReader(data)
	_, err := c.mc.PutObject(ctx, bucket, key, r, int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("objstore: put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("objstore: bucket exists %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("objstore: make bucket %q: %w", bucket, err)
	}
	return nil
}

// Object adapts one stored object to the datasource.Source interface.
type Object struct {
	c      *Client
	bucket string
	key    string
}

// NewObject returns a source reading s3://bucket/key through c.
func NewObject(c *Client, bucket, key string) *Object {
	return &Object{c: c, bucket: bucket, key: key}
}

// Open implements datasource.Source.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.c.Open(ctx, o.bucket, o.key)
}
