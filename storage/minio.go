package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/sliceflow/pipeline/concurrency"
)

// executorSize caps concurrent backend SDK calls per gateway instance.
const executorSize = 4

// publicReadPolicy grants anonymous GET on the bucket's objects. Applied
// best-effort; presigned URLs work without it.
const publicReadPolicy = `{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Principal": {"AWS": "*"},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}
	]
}`

// Gateway is the object storage gateway backed by a MinIO-compatible
// backend. One instance is shared across jobs; construct it at bootstrap
// and inject it where needed.
type Gateway struct {
	client     *minio.Client
	bucket     string
	publicHost string
	exec       *concurrency.Executor
	logger     logrus.FieldLogger
}

// SelfTestReport summarizes a connectivity self-test.
type SelfTestReport struct {
	Connected    bool   `json:"connected"`
	BucketCount  int    `json:"bucket_count"`
	BucketExists bool   `json:"bucket_exists"`
	HasPolicy    bool   `json:"has_policy"`
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	Error        string `json:"error,omitempty"`
}

// NewGateway creates a gateway for the configured backend. No network
// calls happen here; use EnsureBucket or SelfTest to verify reachability.
func NewGateway(cfg *Config, logger logrus.FieldLogger) (*Gateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create client: %w", err)
	}

	return &Gateway{
		client:     client,
		bucket:     cfg.Bucket,
		publicHost: cfg.PublicHost,
		exec:       concurrency.NewExecutor(executorSize),
		logger:     logger,
	}, nil
}

// Bucket returns the configured bucket name.
func (g *Gateway) Bucket() string {
	return g.bucket
}

// PutFile uploads a local file under key and returns the key. Uploading
// the same content to the same key is idempotent and safe to retry.
func (g *Gateway) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	err := g.exec.Execute(ctx, func() error {
		_, err := g.client.FPutObject(ctx, g.bucket, key, localPath, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return "", &Error{Op: "put", Key: key, Err: err}
	}
	return key, nil
}

// PutBytes uploads an in-memory buffer under key and returns the key.
func (g *Gateway) PutBytes(ctx context.Context, data []byte, key, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	err := g.exec.Execute(ctx, func() error {
		_, err := g.client.PutObject(ctx, g.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return "", &Error{Op: "put", Key: key, Err: err}
	}
	return key, nil
}

// SignedURL returns a presigned GET URL for key, valid for ttl. When a
// public host override is configured and differs from the backend host,
// only the URL's host component is rewritten; the signed query string is
// never touched.
func (g *Gateway) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var raw string
	err := g.exec.Execute(ctx, func() error {
		u, err := g.client.PresignedGetObject(ctx, g.bucket, key, ttl, nil)
		if err != nil {
			return err
		}
		raw = u.String()
		return nil
	})
	if err != nil {
		return "", &Error{Op: "signed_url", Key: key, Err: err}
	}

	rewritten, err := rewriteHost(raw, g.publicHost)
	if err != nil {
		return "", &Error{Op: "signed_url", Key: key, Err: err}
	}
	return rewritten, nil
}

// Remove deletes the object at key. Removing a missing object is not an
// error.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	err := g.exec.Execute(ctx, func() error {
		return g.client.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return &Error{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// Exists reports whether an object is present at key. A missing object
// is a negative result, not an error; only transport or auth failures
// are returned as errors.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := g.exec.Execute(ctx, func() error {
		_, err := g.client.StatObject(ctx, g.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, &Error{Op: "stat", Key: key, Err: err}
	}
	return found, nil
}

// EnsureBucket creates the bucket if absent and applies the public-read
// policy. Policy application is best-effort: a failure there is logged
// and does not fail provisioning, since presigned access does not depend
// on it.
func (g *Gateway) EnsureBucket(ctx context.Context) error {
	err := g.exec.Execute(ctx, func() error {
		exists, err := g.client.BucketExists(ctx, g.bucket)
		if err != nil {
			return err
		}
		if !exists {
			if err := g.client.MakeBucket(ctx, g.bucket, minio.MakeBucketOptions{}); err != nil {
				return err
			}
			g.logger.WithField("bucket", g.bucket).Info("bucket created")
		}

		policy := fmt.Sprintf(publicReadPolicy, g.bucket)
		if err := g.client.SetBucketPolicy(ctx, g.bucket, policy); err != nil {
			g.logger.WithField("bucket", g.bucket).WithError(err).Warn("failed to apply bucket policy")
		}
		return nil
	})
	if err != nil {
		return &Error{Op: "ensure_bucket", Key: g.bucket, Err: err}
	}
	return nil
}

// SelfTest probes the backend connection, the bucket, and its policy.
func (g *Gateway) SelfTest(ctx context.Context) *SelfTestReport {
	report := &SelfTestReport{
		Endpoint: g.client.EndpointURL().Host,
		Bucket:   g.bucket,
	}

	err := g.exec.Execute(ctx, func() error {
		buckets, err := g.client.ListBuckets(ctx)
		if err != nil {
			return err
		}
		report.BucketCount = len(buckets)

		exists, err := g.client.BucketExists(ctx, g.bucket)
		if err != nil {
			return err
		}
		report.BucketExists = exists

		if policy, err := g.client.GetBucketPolicy(ctx, g.bucket); err == nil {
			report.HasPolicy = policy != ""
		}
		return nil
	})
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Connected = true
	return report
}
