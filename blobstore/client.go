// Package blobstore implements the Thorium content-addressed blob store
// (C3): file and result artefact bytes, keyed by object id and looked up
// through mds.s3_ids's content-hash mapping.
package blobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/thorium-platform/thorium/errs"
)

// sharedHTTPClient pools connections across every upload/download so a
// burst of agent result uploads doesn't exhaust file descriptors.
var sharedHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}

// maxConcurrentTransfers bounds upload/download parallelism per client.
const maxConcurrentTransfers = 96

// Client wraps one S3-compatible bucket.
type Client struct {
	s3       *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// Config configures a Client. Endpoint may point at AWS S3 or any
// S3-compatible service (MinIO, LakeFS, Hetzner Object Storage, ...).
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// NewClient builds an S3 client with retry and connection-pooling settings.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithHTTPClient(sharedHTTPClient),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = 5
			})
		}),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "load blob store aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Client{
		s3:       client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) { u.Concurrency = maxConcurrentTransfers }),
		bucket:   cfg.Bucket,
	}, nil
}

// Put uploads content under objectID, the key mds stores against the
// content's sha256 in s3_ids.
func (c *Client) Put(ctx context.Context, objectID string, body io.Reader) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectID),
		Body:   body,
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, "upload blob", err)
	}
	return nil
}

// Get downloads content by object id. Callers must close the returned
// reader.
func (c *Client) Get(ctx context.Context, objectID string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "download blob", err)
	}
	return out.Body, nil
}

// Exists reports whether an object id is present, used before a
// duplicate-content upload to skip re-transfer.
func (c *Client) Exists(ctx context.Context, objectID string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errs.Wrap(errs.Unavailable, "check blob existence", err)
	}
	return true, nil
}

// Delete removes an object by id.
func (c *Client) Delete(ctx context.Context, objectID string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, "delete blob", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	}
	return false
}
