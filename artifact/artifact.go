// Package artifact archives the built application jar to S3 so a
// release remains downloadable independently of the image registry.
// The stage is optional and only wired up when a bucket is configured.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/elorm116/java-cicd-demo/fs"
)

// jarContentType is set on every archived jar.
const jarContentType = "application/java-archive"

var (
	// ErrInvalidInput indicates missing or malformed archive parameters.
	ErrInvalidInput = errors.New("invalid archive input")

	// ErrUploadFailed indicates the S3 upload did not complete.
	ErrUploadFailed = errors.New("artifact upload failed")
)

// PutObjectAPI is the slice of the S3 client the archiver needs.
// Tests substitute a mock.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Result describes a completed upload.
type Result struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

// Archiver uploads build artifacts to one bucket.
type Archiver struct {
	client PutObjectAPI
	fsys   fs.Filesystem
	bucket string
	prefix string
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithPrefix puts every key under the given prefix.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		a.prefix = strings.Trim(prefix, "/")
	}
}

// New creates an Archiver over an existing S3 client.
func New(client PutObjectAPI, fsys fs.Filesystem, bucket string, opts ...Option) (*Archiver, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is required", ErrInvalidInput)
	}
	if fsys == nil {
		return nil, fmt.Errorf("%w: filesystem is required", ErrInvalidInput)
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidInput)
	}
	a := &Archiver{client: client, fsys: fsys, bucket: bucket}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewFromConfig creates an Archiver using the default AWS credential
// chain. An empty region defers to the SDK's own resolution.
func NewFromConfig(ctx context.Context, fsys fs.Filesystem, bucket, region string, opts ...Option) (*Archiver, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), fsys, bucket, opts...)
}

// Archive uploads the artifact at localPath under
// <prefix>/<name>-<version>.jar and returns the stored object's
// coordinates.
func (a *Archiver) Archive(ctx context.Context, localPath, name, version string) (*Result, error) {
	if strings.TrimSpace(localPath) == "" {
		return nil, fmt.Errorf("%w: artifact path is required", ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("%w: name and version are required", ErrInvalidInput)
	}

	data, err := a.fsys.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", localPath, err)
	}

	key := a.key(name, version)
	out, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(jarContentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"version": version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %w", ErrUploadFailed, a.bucket, key, err)
	}

	return &Result{
		Bucket: a.bucket,
		Key:    key,
		ETag:   strings.Trim(aws.ToString(out.ETag), `"`),
		Size:   int64(len(data)),
	}, nil
}

func (a *Archiver) key(name, version string) string {
	return path.Join(a.prefix, fmt.Sprintf("%s-%s.jar", name, version))
}
