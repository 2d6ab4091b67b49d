package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options selects the AWS profile, region and endpoint used to build a
// client. Empty fields fall back to the SDK's default resolution chain.
type S3Options struct {
	Profile  string
	Region   string
	Endpoint string
	// PathStyle forces path-style addressing, needed by most S3-compatible
	// stores (MinIO, localstack).
	PathStyle bool
}

// NewS3Client loads AWS shared configuration for opts and returns a client.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	}), nil
}

// ObjectGetter is the subset of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader serves resources from objects under a bucket prefix.
type S3Loader struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Loader returns a loader reading s3://bucket/prefix/<name>.
func NewS3Loader(client ObjectGetter, bucket, prefix string) *S3Loader {
	return &S3Loader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Open implements Loader.
func (l *S3Loader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	key := cleaned
	if l.prefix != "" {
		key = path.Join(l.prefix, cleaned)
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsS3NotFound(err) {
			return nil, notFound(name, nil)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", l.bucket, key, err)
	}
	return out.Body, nil
}

// IsS3NotFound reports whether err means the object does not exist.
func IsS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

var _ Loader = (*S3Loader)(nil)
