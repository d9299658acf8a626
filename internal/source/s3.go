package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"wadlib/internal/catalog"
	"wadlib/internal/model"
)

// S3Config holds connection settings for an S3 (or S3-compatible) mirror.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // custom endpoint, e.g. MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// S3Source reads archives stored as <prefix><filename> in a bucket.
type S3Source struct {
	name   string
	bucket string
	prefix string
	client *s3.Client
}

// NewS3Source loads the default AWS configuration, overridden by cfg.
func NewS3Source(ctx context.Context, name string, cfg S3Config) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Source{
		name:   name,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		client: client,
	}, nil
}

func (s *S3Source) Name() string { return s.name }

func (s *S3Source) key(entry catalog.Entry) string {
	return s.prefix + entry.Filename
}

// Open fetches the object with GetObject, passing a Range when resuming.
func (s *S3Source) Open(ctx context.Context, entry catalog.Entry, offset int64) (*Transfer, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(entry)),
	}
	if offset > 0 {
		input.Range = aws.String(rangeHeader(offset))
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("s3 get %s: %w", s.key(entry), model.ErrNotFound)
		}
		var respErr *awshttp.ResponseError
		if offset > 0 && errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusRequestedRangeNotSatisfiable {
			return s.Open(ctx, entry, 0)
		}
		return nil, fmt.Errorf("s3 get %s: %w", s.key(entry), err)
	}

	t := &Transfer{Body: out.Body}
	if out.ContentRange != nil {
		start, total, err := parseContentRange(*out.ContentRange)
		if err != nil {
			out.Body.Close()
			return nil, fmt.Errorf("s3 get %s: %w", s.key(entry), err)
		}
		t.Offset, t.Total = start, total
		return t, nil
	}
	if out.ContentLength != nil {
		t.Total = *out.ContentLength
	}
	return t, nil
}

// Compile-time check that S3Source implements Source
var _ Source = (*S3Source)(nil)
