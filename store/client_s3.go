package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config selects an S3 (or S3-compatible) bucket for session records.
// Credentials come from the AWS default chain.
type S3Config struct {
	Bucket       string // required
	Prefix       string
	Region       string // empty uses the default chain
	Endpoint     string // MinIO, R2 and similar
	UsePathStyle bool
}

// ParseS3Path splits "bucket/prefix/..." into bucket and prefix. Leading
// "s3://" and surrounding slashes are ignored.
func ParseS3Path(p string) (bucket, prefix string) {
	p = strings.Trim(strings.TrimPrefix(p, "s3://"), "/")
	bucket, prefix, _ = strings.Cut(p, "/")
	return bucket, strings.Trim(prefix, "/")
}

func (c S3Config) validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	if strings.Contains(c.Bucket, "/") {
		return fmt.Errorf("S3 bucket %q must not contain '/'", c.Bucket)
	}
	return nil
}

func (c S3Config) loadOptions() []func(*config.LoadOptions) error {
	if c.Region == "" {
		return nil
	}
	return []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
}

// clientOptions applies endpoint and addressing overrides.
func (c S3Config) clientOptions() []func(*s3.Options) {
	if c.Endpoint == "" && !c.UsePathStyle {
		return nil
	}
	endpoint, pathStyle := c.Endpoint, c.UsePathStyle
	return []func(*s3.Options){func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = o.UsePathStyle || pathStyle
	}}
}

// NewS3Factory builds a Lode store factory on one shared S3 client.
func NewS3Factory(ctx context.Context, cfg S3Config) (lode.StoreFactory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, cfg.loadOptions()...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("load AWS config: %w", err), cfg.Bucket)
	}
	client := s3.NewFromConfig(awsConfig, cfg.clientOptions()...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
	}, nil
}
