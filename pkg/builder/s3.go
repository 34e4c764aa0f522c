package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/joeydtaylor/scalogram/pkg/internal/adapter/s3client"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// S3Store reads artifacts and writes results in one bucket.
type S3Store = s3client.Client

// S3Exporter batches classification results into parquet objects.
type S3Exporter = s3client.Exporter

// S3Config describes how to reach S3 (or an emulator such as LocalStack or MinIO).
type S3Config struct {
	Region       string
	Bucket       string
	Endpoint     string // "" for AWS
	AccessKey    string // static credentials; empty uses the default chain
	SecretKey    string
	SessionToken string

	// RoleARN, when set, is assumed through STS on top of the credentials above.
	RoleARN         string
	RoleSessionName string
	RoleDuration    time.Duration
	ExternalID      string

	ForcePathStyle bool
}

// S3ConfigFromEnv reads SCALOGRAM_S3_* variables.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Region:          EnvOr("SCALOGRAM_S3_REGION", "us-east-1"),
		Bucket:          EnvOr("SCALOGRAM_S3_BUCKET", ""),
		Endpoint:        EnvOr("SCALOGRAM_S3_ENDPOINT", ""),
		AccessKey:       EnvOr("SCALOGRAM_S3_ACCESS_KEY", ""),
		SecretKey:       EnvOr("SCALOGRAM_S3_SECRET_KEY", ""),
		SessionToken:    EnvOr("SCALOGRAM_S3_SESSION_TOKEN", ""),
		RoleARN:         EnvOr("SCALOGRAM_S3_ROLE_ARN", ""),
		RoleSessionName: EnvOr("SCALOGRAM_S3_ROLE_SESSION", "scalogram"),
		RoleDuration:    time.Duration(EnvIntOr("SCALOGRAM_S3_ROLE_DURATION_SECONDS", 3600)) * time.Second,
		ExternalID:      EnvOr("SCALOGRAM_S3_EXTERNAL_ID", ""),
		ForcePathStyle:  EnvBoolOr("SCALOGRAM_S3_FORCE_PATH_STYLE", false),
	}
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func (c S3Config) validate() error {
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3: access key and secret key must be set together")
	}
	return nil
}

// sharedResolver maps both S3 and STS to the same endpoint override.
func sharedResolver(endpoint string) aws.EndpointResolverWithOptionsFunc {
	return aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
		switch service {
		case s3.ServiceID, sts.ServiceID:
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
		default:
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
	})
}

// NewS3Client builds an *s3.Client from cfg: static keys or the default chain, then an
// optional STS role assumption.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var loaders []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loaders = append(loaders, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}
	if cfg.Endpoint != "" {
		loaders = append(loaders, config.WithEndpointResolverWithOptions(sharedResolver(cfg.Endpoint)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}

	if cfg.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.RoleSessionName != "" {
				o.RoleSessionName = cfg.RoleSessionName
			}
			if cfg.RoleDuration > 0 {
				o.Duration = cfg.RoleDuration
			}
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = cfg.ForcePathStyle }), nil
}

// NewS3Store connects to S3 and wraps the client for cfg.Bucket.
func NewS3Store(ctx context.Context, cfg S3Config, options ...types.Option[*S3Store]) (*S3Store, error) {
	cli, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3client.NewClient(cli, cfg.Bucket, options...), nil
}

// NewS3Exporter batches results into store.
func NewS3Exporter(store *S3Store, compression string, maxRecords int, maxAge time.Duration) *S3Exporter {
	return s3client.NewExporter(store, compression, maxRecords, maxAge)
}

func S3WithLogger(l ...types.Logger) types.Option[*S3Store] {
	return s3client.WithLogger(l...)
}

func S3WithPrefixTemplate(tmpl string) types.Option[*S3Store] {
	return s3client.WithPrefixTemplate(tmpl)
}

func S3WithFileNameTemplate(tmpl string) types.Option[*S3Store] {
	return s3client.WithFileNameTemplate(tmpl)
}

func S3WithSSE(mode, kmsKey string) types.Option[*S3Store] {
	return s3client.WithSSE(mode, kmsKey)
}

func S3WithClientSideEncryption(keyHex string, required bool) types.Option[*S3Store] {
	return s3client.WithClientSideEncryption(keyHex, required)
}
