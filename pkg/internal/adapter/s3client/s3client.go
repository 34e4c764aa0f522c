// Package s3client stores and fetches scalogram artifacts in S3: uploaded chromatograms,
// model artifacts, parquet result batches and rendered scalogram images.
package s3client

import (
	"context"
	"sync"

	s3api "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// API is the subset of *s3.Client the adapter calls.
type API interface {
	GetObject(ctx context.Context, in *s3api.GetObjectInput, optFns ...func(*s3api.Options)) (*s3api.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3api.PutObjectInput, optFns ...func(*s3api.Options)) (*s3api.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3api.ListObjectsV2Input, optFns ...func(*s3api.Options)) (*s3api.ListObjectsV2Output, error)
}

var _ API = (*s3api.Client)(nil)

// Client reads and writes objects in one default bucket.
type Client struct {
	componentMetadata types.ComponentMetadata

	loggers     []types.Logger
	loggersLock sync.Mutex

	cli    API
	bucket string

	// writer naming/layout
	prefixTemplate string // e.g. "results/{yyyy}/{MM}/{dd}/"
	fileNameTmpl   string // basename without extension

	// SSE
	sseMode string // "" | "AES256" | "aws:kms"
	kmsKey  string

	// client-side encryption
	cseMode    string
	cseKey     []byte
	requireCSE bool
	configErr  error

	maxAttempts int
}

// NewClient wraps cli for bucket.
func NewClient(cli API, bucket string, options ...types.Option[*Client]) *Client {
	c := &Client{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "S3_CLIENT",
		},
		cli:            cli,
		bucket:         bucket,
		prefixTemplate: "scalogram/results/{yyyy}/{MM}/{dd}/",
		fileNameTmpl:   "{ts}-{ulid}",
		maxAttempts:    defaultMaxAttempts,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Bucket returns the default bucket.
func (c *Client) Bucket() string {
	return c.bucket
}

// GetComponentMetadata returns the client identity.
func (c *Client) GetComponentMetadata() types.ComponentMetadata {
	return c.componentMetadata
}
