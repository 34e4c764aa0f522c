package s3client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3api "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 location %q: %w", location, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid s3 location %q: scheme must be s3", location)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q: bucket and key are required", location)
	}
	return bucket, key, nil
}

// GetObject downloads bucket/key; an empty bucket means the client's default. Encrypted
// objects are decrypted before being returned.
func (c *Client) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	if bucket == "" {
		bucket = c.bucket
	}
	if c.cli == nil || bucket == "" {
		return nil, fmt.Errorf("s3client: GetObject requires client and bucket")
	}

	out, err := c.cli.GetObject(ctx, &s3api.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		c.NotifyLoggers(types.ErrorLevel, "GetObject failed",
			"component", c.componentMetadata, "event", "GetObject", "result", "FAILURE",
			"bucket", bucket, "key", key, "error", err)
		return nil, err
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3client: read %s/%s: %w", bucket, key, err)
	}
	payload, err = c.decryptIfNeeded(out.Metadata, payload)
	if err != nil {
		return nil, err
	}

	c.NotifyLoggers(types.DebugLevel, "GetObject",
		"component", c.componentMetadata, "event", "GetObject", "result", "SUCCESS",
		"bucket", bucket, "key", key, "bytes", len(payload))
	return io.NopCloser(bytes.NewReader(payload)), nil
}

// Open resolves an s3:// location.
func (c *Client) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseURL(location)
	if err != nil {
		return nil, err
	}
	return c.GetObject(ctx, bucket, key)
}

// ListKeys returns keys under prefix in the default bucket, optionally filtered by suffix.
func (c *Client) ListKeys(ctx context.Context, prefix string, suffixes ...string) ([]string, error) {
	if c.cli == nil || c.bucket == "" {
		return nil, fmt.Errorf("s3client: ListKeys requires client and bucket")
	}

	var keys []string
	var cont *string
	for {
		out, err := c.cli.ListObjectsV2(ctx, &s3api.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: cont,
			MaxKeys:           aws.Int32(1000),
		})
		if err != nil {
			return nil, err
		}
		for _, o := range out.Contents {
			k := aws.ToString(o.Key)
			if len(suffixes) == 0 || hasSuffixFold(k, suffixes) {
				keys = append(keys, k)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		cont = out.NextContinuationToken
	}
	return keys, nil
}

func hasSuffixFold(s string, suffixes []string) bool {
	s = strings.ToLower(s)
	for _, suf := range suffixes {
		if strings.HasSuffix(s, strings.ToLower(suf)) {
			return true
		}
	}
	return false
}
