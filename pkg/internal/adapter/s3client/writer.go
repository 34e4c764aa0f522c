package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3api "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 100 * time.Millisecond
	defaultMaxBackoff  = 3 * time.Second
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := defaultBaseBackoff << (attempt - 1)
	if d > defaultMaxBackoff {
		d = defaultMaxBackoff
	}
	return time.Duration(rng.Int63n(int64(d) + 1))
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "throttl"),
		strings.Contains(msg, "slowdown"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "tempor"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "internalerror"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "500"):
		return true
	default:
		return false
	}
}

// PutObject uploads payload under key in the default bucket, applying the configured
// encryption, and retries transient failures.
func (c *Client) PutObject(ctx context.Context, key string, payload []byte, contentType, contentEncoding string) error {
	if c.configErr != nil {
		return c.configErr
	}
	if c.cli == nil || c.bucket == "" {
		return fmt.Errorf("s3client: PutObject requires client and bucket")
	}

	payload, contentType, contentEncoding, meta, err := c.applyCSE(payload, contentType, contentEncoding)
	if err != nil {
		return err
	}

	put := &s3api.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	}
	if contentEncoding != "" {
		put.ContentEncoding = aws.String(contentEncoding)
	}
	if len(meta) > 0 {
		put.Metadata = meta
	}
	switch strings.ToLower(c.sseMode) {
	case "aes256":
		put.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	case "aws:kms":
		put.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		if c.kmsKey != "" {
			put.SSEKMSKeyId = aws.String(c.kmsKey)
		}
	}

	dur, err := c.putWithRetry(ctx, put, key)
	if err != nil {
		c.NotifyLoggers(types.ErrorLevel, "PutObject failed",
			"component", c.componentMetadata, "event", "PutObject", "result", "FAILURE",
			"key", key, "error", err)
		return err
	}
	c.NotifyLoggers(types.InfoLevel, "PutObject",
		"component", c.componentMetadata, "event", "PutObject", "result", "SUCCESS",
		"key", key, "bytes", len(payload), "duration", dur)
	return nil
}

func (c *Client) putWithRetry(ctx context.Context, put *s3api.PutObjectInput, key string) (time.Duration, error) {
	rs, ok := put.Body.(io.ReadSeeker)
	if !ok {
		return 0, fmt.Errorf("putWithRetry requires io.ReadSeeker body")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}

		start := time.Now()
		_, err := c.cli.PutObject(ctx, put)
		if err == nil {
			return time.Since(start), nil
		}

		lastErr = err
		c.NotifyLoggers(types.WarnLevel, "PutObject retry",
			"component", c.componentMetadata,
			"event", "PutObject",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"key", key,
			"error", err,
		)
		if !isRetryable(err) || attempt == c.maxAttempts || ctx.Err() != nil {
			return 0, err
		}

		select {
		case <-time.After(backoffDuration(attempt)):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, lastErr
}

// PutResults writes one parquet batch of classification results and returns its key.
func (c *Client) PutResults(ctx context.Context, records []codec.ResultRecord, compression string, now time.Time) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	payload, err := codec.EncodeResultsParquet(records, compression)
	if err != nil {
		return "", err
	}
	key := c.RenderKey(now) + ".parquet"
	if err := c.PutObject(ctx, key, payload, "application/parquet", ""); err != nil {
		return "", err
	}
	return key, nil
}

// PutScalogramPNG stores a rendered scalogram image and returns its key.
func (c *Client) PutScalogramPNG(ctx context.Context, png []byte, now time.Time) (string, error) {
	key := c.RenderKey(now) + ".png"
	if err := c.PutObject(ctx, key, png, "image/png", ""); err != nil {
		return "", err
	}
	return key, nil
}

// RenderKey expands the prefix and file name templates for now.
func (c *Client) RenderKey(now time.Time) string {
	ts := now.UTC()
	repl := map[string]string{
		"{yyyy}": ts.Format("2006"),
		"{MM}":   ts.Format("01"),
		"{dd}":   ts.Format("02"),
		"{HH}":   ts.Format("15"),
		"{mm}":   ts.Format("04"),
		"{ts}":   fmt.Sprintf("%d", ts.UnixMilli()),
		"{ulid}": utils.GenerateUniqueHash(),
	}
	prefix := c.prefixTemplate
	name := c.fileNameTmpl
	for k, v := range repl {
		prefix = strings.ReplaceAll(prefix, k, v)
		name = strings.ReplaceAll(name, k, v)
	}
	return path.Join(prefix, name)
}
