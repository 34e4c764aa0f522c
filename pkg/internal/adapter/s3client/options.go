package s3client

import (
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithLogger attaches loggers.
func WithLogger(loggers ...types.Logger) types.Option[*Client] {
	return func(c *Client) {
		c.ConnectLogger(loggers...)
	}
}

// WithPrefixTemplate sets the key prefix for written objects. Supported placeholders:
// {yyyy} {MM} {dd} {HH} {mm} {ts} {ulid}.
func WithPrefixTemplate(tmpl string) types.Option[*Client] {
	return func(c *Client) {
		if tmpl != "" {
			c.prefixTemplate = tmpl
		}
	}
}

// WithFileNameTemplate sets the object basename; the extension is added by the writer.
func WithFileNameTemplate(tmpl string) types.Option[*Client] {
	return func(c *Client) {
		if tmpl != "" {
			c.fileNameTmpl = tmpl
		}
	}
}

// WithSSE enables server-side encryption: "AES256" or "aws:kms" with an optional key id.
func WithSSE(mode, kmsKey string) types.Option[*Client] {
	return func(c *Client) {
		c.sseMode, c.kmsKey = mode, kmsKey
	}
}

// WithClientSideEncryption encrypts payloads with AES-256-GCM before upload and decrypts
// tagged objects on read. keyHex is 64 hex characters.
func WithClientSideEncryption(keyHex string, required bool) types.Option[*Client] {
	return func(c *Client) {
		key, err := parseAESGCMKeyHex(keyHex)
		if err != nil {
			c.configErr = err
			return
		}
		c.cseMode = cseModeAESGCM
		c.cseKey = key
		c.requireCSE = required
	}
}

// WithMaxAttempts bounds PutObject retries.
func WithMaxAttempts(n int) types.Option[*Client] {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Client] {
	return func(c *Client) {
		c.componentMetadata.Name = name
		if id = strings.TrimSpace(id); id != "" {
			c.componentMetadata.ID = id
		}
	}
}
