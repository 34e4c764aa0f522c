package s3client

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	cseModeAESGCM          = "aes-gcm"
	cseMetaKey             = "x-scalogram-cse"
	cseMetaContentType     = "x-scalogram-content-type"
	cseMetaContentEncoding = "x-scalogram-content-encoding"
)

func normalizeMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func parseAESGCMKeyHex(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if keyHex == "" {
		return nil, fmt.Errorf("client-side encryption key is required")
	}
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid client-side key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("client-side key must be 32 bytes (AES-256)")
	}
	return raw, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(ciphertext) < ns+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return gcm.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
}

// applyCSE encrypts payload when client-side encryption is configured and moves the
// original content headers into object metadata.
func (c *Client) applyCSE(payload []byte, contentType, contentEncoding string) ([]byte, string, string, map[string]string, error) {
	if c.cseMode == "" {
		return payload, contentType, contentEncoding, nil, nil
	}
	enc, err := encryptAESGCM(payload, c.cseKey)
	if err != nil {
		return nil, "", "", nil, err
	}
	meta := map[string]string{cseMetaKey: cseModeAESGCM}
	if contentType != "" {
		meta[cseMetaContentType] = contentType
	}
	if contentEncoding != "" {
		meta[cseMetaContentEncoding] = contentEncoding
	}
	return enc, "application/octet-stream", "", meta, nil
}

func (c *Client) decryptIfNeeded(meta map[string]string, payload []byte) ([]byte, error) {
	norm := normalizeMeta(meta)
	mode := strings.ToLower(strings.TrimSpace(norm[cseMetaKey]))
	if mode == "" {
		if c.requireCSE {
			return nil, fmt.Errorf("s3client: object missing client-side encryption metadata")
		}
		return payload, nil
	}
	if len(c.cseKey) == 0 {
		return nil, fmt.Errorf("s3client: client-side encryption key missing for encrypted object")
	}
	if mode != cseModeAESGCM {
		return nil, fmt.Errorf("unsupported client-side encryption mode: %s", mode)
	}
	return decryptAESGCM(payload, c.cseKey)
}
