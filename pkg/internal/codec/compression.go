package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// AlgorithmFromName infers the compression of a file or object key from its extension.
func AlgorithmFromName(name string) types.CompressionAlgorithm {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return types.CompressGzip
	case ".zst", ".zstd":
		return types.CompressZstd
	case ".sz", ".snappy":
		return types.CompressSnappy
	case ".br":
		return types.CompressBrotli
	case ".lz4":
		return types.CompressLZ4
	default:
		return types.CompressNone
	}
}

// ParseAlgorithm resolves an algorithm name as used in Content-Encoding headers and flags.
func ParseAlgorithm(name string) (types.CompressionAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "identity":
		return types.CompressNone, nil
	case "gzip", "gz", "deflate":
		return types.CompressGzip, nil
	case "zstd", "zst":
		return types.CompressZstd, nil
	case "snappy", "sz":
		return types.CompressSnappy, nil
	case "br", "brotli":
		return types.CompressBrotli, nil
	case "lz4":
		return types.CompressLZ4, nil
	default:
		return types.CompressNone, fmt.Errorf("codec: unknown compression %q", name)
	}
}

// TrimCompressionExt strips a recognised compression extension: "run.csv.zst" → "run.csv".
func TrimCompressionExt(name string) string {
	if AlgorithmFromName(name) == types.CompressNone {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// NewDecompressingReader wraps r so reads yield the decompressed stream. Close releases
// decoder resources; it does not close r.
func NewDecompressingReader(r io.Reader, algorithm types.CompressionAlgorithm) (io.ReadCloser, error) {
	switch algorithm {
	case types.CompressNone:
		return io.NopCloser(r), nil
	case types.CompressGzip:
		return gzip.NewReader(r)
	case types.CompressSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case types.CompressZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	case types.CompressBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case types.CompressLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("codec: unsupported compression algorithm %v", algorithm)
	}
}

// NewCompressingWriter wraps w; Close flushes the compressor but does not close w.
func NewCompressingWriter(w io.Writer, algorithm types.CompressionAlgorithm) (io.WriteCloser, error) {
	switch algorithm {
	case types.CompressNone:
		return nopWriteCloser{w}, nil
	case types.CompressGzip:
		return gzip.NewWriter(w), nil
	case types.CompressSnappy:
		return snappy.NewBufferedWriter(w), nil
	case types.CompressZstd:
		return zstd.NewWriter(w)
	case types.CompressBrotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case types.CompressLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("codec: unsupported compression algorithm %v", algorithm)
	}
}

// CompressBytes compresses data in one shot.
func CompressBytes(data []byte, algorithm types.CompressionAlgorithm) ([]byte, error) {
	if algorithm == types.CompressNone {
		return data, nil
	}
	var b bytes.Buffer
	w, err := NewCompressingWriter(&b, algorithm)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DecompressBytes reverses CompressBytes.
func DecompressBytes(data []byte, algorithm types.CompressionAlgorithm) ([]byte, error) {
	if algorithm == types.CompressNone {
		return data, nil
	}
	r, err := NewDecompressingReader(bytes.NewReader(data), algorithm)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
