package types

import "io"

// Decoder deserializes one object from r.
type Decoder[T any] interface {
	Decode(io.Reader) (T, error)
}

// Encoder serializes one object to w.
type Encoder[T any] interface {
	Encode(io.Writer, T) error
}

// CompressionAlgorithm identifies the stream compression applied to uploaded datasets
// and exported result batches.
type CompressionAlgorithm int

const (
	CompressNone CompressionAlgorithm = iota
	CompressGzip
	CompressSnappy
	CompressZstd
	CompressBrotli
	CompressLZ4
)

// String returns the canonical lowercase name of the algorithm.
func (c CompressionAlgorithm) String() string {
	switch c {
	case CompressGzip:
		return "gzip"
	case CompressSnappy:
		return "snappy"
	case CompressZstd:
		return "zstd"
	case CompressBrotli:
		return "brotli"
	case CompressLZ4:
		return "lz4"
	default:
		return "none"
	}
}
