package codec

import (
	"encoding/json"
	"io"
)

// JSONDecoder decodes JSON documents into T.
type JSONDecoder[T any] struct{}

// JSONEncoder encodes T as JSON, optionally indented.
type JSONEncoder[T any] struct {
	Indent string
}

// NewJSONDecoder returns a decoder for T.
func NewJSONDecoder[T any]() *JSONDecoder[T] {
	return &JSONDecoder[T]{}
}

// NewJSONEncoder returns an encoder for T.
func NewJSONEncoder[T any]() *JSONEncoder[T] {
	return &JSONEncoder[T]{}
}

// Decode reads one JSON value from r.
func (d *JSONDecoder[T]) Decode(r io.Reader) (T, error) {
	var t T
	err := json.NewDecoder(r).Decode(&t)
	return t, err
}

// DecodeSlice reads a JSON array of T from r.
func (d *JSONDecoder[T]) DecodeSlice(r io.Reader) ([]T, error) {
	var slice []T
	err := json.NewDecoder(r).Decode(&slice)
	return slice, err
}

// Encode writes elem to w followed by a newline.
func (e *JSONEncoder[T]) Encode(w io.Writer, elem T) error {
	return e.newEncoder(w).Encode(elem)
}

// EncodeSlice writes elems to w as one JSON array.
func (e *JSONEncoder[T]) EncodeSlice(w io.Writer, elems []T) error {
	return e.newEncoder(w).Encode(elems)
}

func (e *JSONEncoder[T]) newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	return enc
}
