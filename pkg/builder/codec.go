package builder

import (
	"io"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Option is the functional option type shared by every component.
type Option[T any] = types.Option[T]

type (
	ResultRecord          = codec.ResultRecord
	ClassificationReply   = types.ClassificationReply
	ClassificationRequest = types.ClassificationRequest
	ErrorKind             = types.ErrorKind
)

// NewJSONEncoder encodes values of T as JSON lines.
func NewJSONEncoder[T any]() *codec.JSONEncoder[T] {
	return codec.NewJSONEncoder[T]()
}

// NewResultRecord flattens res into a parquet row.
func NewResultRecord(correlationID, source string, res PredictionResult, at time.Time) ResultRecord {
	return codec.NewResultRecord(correlationID, source, res, at)
}

// WriteResultsParquet writes records as one parquet file.
func WriteResultsParquet(w io.Writer, records []ResultRecord, compression string) error {
	return codec.WriteResultsParquet(w, records, compression)
}

// KindOf classifies a pipeline error.
func KindOf(err error) ErrorKind {
	return types.KindOf(err)
}

func IsInput(err error) bool         { return types.IsInput(err) }
func IsNumerical(err error) bool     { return types.IsNumerical(err) }
func IsModelNotReady(err error) bool { return types.IsModelNotReady(err) }

// NewInputError marks err as caused by bad input.
func NewInputError(op string, err error) error {
	return types.NewInputError(op, err)
}
