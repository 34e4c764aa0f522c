package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	parquet "github.com/parquet-go/parquet-go"
)

// ResultRecord is the flat, columnar form of one classification, used for parquet export.
type ResultRecord struct {
	CorrelationID  string    `parquet:"correlation_id" json:"correlation_id"`
	Source         string    `parquet:"source" json:"source"`
	ModelID        string    `parquet:"model_id" json:"model_id"`
	Policy         string    `parquet:"policy" json:"policy"`
	Predicted      int32     `parquet:"predicted" json:"predicted"`
	PredictedLabel string    `parquet:"predicted_label" json:"predicted_label"`
	Labels         []string  `parquet:"labels" json:"labels"`
	Probabilities  []float64 `parquet:"probabilities" json:"probabilities"`
	Concentration  string    `parquet:"concentration" json:"concentration,omitempty"`
	Regression     *float64  `parquet:"regression,optional" json:"regression,omitempty"`
	DurationMicros int64     `parquet:"duration_us" json:"duration_us"`
	ClassifiedAt   int64     `parquet:"classified_at_ms" json:"classified_at_ms"`
}

// NewResultRecord flattens res.
func NewResultRecord(correlationID, source string, res types.PredictionResult, at time.Time) ResultRecord {
	rec := ResultRecord{
		CorrelationID:  correlationID,
		Source:         source,
		ModelID:        res.ModelID,
		Policy:         res.Policy,
		Predicted:      int32(res.Predicted),
		PredictedLabel: res.PredictedLabel,
		Labels:         make([]string, len(res.Classes)),
		Probabilities:  res.Probabilities(),
		Concentration:  res.Concentration,
		DurationMicros: res.Duration.Microseconds(),
		ClassifiedAt:   at.UnixMilli(),
	}
	for i, c := range res.Classes {
		rec.Labels[i] = c.Label
	}
	if res.Regression != nil {
		v := *res.Regression
		rec.Regression = &v
	}
	return rec
}

// ParquetCompression maps a codec name to a parquet writer option. Snappy is the default.
func ParquetCompression(name string) (parquet.WriterOption, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "gzip", "gz":
		return parquet.Compression(&parquet.Gzip), nil
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, fmt.Errorf("codec: unsupported parquet compression %q", name)
	}
}

// WriteResultsParquet writes records to w as one parquet file.
func WriteResultsParquet(w io.Writer, records []ResultRecord, compression string) error {
	opt, err := ParquetCompression(compression)
	if err != nil {
		return err
	}
	pw := parquet.NewGenericWriter[ResultRecord](w, opt)
	if _, err := pw.Write(records); err != nil {
		return err
	}
	return pw.Close()
}

// EncodeResultsParquet returns records as an in-memory parquet file.
func EncodeResultsParquet(records []ResultRecord, compression string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteResultsParquet(&buf, records, compression); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadResultsParquet reads every record of a parquet file.
func ReadResultsParquet(ra io.ReaderAt) ([]ResultRecord, error) {
	gr := parquet.NewGenericReader[ResultRecord](ra)
	defer gr.Close()

	out := make([]ResultRecord, 0, 64)
	for {
		batch := make([]ResultRecord, 64)
		n, err := gr.Read(batch)
		if n > 0 {
			out = append(out, batch[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
