// Package codec reads chromatogram uploads and writes classification results. Uploads
// may arrive compressed; results go out as JSON or parquet.
package codec

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

var floatPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// ChromatogramDecoder parses two-column retention-time/intensity CSV. Rows whose first
// column is not numeric (headers, notes) are skipped; a numeric first column with a
// missing or non-numeric second column is kept with a NaN intensity.
type ChromatogramDecoder struct {
	// Comma forces a delimiter. Zero sniffs one of , \t ; | from the first data line.
	Comma rune
	// Name is copied onto the decoded chromatogram.
	Name string
}

// NewChromatogramDecoder returns a decoder that sniffs the delimiter.
func NewChromatogramDecoder() *ChromatogramDecoder {
	return &ChromatogramDecoder{}
}

var _ types.Decoder[types.Chromatogram] = (*ChromatogramDecoder)(nil)

// Decode reads the whole of r. A malformed file is an input error wrapping
// types.ErrMalformedCSV; a file without a single numeric row wraps types.ErrEmptyDataset.
func (d *ChromatogramDecoder) Decode(r io.Reader) (types.Chromatogram, error) {
	br := bufio.NewReader(r)
	comma := d.Comma
	if comma == 0 {
		sniffed, err := sniffDelimiter(br)
		if err != nil {
			return types.Chromatogram{}, types.NewInputError("codec.csv", fmt.Errorf("%w: %v", types.ErrMalformedCSV, err))
		}
		comma = sniffed
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	out := types.Chromatogram{Name: d.Name}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Chromatogram{}, types.NewInputError("codec.csv", fmt.Errorf("%w: %v", types.ErrMalformedCSV, err))
		}
		if len(record) == 0 {
			continue
		}
		rt := ParseFloatPrefix(record[0])
		if math.IsNaN(rt) {
			continue
		}
		intensity := math.NaN()
		if len(record) > 1 {
			intensity = ParseFloatPrefix(record[1])
		}
		out.RetentionTime = append(out.RetentionTime, rt)
		out.Intensity = append(out.Intensity, intensity)
	}

	if len(out.RetentionTime) == 0 {
		return types.Chromatogram{}, types.NewInputError("codec.csv", types.ErrEmptyDataset)
	}
	return out, nil
}

// ParseFloatPrefix parses the longest numeric prefix of s after leading whitespace, so
// "12.5 s" is 12.5. Strings without a numeric prefix give NaN.
func ParseFloatPrefix(s string) float64 {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return math.NaN()
	}
	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// out-of-range exponents still come back as ±Inf or 0 alongside the error
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return v
		}
		return math.NaN()
	}
	return v
}

// sniffDelimiter picks the candidate that occurs most often on the first non-empty line
// without consuming it.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	for peek := 512; ; peek *= 2 {
		buf, err := br.Peek(peek)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return 0, err
		}
		line, complete := firstLine(buf)
		if complete || len(buf) < peek || errors.Is(err, bufio.ErrBufferFull) {
			return pickDelimiter(line), nil
		}
	}
}

func firstLine(buf []byte) ([]byte, bool) {
	for len(buf) > 0 {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return buf, false
		}
		if line := bytes.TrimSpace(buf[:i]); len(line) > 0 {
			return line, true
		}
		buf = buf[i+1:]
	}
	return nil, false
}

func pickDelimiter(line []byte) rune {
	best, bestCount := ',', 0
	for _, c := range []rune{',', '\t', ';', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
