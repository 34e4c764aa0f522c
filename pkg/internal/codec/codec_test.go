package codec_test

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

const sampleCSV = `Retention Time,Intensity
0.01,1200.5
0.02,1300

0.03,n/a
# exported by instrument
0.04
0.05, 1.5e3 counts
`

func TestChromatogramDecoder_LenientRows(t *testing.T) {
	chrom, err := codec.NewChromatogramDecoder().Decode(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if chrom.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d: %v", chrom.Len(), chrom.RetentionTime)
	}
	if chrom.RetentionTime[0] != 0.01 || chrom.Intensity[0] != 1200.5 {
		t.Fatalf("unexpected first row %v %v", chrom.RetentionTime[0], chrom.Intensity[0])
	}
	if chrom.RetentionTime[2] != 0.03 || !math.IsNaN(chrom.Intensity[2]) {
		t.Fatalf("non-numeric intensity should be kept as NaN, got %v", chrom.Intensity[2])
	}
	if !math.IsNaN(chrom.Intensity[3]) {
		t.Fatalf("missing intensity should be NaN, got %v", chrom.Intensity[3])
	}
	if chrom.Intensity[4] != 1500 {
		t.Fatalf("expected numeric prefix 1500, got %v", chrom.Intensity[4])
	}
	if err := chrom.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestChromatogramDecoder_SniffsDelimiter(t *testing.T) {
	for name, body := range map[string]string{
		"tab":       "rt\tintensity\n1\t10\n2\t20\n",
		"semicolon": "1;10\n2;20\n",
		"pipe":      "\n\n1|10\n2|20\n",
	} {
		chrom, err := codec.NewChromatogramDecoder().Decode(strings.NewReader(body))
		if err != nil {
			t.Fatalf("%s: Decode error: %v", name, err)
		}
		if chrom.Len() != 2 || chrom.Intensity[1] != 20 {
			t.Fatalf("%s: unexpected result %+v", name, chrom)
		}
	}
}

func TestChromatogramDecoder_Errors(t *testing.T) {
	_, err := codec.NewChromatogramDecoder().Decode(strings.NewReader("time,intensity\nfoo,bar\n"))
	if !errors.Is(err, types.ErrEmptyDataset) || !types.IsInput(err) {
		t.Fatalf("expected input ErrEmptyDataset, got %v", err)
	}

	_, err = codec.NewChromatogramDecoder().Decode(strings.NewReader("1,\"unterminated\n2,3\n"))
	if !errors.Is(err, types.ErrMalformedCSV) || !types.IsInput(err) {
		t.Fatalf("expected input ErrMalformedCSV, got %v", err)
	}

	_, err = codec.NewChromatogramDecoder().Decode(strings.NewReader(""))
	if !errors.Is(err, types.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset for empty input, got %v", err)
	}
}

func TestParseFloatPrefix(t *testing.T) {
	cases := map[string]float64{
		"12":        12,
		" 12.5 s":   12.5,
		".5":        0.5,
		"-3e2":      -300,
		"1e":        1,
		"Infinity":  math.Inf(1),
		"-Infinity": math.Inf(-1),
		"1e999":     math.Inf(1),
	}
	for in, want := range cases {
		if got := codec.ParseFloatPrefix(in); got != want {
			t.Fatalf("ParseFloatPrefix(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "NaN", "-", "."} {
		if got := codec.ParseFloatPrefix(in); !math.IsNaN(got) {
			t.Fatalf("ParseFloatPrefix(%q) = %v, want NaN", in, got)
		}
	}
}

func TestCompression_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("0.01,1200.5\n", 200))
	for _, alg := range []types.CompressionAlgorithm{
		types.CompressNone, types.CompressGzip, types.CompressSnappy,
		types.CompressZstd, types.CompressBrotli, types.CompressLZ4,
	} {
		packed, err := codec.CompressBytes(payload, alg)
		if err != nil {
			t.Fatalf("%s: compress error: %v", alg, err)
		}
		unpacked, err := codec.DecompressBytes(packed, alg)
		if err != nil {
			t.Fatalf("%s: decompress error: %v", alg, err)
		}
		if !bytes.Equal(unpacked, payload) {
			t.Fatalf("%s: payload mismatch", alg)
		}
	}
}

func TestCompressedUploadDecodes(t *testing.T) {
	packed, err := codec.CompressBytes([]byte(sampleCSV), types.CompressZstd)
	if err != nil {
		t.Fatalf("compress error: %v", err)
	}
	alg := codec.AlgorithmFromName("run-01.csv.zst")
	if alg != types.CompressZstd {
		t.Fatalf("expected zstd, got %s", alg)
	}
	r, err := codec.NewDecompressingReader(bytes.NewReader(packed), alg)
	if err != nil {
		t.Fatalf("reader error: %v", err)
	}
	defer r.Close()
	chrom, err := codec.NewChromatogramDecoder().Decode(r)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if chrom.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d", chrom.Len())
	}
}

func TestAlgorithmNames(t *testing.T) {
	if codec.AlgorithmFromName("a.csv") != types.CompressNone {
		t.Fatalf("plain csv should not be compressed")
	}
	if codec.TrimCompressionExt("run.csv.gz") != "run.csv" || codec.TrimCompressionExt("run.csv") != "run.csv" {
		t.Fatalf("unexpected trim result")
	}
	if alg, err := codec.ParseAlgorithm("br"); err != nil || alg != types.CompressBrotli {
		t.Fatalf("expected brotli, got %v %v", alg, err)
	}
	if _, err := codec.ParseAlgorithm("rar"); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
}

func TestResultsParquet_RoundTrip(t *testing.T) {
	reg := 12.3457
	res := types.PredictionResult{
		ModelID:        "sidaguri_duha",
		Policy:         "v2",
		Predicted:      0,
		PredictedLabel: "Campuran 5%",
		Concentration:  "12.3457%",
		Regression:     &reg,
		Duration:       1500 * time.Microsecond,
		Classes: []types.ClassProbability{
			{Index: 0, Label: "Campuran 5%", Probability: 0.75, IsTarget: true},
			{Index: 1, Label: "Duha", Probability: 0.25},
		},
	}
	at := time.UnixMilli(1_700_000_000_000)
	records := []codec.ResultRecord{
		codec.NewResultRecord("c-1", "a.csv", res, at),
		codec.NewResultRecord("c-2", "b.csv", types.PredictionResult{ModelID: "kejibeling_sirih", Policy: "v1"}, at),
	}

	data, err := codec.EncodeResultsParquet(records, "zstd")
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	back, err := codec.ReadResultsParquet(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 records, got %d", len(back))
	}
	first := back[0]
	if first.CorrelationID != "c-1" || first.Concentration != "12.3457%" || first.DurationMicros != 1500 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.Regression == nil || *first.Regression != reg {
		t.Fatalf("expected regression %v, got %v", reg, first.Regression)
	}
	if len(first.Probabilities) != 2 || first.Probabilities[1] != 0.25 || first.Labels[1] != "Duha" {
		t.Fatalf("unexpected repeated columns %+v", first)
	}
	if back[1].Regression != nil {
		t.Fatalf("expected null regression, got %v", *back[1].Regression)
	}

	if _, err := codec.ParquetCompression("lzma"); err == nil {
		t.Fatalf("expected error for unsupported compression")
	}
}

func TestJSONEncoder_Indent(t *testing.T) {
	var buf bytes.Buffer
	enc := &codec.JSONEncoder[types.PredictionResult]{Indent: "  "}
	if err := enc.Encode(&buf, types.PredictionResult{ModelID: "m"}); err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"model_id\": \"m\"") {
		t.Fatalf("expected indented output, got %s", buf.String())
	}
	dec := codec.NewJSONDecoder[types.PredictionResult]()
	back, err := dec.Decode(io.Reader(&buf))
	if err != nil || back.ModelID != "m" {
		t.Fatalf("decode: %v %+v", err, back)
	}
}
