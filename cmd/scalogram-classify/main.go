// scalogram-classify classifies LC-MS chromatogram CSV files from the command line.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/builder"
)

var (
	modelID     = flag.String("model", builder.EnvOr("SCALOGRAM_MODEL", builder.DefaultModelID), "Model profile id")
	profiles    = flag.String("profiles", builder.EnvOr("SCALOGRAM_PROFILES", ""), "JSON file with extra model profiles")
	classifierL = flag.String("classifier", builder.EnvOr("SCALOGRAM_CLASSIFIER", ""), "Override classifier artifact location (file, http(s), s3://)")
	regressorL  = flag.String("regressor", builder.EnvOr("SCALOGRAM_REGRESSOR", ""), "Override regressor artifact location")
	fitFile     = flag.String("fit", builder.EnvOr("SCALOGRAM_FIT", ""), "Derive the model's mean/std from this reference CSV instead of the profile values")
	policyName  = flag.String("policy", builder.EnvOr("SCALOGRAM_POLICY", ""), "Decision policy override: v1 or v2")
	outFile     = flag.String("out", builder.EnvOr("SCALOGRAM_OUT", ""), "Write JSON results here instead of stdout")
	pngFile     = flag.String("png", builder.EnvOr("SCALOGRAM_PNG", ""), "Write the scalogram PNG here (index suffix for multiple inputs)")
	pngScale    = flag.Int("png-scale", builder.EnvIntOr("SCALOGRAM_PNG_SCALE", 2), "Pixels per scalogram cell")
	parquetFile = flag.String("parquet", builder.EnvOr("SCALOGRAM_PARQUET", ""), "Write results as a parquet file")
	logLevel    = flag.String("log-level", builder.EnvOr("SCALOGRAM_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error")
	logConsole  = flag.Bool("log-console", builder.EnvBoolOr("SCALOGRAM_LOG_CONSOLE", true), "Human-readable logs on stderr instead of JSON on stdout")
	s3Prefix    = flag.String("s3-prefix", builder.EnvOr("SCALOGRAM_S3_INPUT_PREFIX", ""), "Also classify every CSV under this prefix of SCALOGRAM_S3_BUCKET")
	s3PNG       = flag.Bool("s3-png", builder.EnvBoolOr("SCALOGRAM_S3_PNG", false), "Upload each scalogram PNG to SCALOGRAM_S3_BUCKET")
	timeout     = flag.Duration("timeout", 2*time.Minute, "Overall deadline")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] file.csv [file2.csv.gz ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Classify chromatogram CSV files with a scalogram model\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -classifier model.json sample.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -model kejibeling_sirih -classifier s3://lab/models/ks.json -png out.png run.csv.zst\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -classifier model.json -s3-prefix runs/2024/ s3://lab/extra/run7.csv.gz\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() == 0 && *s3Prefix == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one CSV file or -s3-prefix required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(files []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	logger := builder.NewLogger(
		builder.LoggerWithLevel(*logLevel),
		builder.LoggerWithService("scalogram-classify"),
		builder.LoggerWithConsole(*logConsole),
	)
	defer logger.Flush()

	registry := builder.NewRegistry()
	if *profiles != "" {
		f, err := os.Open(*profiles)
		if err != nil {
			return fmt.Errorf("open profiles: %w", err)
		}
		n, err := registry.LoadProfiles(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
		logger.Info("Profiles loaded", "count", n, "path", *profiles)
	}
	if err := overrideProfile(registry, *modelID); err != nil {
		return err
	}

	if *fitFile != "" {
		if err := fitProfile(registry, *modelID, *fitFile); err != nil {
			return err
		}
	}

	loaderOpts := []builder.Option[*builder.ModelLoader]{
		builder.LoaderWithLogger(logger),
		builder.LoaderWithRemoteCircuitBreaker(ctx, 3, 30*time.Second),
	}
	var store *builder.S3Store
	if s3cfg := builder.S3ConfigFromEnv(); s3cfg.Enabled() {
		var err error
		store, err = builder.NewS3Store(ctx, s3cfg,
			builder.S3WithLogger(logger),
			builder.S3WithPrefixTemplate(builder.EnvOr("SCALOGRAM_S3_PREFIX", "scalograms/{yyyy}/{MM}/{dd}/")),
		)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		loaderOpts = append(loaderOpts, builder.LoaderWithS3(store))
	}

	if *s3Prefix != "" || *s3PNG || hasS3Input(files) {
		if store == nil {
			return fmt.Errorf("s3 inputs and -s3-png need SCALOGRAM_S3_BUCKET")
		}
	}
	if *s3Prefix != "" {
		keys, err := store.ListKeys(ctx, *s3Prefix, csvSuffixes...)
		if err != nil {
			return fmt.Errorf("list s3 inputs: %w", err)
		}
		for _, k := range keys {
			files = append(files, "s3://"+store.Bucket()+"/"+k)
		}
		logger.Info("S3 inputs listed", "prefix", *s3Prefix, "count", len(keys))
	}
	if len(files) == 0 {
		return fmt.Errorf("no inputs under s3 prefix %q", *s3Prefix)
	}

	s, err := builder.NewSession(ctx,
		builder.SessionWithLogger(logger),
		builder.SessionWithRegistry(registry),
		builder.SessionWithLoader(builder.NewModelLoader(loaderOpts...)),
		builder.SessionWithInitialModel(*modelID),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.WaitReady(ctx); err != nil {
		if builder.IsModelNotReady(err) {
			return fmt.Errorf("%w (point -classifier at a loadable artifact)", err)
		}
		return err
	}

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := builder.NewJSONEncoder[fileResult]()

	var records []builder.ResultRecord
	var failed int
	for i, path := range files {
		res, err := classifyFile(ctx, s, store, path)
		if err != nil {
			failed++
			_ = enc.Encode(out, fileResult{File: path, Error: err.Error(), Kind: builder.KindOf(err).String()})
			continue
		}
		if err := enc.Encode(out, fileResult{File: path, Result: &res}); err != nil {
			return err
		}
		records = append(records, builder.NewResultRecord(fmt.Sprintf("%s#%d", filepath.Base(path), i), path, res, time.Now()))

		if *pngFile != "" {
			if err := writePNG(s, pngPath(*pngFile, i, len(files))); err != nil {
				return err
			}
		}
		if *s3PNG {
			var buf bytes.Buffer
			if err := s.RenderScalogram(&buf, *pngScale); err != nil {
				return err
			}
			key, err := store.PutScalogramPNG(ctx, buf.Bytes(), time.Now())
			if err != nil {
				return fmt.Errorf("upload scalogram for %s: %w", path, err)
			}
			logger.Info("Scalogram uploaded", "file", path, "key", key)
		}
	}

	if *parquetFile != "" && len(records) > 0 {
		f, err := os.Create(*parquetFile)
		if err != nil {
			return err
		}
		if err := builder.WriteResultsParquet(f, records, "snappy"); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

var csvSuffixes = []string{".csv", ".csv.gz", ".csv.zst", ".csv.sz", ".csv.br", ".csv.lz4"}

type fileResult struct {
	File   string                    `json:"file"`
	Result *builder.PredictionResult `json:"result,omitempty"`
	Error  string                    `json:"error,omitempty"`
	Kind   string                    `json:"kind,omitempty"`
}

func hasS3Input(files []string) bool {
	for _, f := range files {
		if strings.HasPrefix(f, "s3://") {
			return true
		}
	}
	return false
}

func classifyFile(ctx context.Context, s *builder.Session, store *builder.S3Store, path string) (builder.PredictionResult, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if strings.HasPrefix(path, "s3://") {
		f, err = store.Open(ctx, path)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return builder.PredictionResult{}, builder.NewInputError("classify.open", err)
	}
	defer f.Close()
	if _, err := s.Upload(ctx, f, filepath.Base(path)); err != nil {
		return builder.PredictionResult{}, err
	}
	return s.ClassifyUploaded(ctx)
}

// overrideProfile re-registers id with the artifact locations and policy given on the command line.
func overrideProfile(registry *builder.Registry, id string) error {
	if *classifierL == "" && *regressorL == "" && *policyName == "" {
		return nil
	}
	p, err := registry.Get(id)
	if err != nil {
		return err
	}
	if *classifierL != "" {
		p.ClassifierLocation = *classifierL
	}
	if *regressorL != "" {
		p.RegressorLocation = *regressorL
	}
	if *policyName != "" {
		policy, ok := builder.PolicyByName(*policyName)
		if !ok {
			return fmt.Errorf("unknown policy %q", *policyName)
		}
		p.Policy = policy
	}
	return registry.Register(p)
}

// fitProfile replaces the normalization constants of id with those of a reference recording.
func fitProfile(registry *builder.Registry, id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open reference: %w", err)
	}
	defer f.Close()
	c, err := builder.DecodeChromatogram(f, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("reference %s: %w", path, err)
	}
	mean, std, err := builder.FitNormalization(c)
	if err != nil {
		return fmt.Errorf("reference %s: %w", path, err)
	}
	p, err := registry.Get(id)
	if err != nil {
		return err
	}
	p.Mean, p.Std = mean, std
	return registry.Register(p)
}

func writePNG(s *builder.Session, path string) error {
	var buf bytes.Buffer
	if err := s.RenderScalogram(&buf, *pngScale); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func pngPath(base string, i, n int) string {
	if n == 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), i, ext)
}
