// scalogram-serve runs a classification session behind HTTP and websocket endpoints and,
// when brokers are configured, a Kafka request/reply worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/builder"
)

var (
	addr       = flag.String("addr", builder.EnvOr("SCALOGRAM_ADDR", ":8080"), "HTTP listen address")
	modelID    = flag.String("model", builder.EnvOr("SCALOGRAM_MODEL", builder.DefaultModelID), "Model profile loaded at start")
	profiles   = flag.String("profiles", builder.EnvOr("SCALOGRAM_PROFILES", ""), "JSON file with extra model profiles")
	logLevel   = flag.String("log-level", builder.EnvOr("SCALOGRAM_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	meterEvery = flag.Duration("meter-interval", time.Duration(builder.EnvIntOr("SCALOGRAM_METER_INTERVAL_SECONDS", 60))*time.Second, "Host/meter report interval (0 disables)")
)

type kafkaConfig struct {
	Brokers      []string
	RequestTopic string
	ReplyTopic   string
	Group        string
	Compression  string
}

func kafkaConfigFromEnv() kafkaConfig {
	return kafkaConfig{
		Brokers:      builder.EnvListOr("SCALOGRAM_KAFKA_BROKERS", nil),
		RequestTopic: builder.EnvOr("SCALOGRAM_KAFKA_REQUEST_TOPIC", "scalogram.requests"),
		ReplyTopic:   builder.EnvOr("SCALOGRAM_KAFKA_REPLY_TOPIC", "scalogram.replies"),
		Group:        builder.EnvOr("SCALOGRAM_KAFKA_GROUP", "scalogram"),
		Compression:  builder.EnvOr("SCALOGRAM_KAFKA_COMPRESSION", "snappy"),
	}
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := builder.NewLogger(builder.LoggerWithLevel(*logLevel), builder.LoggerWithService("scalogram-serve"))
	defer logger.Flush()

	registry := builder.NewRegistry()
	if *profiles != "" {
		f, err := os.Open(*profiles)
		if err != nil {
			return fmt.Errorf("open profiles: %w", err)
		}
		_, err = registry.LoadProfiles(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
	}

	var store *builder.S3Store
	loaderOpts := []builder.Option[*builder.ModelLoader]{
		builder.LoaderWithLogger(logger),
		builder.LoaderWithRemoteTimeout(time.Duration(builder.EnvIntOr("SCALOGRAM_REMOTE_TIMEOUT_SECONDS", 30)) * time.Second),
		builder.LoaderWithRemoteCircuitBreaker(ctx,
			builder.EnvIntOr("SCALOGRAM_REMOTE_BREAKER_ERRORS", 5),
			time.Duration(builder.EnvIntOr("SCALOGRAM_REMOTE_BREAKER_SECONDS", 30))*time.Second),
	}
	if s3cfg := builder.S3ConfigFromEnv(); s3cfg.Enabled() {
		storeOpts := []builder.Option[*builder.S3Store]{
			builder.S3WithLogger(logger),
			builder.S3WithPrefixTemplate(builder.EnvOr("SCALOGRAM_S3_PREFIX", "scalogram/results/{yyyy}/{MM}/{dd}/")),
			builder.S3WithSSE(builder.EnvOr("SCALOGRAM_S3_SSE", ""), builder.EnvOr("SCALOGRAM_S3_KMS_KEY", "")),
		}
		if key := builder.EnvOr("SCALOGRAM_S3_CSE_KEY", ""); key != "" {
			storeOpts = append(storeOpts, builder.S3WithClientSideEncryption(key, builder.EnvBoolOr("SCALOGRAM_S3_CSE_REQUIRED", false)))
		}
		var err error
		store, err = builder.NewS3Store(ctx, s3cfg, storeOpts...)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		loaderOpts = append(loaderOpts, builder.LoaderWithS3(store))
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

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if *meterEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Meter().Monitor(ctx, *meterEvery)
		}()
	}

	var exporter *builder.S3Exporter
	if store != nil && builder.EnvBoolOr("SCALOGRAM_S3_EXPORT", true) {
		exporter = builder.NewS3Exporter(store,
			builder.EnvOr("SCALOGRAM_S3_PARQUET_COMPRESSION", "snappy"),
			builder.EnvIntOr("SCALOGRAM_S3_BATCH_RECORDS", 500),
			time.Duration(builder.EnvIntOr("SCALOGRAM_S3_BATCH_SECONDS", 60))*time.Second,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			exporter.Run(ctx, 5*time.Second)
		}()
	}

	if kc := kafkaConfigFromEnv(); len(kc.Brokers) > 0 {
		reader := builder.NewKafkaGoReader(kc.Brokers, kc.Group, []string{kc.RequestTopic})
		writer := builder.NewKafkaGoWriter(kc.Brokers, kc.ReplyTopic, builder.KafkaGoWriterWithCompression(kc.Compression))

		opts := []builder.Option[*builder.KafkaService]{
			builder.KafkaServiceWithLogger(logger),
			builder.KafkaServiceWithBusyBackoff(50*time.Millisecond,
				time.Duration(builder.EnvIntOr("SCALOGRAM_KAFKA_BUSY_MAX_MS", 2000))*time.Millisecond),
		}
		if exporter != nil {
			opts = append(opts, builder.KafkaServiceWithResultHook(func(ctx context.Context, req builder.ClassificationRequest, res builder.PredictionResult) {
				if err := exporter.Add(ctx, req.CorrelationID, "kafka", res); err != nil {
					logger.Warn("Result export deferred", "correlation_id", req.CorrelationID, "error", err)
				}
			}))
		}
		svc := builder.NewKafkaService(s, reader, writer, opts...)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer svc.Close()
			if err := svc.Serve(ctx); err != nil {
				errCh <- fmt.Errorf("kafka: %w", err)
			}
		}()
	}

	srv := builder.NewHTTPServer(s,
		builder.HTTPServerWithAddress(*addr),
		builder.HTTPServerWithLogger(logger),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errCh:
		stop()
	}
	wg.Wait()
	return firstErr
}
