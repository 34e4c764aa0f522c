package builder

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joeydtaylor/scalogram/pkg/internal/adapter/kafkaclient"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// KafkaService consumes classification requests and produces replies.
type KafkaService = kafkaclient.Service

// KafkaResultHook observes successful Kafka classifications.
type KafkaResultHook = kafkaclient.ResultHook

// NewKafkaService wires classifier between a request reader and a reply writer.
func NewKafkaService(classifier kafkaclient.Classifier, reader kafkaclient.MessageReader, writer kafkaclient.MessageWriter, options ...types.Option[*KafkaService]) *KafkaService {
	return kafkaclient.NewService(classifier, reader, writer, options...)
}

func KafkaServiceWithReplyTopic(topic string) types.Option[*KafkaService] {
	return kafkaclient.WithReplyTopic(topic)
}

func KafkaServiceWithResultHook(h KafkaResultHook) types.Option[*KafkaService] {
	return kafkaclient.WithResultHook(h)
}

func KafkaServiceWithBusyBackoff(initial, max time.Duration) types.Option[*KafkaService] {
	return kafkaclient.WithBusyBackoff(initial, max)
}

func KafkaServiceWithLogger(l ...types.Logger) types.Option[*KafkaService] {
	return kafkaclient.WithLogger(l...)
}

// KafkaGoWriterOption mutates a kafka-go writer before use.
type KafkaGoWriterOption func(*kafka.Writer)

// NewKafkaGoWriter returns a hash-balanced writer with acks=all.
func NewKafkaGoWriter(brokers []string, topic string, opts ...KafkaGoWriterOption) *kafka.Writer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		BatchBytes:             1 << 20,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func KafkaGoWriterWithBatchTimeout(d time.Duration) KafkaGoWriterOption {
	return func(w *kafka.Writer) { w.BatchTimeout = d }
}

func KafkaGoWriterWithRequiredAcks(mode string) KafkaGoWriterOption {
	return func(w *kafka.Writer) {
		switch strings.ToLower(mode) {
		case "0", "none":
			w.RequiredAcks = kafka.RequireNone
		case "1", "one", "leader":
			w.RequiredAcks = kafka.RequireOne
		default:
			w.RequiredAcks = kafka.RequireAll
		}
	}
}

// KafkaGoWriterWithCompression sets the batch codec: gzip, snappy, lz4 or zstd.
func KafkaGoWriterWithCompression(name string) KafkaGoWriterOption {
	return func(w *kafka.Writer) {
		switch strings.ToLower(name) {
		case "gzip":
			w.Compression = kafka.Gzip
		case "snappy":
			w.Compression = kafka.Snappy
		case "lz4":
			w.Compression = kafka.Lz4
		case "zstd":
			w.Compression = kafka.Zstd
		}
	}
}

func KafkaGoWriterWithTLS(cfg *tls.Config) KafkaGoWriterOption {
	return func(w *kafka.Writer) {
		w.Transport = &kafka.Transport{TLS: cfg}
	}
}

// KafkaGoReaderOption mutates a kafka-go reader config before the reader is built.
type KafkaGoReaderOption func(*kafka.ReaderConfig)

// NewKafkaGoReader returns a consumer-group reader with manual commits.
func NewKafkaGoReader(brokers []string, group string, topics []string, opts ...KafkaGoReaderOption) *kafka.Reader {
	cfg := kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       64 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	}
	if len(topics) == 1 {
		cfg.Topic = topics[0]
	} else {
		cfg.GroupTopics = topics
	}
	for _, o := range opts {
		o(&cfg)
	}
	return kafka.NewReader(cfg)
}

func KafkaGoReaderWithLatestStart() KafkaGoReaderOption {
	return func(c *kafka.ReaderConfig) { c.StartOffset = kafka.LastOffset }
}

func KafkaGoReaderWithMaxWait(d time.Duration) KafkaGoReaderOption {
	return func(c *kafka.ReaderConfig) { c.MaxWait = d }
}

func KafkaGoReaderWithMaxBytes(n int) KafkaGoReaderOption {
	return func(c *kafka.ReaderConfig) { c.MaxBytes = n }
}

func KafkaGoReaderWithTLS(cfg *tls.Config) KafkaGoReaderOption {
	return func(c *kafka.ReaderConfig) {
		c.Dialer = &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true, TLS: cfg}
	}
}

// TLSFromCAFilesStrict loads the first existing CA file among candidates.
func TLSFromCAFilesStrict(candidates []string, serverName string) (*tls.Config, error) {
	var picked string
	for _, p := range candidates {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			picked = p
			break
		}
	}
	if picked == "" {
		return nil, fmt.Errorf("no CA file found in candidates: %v", candidates)
	}
	pem, err := os.ReadFile(filepath.Clean(picked))
	if err != nil {
		return nil, fmt.Errorf("read CA: %w", err)
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("invalid CA PEM at %s", picked)
	}
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    cp,
	}
	if serverName != "" {
		cfg.ServerName = serverName
	}
	return cfg, nil
}
