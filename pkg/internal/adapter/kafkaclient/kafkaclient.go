// Package kafkaclient serves classification requests from a Kafka topic and publishes
// the replies, keyed by correlation id, to a reply topic.
package kafkaclient

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
)

// HeaderCorrelationID carries the correlation id on requests and replies.
const HeaderCorrelationID = "correlation_id"

// MessageReader is the consumer side of *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter is the producer side of *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ MessageReader = (*kafka.Reader)(nil)
	_ MessageWriter = (*kafka.Writer)(nil)
)

// Classifier runs one request. *session.Session satisfies it.
type Classifier interface {
	ClassifyModel(ctx context.Context, modelID string, c types.Chromatogram) (types.PredictionResult, error)
}

// ResultHook observes every successful classification, e.g. to export it.
type ResultHook func(ctx context.Context, req types.ClassificationRequest, res types.PredictionResult)

// Service consumes requests, classifies them one at a time and produces replies.
type Service struct {
	componentMetadata types.ComponentMetadata
	classifier        Classifier
	reader            MessageReader
	writer            MessageWriter
	replyTopic        string
	hooks             []ResultHook
	busyBackoff       time.Duration
	busyMaxBackoff    time.Duration

	isServing int32

	loggers     []types.Logger
	loggersLock sync.Mutex
}

// NewService wires a classifier between reader and writer.
func NewService(classifier Classifier, reader MessageReader, writer MessageWriter, options ...types.Option[*Service]) *Service {
	s := &Service{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "KAFKA_CLIENT",
		},
		classifier:     classifier,
		reader:         reader,
		writer:         writer,
		busyBackoff:    50 * time.Millisecond,
		busyMaxBackoff: 2 * time.Second,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// GetComponentMetadata returns the service identity.
func (s *Service) GetComponentMetadata() types.ComponentMetadata {
	return s.componentMetadata
}

// Close closes the reader and writer.
func (s *Service) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
