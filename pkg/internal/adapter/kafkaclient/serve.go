package kafkaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Serve consumes until ctx is cancelled. Each message is committed once its reply has been
// written; a message whose reply cannot be written is left uncommitted and Serve returns.
func (s *Service) Serve(ctx context.Context) error {
	if s.reader == nil || s.writer == nil || s.classifier == nil {
		return fmt.Errorf("kafkaclient: Serve requires reader, writer and classifier")
	}
	if !atomic.CompareAndSwapInt32(&s.isServing, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&s.isServing, 0)

	s.NotifyLoggers(types.InfoLevel, "Kafka consumer started",
		"component", s.componentMetadata, "event", "ConsumerStart", "result", "SUCCESS", "reply_topic", s.replyTopic)
	defer s.NotifyLoggers(types.InfoLevel, "Kafka consumer stopped",
		"component", s.componentMetadata, "event", "ConsumerStop", "result", "SUCCESS")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			s.NotifyLoggers(types.WarnLevel, "FetchMessage warning",
				"component", s.componentMetadata, "event", "Fetch", "result", "FAILURE", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := s.Handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Handle classifies one message, writes its reply and commits it. A busy classifier is
// retried with backoff; if ctx ends first the message is left uncommitted.
func (s *Service) Handle(ctx context.Context, msg kafka.Message) error {
	req, decodeErr := decodeRequest(msg)
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	var reply types.ClassificationReply
	if decodeErr != nil {
		reply = types.NewClassificationReply(req.CorrelationID, types.PredictionResult{}, types.NewInputError("kafkaclient.decode", decodeErr))
	} else {
		res, err := s.classify(ctx, req)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		reply = types.NewClassificationReply(req.CorrelationID, res, err)
		if err == nil {
			for _, hook := range s.hooks {
				hook(ctx, req, res)
			}
		}
	}

	if reply.Error != "" {
		s.NotifyLoggers(types.WarnLevel, "Request failed",
			"component", s.componentMetadata, "event", "Classify", "result", "FAILURE",
			"correlation_id", req.CorrelationID, "kind", reply.Kind, "error", reply.Error)
	}

	if err := s.writeReply(ctx, reply); err != nil {
		s.NotifyLoggers(types.ErrorLevel, "Reply write failed",
			"component", s.componentMetadata, "event", "Reply", "result", "FAILURE",
			"correlation_id", req.CorrelationID, "error", err)
		return err
	}

	if err := s.reader.CommitMessages(ctx, msg); err != nil {
		s.NotifyLoggers(types.ErrorLevel, "Kafka commit failed",
			"component", s.componentMetadata, "event", "Commit", "result", "FAILURE",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return err
	}

	s.NotifyLoggers(types.DebugLevel, "Request handled",
		"component", s.componentMetadata, "event", "Handle", "result", "SUCCESS",
		"correlation_id", req.CorrelationID, "offset", msg.Offset)
	return nil
}

func (s *Service) classify(ctx context.Context, req types.ClassificationRequest) (types.PredictionResult, error) {
	delay := s.busyBackoff
	for {
		res, err := s.classifier.ClassifyModel(ctx, req.ModelID, req.Chromatogram())
		if types.KindOf(err) != types.KindBusy {
			return res, err
		}
		s.NotifyLoggers(types.DebugLevel, "Classifier busy",
			"component", s.componentMetadata, "event", "Classify", "result", "RETRY",
			"correlation_id", req.CorrelationID, "delay", delay)
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.busyMaxBackoff {
			delay = s.busyMaxBackoff
		}
	}
}

func decodeRequest(msg kafka.Message) (types.ClassificationRequest, error) {
	req, err := codec.NewJSONDecoder[types.ClassificationRequest]().Decode(bytes.NewReader(msg.Value))
	if req.CorrelationID == "" {
		req.CorrelationID = headerValue(msg, HeaderCorrelationID)
	}
	if req.CorrelationID == "" && len(msg.Key) > 0 {
		req.CorrelationID = string(msg.Key)
	}
	if err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func (s *Service) writeReply(ctx context.Context, reply types.ClassificationReply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	out := kafka.Message{
		Topic: s.replyTopic,
		Key:   []byte(reply.CorrelationID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderCorrelationID, Value: []byte(reply.CorrelationID)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	return s.writer.WriteMessages(ctx, out)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
