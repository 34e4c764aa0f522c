package kafkaclient

import (
	"strings"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithReplyTopic sets the topic on each reply. Leave empty when the writer has a topic.
func WithReplyTopic(topic string) types.Option[*Service] {
	return func(s *Service) {
		s.replyTopic = strings.TrimSpace(topic)
	}
}

// WithResultHook registers a callback for successful classifications.
func WithResultHook(h ResultHook) types.Option[*Service] {
	return func(s *Service) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithBusyBackoff sets the first and the longest wait between retries of a request the
// classifier rejected as busy.
func WithBusyBackoff(initial, max time.Duration) types.Option[*Service] {
	return func(s *Service) {
		if initial > 0 {
			s.busyBackoff = initial
		}
		if max >= s.busyBackoff {
			s.busyMaxBackoff = max
		}
	}
}

// WithLogger attaches loggers.
func WithLogger(loggers ...types.Logger) types.Option[*Service] {
	return func(s *Service) {
		s.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Service] {
	return func(s *Service) {
		s.componentMetadata.Name = name
		if id != "" {
			s.componentMetadata.ID = id
		}
	}
}
