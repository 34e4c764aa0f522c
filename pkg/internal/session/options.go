package session

import (
	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/meter"
	"github.com/joeydtaylor/scalogram/pkg/internal/modelstore"
	"github.com/joeydtaylor/scalogram/pkg/internal/scalogram"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// WithRegistry replaces the built-in profile table.
func WithRegistry(r *modelstore.Registry) types.Option[*Session] {
	return func(s *Session) {
		s.registry = r
	}
}

// WithLoader replaces the default model loader.
func WithLoader(l ModelLoader) types.Option[*Session] {
	return func(s *Session) {
		s.loader = l
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *scalogram.Extractor) types.Option[*Session] {
	return func(s *Session) {
		s.extractor = e
	}
}

// WithMeter replaces the default meter.
func WithMeter(m *meter.Meter) types.Option[*Session] {
	return func(s *Session) {
		s.meter = m
	}
}

// WithDecoder replaces the CSV decoder, e.g. to force a delimiter.
func WithDecoder(d *codec.ChromatogramDecoder) types.Option[*Session] {
	return func(s *Session) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithInitialModel selects id when the session is created.
func WithInitialModel(id string) types.Option[*Session] {
	return func(s *Session) {
		s.initialModel = id
	}
}

// WithLogger attaches loggers; components the session creates share them.
func WithLogger(loggers ...types.Logger) types.Option[*Session] {
	return func(s *Session) {
		s.ConnectLogger(loggers...)
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Session] {
	return func(s *Session) {
		s.componentMetadata.Name = name
		if id != "" {
			s.componentMetadata.ID = id
		}
	}
}
