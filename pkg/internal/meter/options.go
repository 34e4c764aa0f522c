package meter

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// WithLogger attaches loggers used by Report.
func WithLogger(loggers ...types.Logger) types.Option[*Meter] {
	return func(m *Meter) {
		m.ConnectLogger(loggers...)
	}
}

// WithHostSampler replaces the gopsutil sampler.
func WithHostSampler(s HostSampler) types.Option[*Meter] {
	return func(m *Meter) {
		if s != nil {
			m.sampler = s
		}
	}
}

// WithComponentMetadata sets the name and id reported in logs.
func WithComponentMetadata(name string, id string) types.Option[*Meter] {
	return func(m *Meter) {
		m.mu.Lock()
		m.componentMetadata.Name = name
		if id != "" {
			m.componentMetadata.ID = id
		}
		m.mu.Unlock()
	}
}
