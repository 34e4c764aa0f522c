package scalogram

import "github.com/joeydtaylor/scalogram/pkg/internal/types"

// ConnectLogger attaches loggers to the extractor.
func (e *Extractor) ConnectLogger(loggers ...types.Logger) {
	e.configLock.Lock()
	for _, l := range loggers {
		if l != nil {
			e.loggers = append(e.loggers, l)
		}
	}
	e.configLock.Unlock()
}

// SetComponentMetadata updates the extractor name and id.
func (e *Extractor) SetComponentMetadata(name string, id string) {
	e.configLock.Lock()
	e.componentMetadata.Name = name
	if id != "" {
		e.componentMetadata.ID = id
	}
	e.configLock.Unlock()
}

func (e *Extractor) snapshotLoggers() []types.Logger {
	e.configLock.Lock()
	loggers := append([]types.Logger(nil), e.loggers...)
	e.configLock.Unlock()
	return loggers
}

func (e *Extractor) snapshotMetadata() types.ComponentMetadata {
	e.configLock.Lock()
	metadata := e.componentMetadata
	e.configLock.Unlock()
	return metadata
}
