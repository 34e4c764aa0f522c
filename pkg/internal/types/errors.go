package types

import (
	"errors"
	"fmt"
)

// ErrorKind groups pipeline failures by how the boundary should react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInput
	KindModelNotReady
	KindNumerical
	KindChannel
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindModelNotReady:
		return "model_not_ready"
	case KindNumerical:
		return "numerical"
	case KindChannel:
		return "channel"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Input errors
var (
	ErrMalformedCSV   = errors.New("malformed CSV")
	ErrNoFile         = errors.New("no file selected")
	ErrEmptyDataset   = errors.New("dataset has not been uploaded or is empty")
	ErrLengthMismatch = errors.New("retention time and intensity lengths differ")
	ErrUnknownModel   = errors.New("unknown model profile")
	ErrInvalidProfile = errors.New("invalid model profile")
)

// Readiness errors
var (
	ErrModelNotReady = errors.New("model is not ready")
	ErrBusy          = errors.New("a classification is already in flight")
)

// Numerical errors
var (
	ErrZeroStd         = errors.New("standard deviation must be nonzero and finite")
	ErrEmptySignal     = errors.New("signal is empty")
	ErrNonFinite       = errors.New("signal contains missing or non-finite values")
	ErrUndersized      = errors.New("signal is shorter than the scalogram width")
	ErrDegenerateRange = errors.New("scalogram has no dynamic range (min == max)")
	ErrOutputShape     = errors.New("model output has an unexpected shape")
)

// Channel errors
var (
	ErrChannelClosed = errors.New("worker channel closed")
)

// PipelineError tags an underlying error with its kind and the failing operation.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ChannelError is the rejection delivered to a caller of an asynchronous channel when the
// handler failed. Message carries the handler's original error text.
type ChannelError struct {
	CorrelationID string
	Message       string
	Err           error
}

func (e *ChannelError) Error() string {
	return e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

func newPipelineError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// NewInputError wraps err as an input error.
func NewInputError(op string, err error) error { return newPipelineError(KindInput, op, err) }

// NewNumericalError wraps err as a numerical error.
func NewNumericalError(op string, err error) error { return newPipelineError(KindNumerical, op, err) }

// NewModelNotReadyError wraps err as a readiness error.
func NewModelNotReadyError(op string, err error) error {
	return newPipelineError(KindModelNotReady, op, err)
}

// NewChannelError wraps err as an asynchronous channel error.
func NewChannelError(op string, err error) error { return newPipelineError(KindChannel, op, err) }

// NewBusyError wraps err as a concurrency guard rejection.
func NewBusyError(op string, err error) error { return newPipelineError(KindBusy, op, err) }

// KindOf reports the kind of the first PipelineError in err's chain.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		return KindChannel
	}
	return KindUnknown
}

func IsInput(err error) bool         { return KindOf(err) == KindInput }
func IsNumerical(err error) bool     { return KindOf(err) == KindNumerical }
func IsModelNotReady(err error) bool { return KindOf(err) == KindModelNotReady }
