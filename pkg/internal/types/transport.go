package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Samples is a float series whose JSON form uses null for missing (NaN) values.
type Samples []float64

// MarshalJSON writes NaN and infinities as null.
func (s Samples) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads null elements as NaN.
func (s *Samples) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Samples, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// ClassificationRequest is the message accepted by the Kafka and websocket transports.
type ClassificationRequest struct {
	CorrelationID string  `json:"correlation_id"`
	ModelID       string  `json:"model_id,omitempty"`
	Name          string  `json:"name,omitempty"`
	RetentionTime Samples `json:"retention_time"`
	Intensity     Samples `json:"intensity"`
}

// Chromatogram returns the request payload as a chromatogram.
func (r ClassificationRequest) Chromatogram() Chromatogram {
	return Chromatogram{Name: r.Name, RetentionTime: r.RetentionTime, Intensity: r.Intensity}
}

// ClassificationReply answers one request. Exactly one of Result and Error is set.
type ClassificationReply struct {
	CorrelationID string            `json:"correlation_id"`
	Result        *PredictionResult `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	Kind          string            `json:"kind,omitempty"`
}

// NewClassificationReply builds the reply for a finished request.
func NewClassificationReply(correlationID string, res PredictionResult, err error) ClassificationReply {
	if err != nil {
		return ClassificationReply{CorrelationID: correlationID, Error: err.Error(), Kind: KindOf(err).String()}
	}
	return ClassificationReply{CorrelationID: correlationID, Result: &res}
}
