package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/meter"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

type modelView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Policy   string         `json:"policy"`
	Classes  map[int]string `json:"classes"`
	Selected bool           `json:"selected"`
}

type modelsResponse struct {
	Models []modelView `json:"models"`
	Ready  bool        `json:"ready"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type classifyResponse struct {
	Name   string                 `json:"name,omitempty"`
	Rows   int                    `json:"rows"`
	Result types.PredictionResult `json:"result"`
}

type healthResponse struct {
	Ready bool           `json:"ready"`
	Model string         `json:"model,omitempty"`
	Meter meter.Snapshot `json:"meter"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	current, _ := s.backend.Profile()
	var out modelsResponse
	for _, p := range s.backend.Registry().Profiles() {
		out.Models = append(out.Models, modelView{
			ID:       p.ID,
			Name:     p.Name,
			Policy:   p.Policy.Name,
			Classes:  p.ClassMap,
			Selected: p.ID == current.ID,
		})
	}
	out.Ready = s.backend.Ready()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		req, err := codec.NewJSONDecoder[selectRequest]().Decode(http.MaxBytesReader(w, r.Body, 1<<16))
		if err != nil {
			s.writeError(w, r, "SelectModel", types.NewInputError("httpserver.select", err))
			return
		}
		id = req.ID
	}
	if err := s.backend.SelectModel(r.Context(), id); err != nil {
		s.writeError(w, r, "SelectModel", err)
		return
	}
	s.NotifyLoggers(types.InfoLevel, "Model selected",
		"component", s.componentMetadata, "event", "SelectModel", "result", "SUCCESS", "model", id)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "ready": s.backend.Ready()})
}

// handleClassify decodes the CSV body and classifies it with ?model= or the selected model.
// The chromatogram stays local to the request.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	encoding := q.Get("compression")
	if encoding == "" {
		encoding = r.Header.Get("Content-Encoding")
	}
	algorithm, err := codec.ParseAlgorithm(encoding)
	if err != nil {
		s.writeError(w, r, "Classify", types.NewInputError("httpserver.classify", err))
		return
	}

	body, err := codec.NewDecompressingReader(http.MaxBytesReader(w, r.Body, s.maxBodyBytes), algorithm)
	if err != nil {
		s.writeError(w, r, "Classify", types.NewInputError("httpserver.classify", err))
		return
	}
	defer body.Close()

	name := q.Get("name")
	if name == "" {
		name = "upload.csv"
	}
	if algorithm != types.CompressNone {
		name = codec.TrimCompressionExt(name)
	}

	c, err := (&codec.ChromatogramDecoder{Name: name}).Decode(body)
	if err != nil {
		s.writeError(w, r, "Decode", err)
		return
	}

	res, err := s.backend.ClassifyModel(r.Context(), s.modelFor(q.Get("model")), c)
	if err != nil {
		s.writeError(w, r, "Classify", err)
		return
	}

	s.NotifyLoggers(types.DebugLevel, "Classify request served",
		"component", s.componentMetadata, "event", "Classify", "result", "SUCCESS",
		"model", res.ModelID, "rows", c.Len(), "predicted", res.PredictedLabel)
	writeJSON(w, http.StatusOK, classifyResponse{Name: name, Rows: c.Len(), Result: res})
}

func (s *Server) handleScalogram(w http.ResponseWriter, r *http.Request) {
	scale := s.pngScale
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 16 {
			s.writeError(w, r, "Scalogram", types.NewInputError("httpserver.scalogram", fmt.Errorf("invalid scale %q", v)))
			return
		}
		scale = n
	}

	var buf bytes.Buffer
	if err := s.backend.RenderScalogram(&buf, scale); err != nil {
		s.writeError(w, r, "Scalogram", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := healthResponse{Ready: s.backend.Ready()}
	if p, ok := s.backend.Profile(); ok {
		out.Model = p.ID
	}
	if m := s.backend.Meter(); m != nil {
		out.Meter = m.Snapshot()
	}
	status := http.StatusOK
	if !out.Ready && !strings.EqualFold(r.URL.Query().Get("probe"), "live") {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}
