package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/recognizer"
	"github.com/ayusman/signspeak/internal/sign"
	"github.com/ayusman/signspeak/internal/store"
)

// SamplesHandler manages the labeled vectors the classifier is built from.
// Every change rebuilds the classifier used by the recognizer.
type SamplesHandler struct {
	store *store.Store
	rec   *recognizer.Recognizer
}

// NewSamplesHandler creates a SamplesHandler.
func NewSamplesHandler(s *store.Store, rec *recognizer.Recognizer) *SamplesHandler {
	return &SamplesHandler{store: s, rec: rec}
}

type createSampleRequest struct {
	Label  string    `json:"label"`
	Vector []float64 `json:"vector"`
}

type samplesResponse struct {
	Samples []*store.Sample `json:"samples"`
	Labels  map[string]int  `json:"labels"`
}

type reloadResponse struct {
	Samples   int `json:"samples"`
	Dimension int `json:"dimension"`
}

// Reload rebuilds the recognizer's classifier from the store.
func Reload(s *store.Store, rec *recognizer.Recognizer) (*sign.Classifier, error) {
	c, err := s.Samples().Classifier()
	if err != nil {
		return nil, err
	}
	rec.SetClassifier(c)
	return c, nil
}

// List handles GET /api/samples.
func (h *SamplesHandler) List(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.Samples().List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	labels, err := h.store.Samples().Labels()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", samplesResponse{Samples: samples, Labels: labels})
}

// Create handles POST /api/samples. Without a vector in the body, the vector
// recorded by the last capture cycle is saved.
func (h *SamplesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		writeError(w, http.StatusBadRequest, "Label is required")
		return
	}

	vec := req.Vector
	if len(vec) == 0 {
		vec = h.rec.LastCaptured()
	}
	if len(vec) == 0 {
		writeError(w, http.StatusBadRequest, "No hand captured yet")
		return
	}

	sm := &store.Sample{Label: label, Vector: vec}
	if err := h.store.Samples().Create(sm); err != nil {
		if errors.Is(err, sign.ErrInconsistentDimensions) {
			writeError(w, http.StatusBadRequest, "Vector length does not match existing samples")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	if _, err := Reload(h.store, h.rec); err != nil {
		writeServiceError(w, r, err)
		return
	}

	logrus.WithFields(logrus.Fields{"label": label, "dim": len(vec)}).Info("sample saved")
	writeData(w, http.StatusCreated, "Sample saved", sm)
}

// Delete handles DELETE /api/samples/{id}.
func (h *SamplesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Samples().Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	if _, err := Reload(h.store, h.rec); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Sample deleted", nil)
}

// ReloadSamples handles POST /api/samples/reload.
func (h *SamplesHandler) ReloadSamples(w http.ResponseWriter, r *http.Request) {
	c, err := Reload(h.store, h.rec)
	if err != nil {
		if errors.Is(err, sign.ErrInconsistentDimensions) {
			writeError(w, http.StatusConflict, "Stored samples have different vector lengths")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Samples reloaded", reloadResponse{Samples: c.Len(), Dimension: c.Dim()})
}
