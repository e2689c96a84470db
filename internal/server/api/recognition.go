package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/detector"
	"github.com/ayusman/signspeak/internal/recognizer"
	"github.com/ayusman/signspeak/internal/sign"
)

// RecognitionHandler controls the detection loop and classifies keypoints
// posted by clients that run their own detector.
type RecognitionHandler struct {
	rec *recognizer.Recognizer
}

// NewRecognitionHandler creates a RecognitionHandler.
func NewRecognitionHandler(rec *recognizer.Recognizer) *RecognitionHandler {
	return &RecognitionHandler{rec: rec}
}

type startRequest struct {
	Mode string `json:"mode"`
}

type classifyRequest struct {
	Hands []detector.HandLandmarks `json:"hands"`
}

// ResultView is the wire form of a recognition result.
type ResultView struct {
	Outcome  sign.Outcome `json:"outcome"`
	Label    string       `json:"label,omitempty"`
	Distance float64      `json:"distance"`
	Status   string       `json:"status"`
}

type statusResponse struct {
	Running     bool            `json:"running"`
	Mode        recognizer.Mode `json:"mode,omitempty"`
	Detector    bool            `json:"detector"`
	CameraOpen  bool            `json:"cameraOpen"`
	Samples     int             `json:"samples"`
	Dimension   int             `json:"dimension"`
	Last        EventView       `json:"last"`
	HasCaptured bool            `json:"hasCaptured"`
}

// EventView is the wire form of a published recognizer event. The websocket
// hub sends the same shape.
type EventView struct {
	ResultView
	Mode      recognizer.Mode `json:"mode,omitempty"`
	Captured  bool            `json:"captured"`
	Timestamp int64           `json:"timestamp"`
}

// NewResultView renders r for clients.
func NewResultView(r sign.Result) ResultView {
	return ResultView{Outcome: r.Outcome, Label: r.Label, Distance: r.Distance, Status: r.Status()}
}

// NewEventView renders ev for clients. Timestamp is in Unix milliseconds.
func NewEventView(ev recognizer.Event) EventView {
	v := EventView{
		ResultView: NewResultView(ev.Result),
		Mode:       ev.Mode,
		Captured:   ev.Captured,
		Timestamp:  ev.Timestamp.UnixMilli(),
	}
	v.Status = ev.Status()
	return v
}

// Status handles GET /api/recognition/status.
func (h *RecognitionHandler) Status(w http.ResponseWriter, r *http.Request) {
	mode, running := h.rec.Running()
	c := h.rec.Classifier()

	resp := statusResponse{
		Running:     running,
		Mode:        mode,
		Detector:    h.rec.Detector() != nil,
		Samples:     c.Len(),
		Dimension:   c.Dim(),
		Last:        NewEventView(h.rec.Last()),
		HasCaptured: h.rec.LastCaptured() != nil,
	}
	if cam := h.rec.Camera(); cam != nil {
		resp.CameraOpen = cam.IsOpen()
	}
	writeData(w, http.StatusOK, "", resp)
}

// Start handles POST /api/recognition/start with {"mode": "live"|"capture"}.
func (h *RecognitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	mode, err := recognizer.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Mode must be live or capture")
		return
	}

	if err := h.rec.Start(mode); err != nil {
		if errors.Is(err, recognizer.ErrUnknownMode) {
			writeError(w, http.StatusBadRequest, "Mode must be live or capture")
			return
		}
		logrus.WithError(err).Warn("failed to start recognition")
		writeError(w, http.StatusServiceUnavailable, "Camera is not available")
		return
	}

	msg := "Recognition started"
	if h.rec.Detector() == nil {
		msg = "Recognition started, waiting for the hand detector"
	}
	writeData(w, http.StatusOK, msg, map[string]any{"mode": mode})
}

// Stop handles POST /api/recognition/stop.
func (h *RecognitionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.rec.Stop()
	writeData(w, http.StatusOK, "Recognition stopped", nil)
}

// Classify handles POST /api/recognition/classify. Only the first hand is used.
func (h *RecognitionHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}
	writeData(w, http.StatusOK, "", NewResultView(h.rec.Recognize(req.Hands)))
}
