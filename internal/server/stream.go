package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/signspeak/internal/capture"
)

const streamFrameInterval = 66 * time.Millisecond // ~15 FPS

// StreamHandler serves an MJPEG preview of the camera while recognition runs.
type StreamHandler struct {
	camera   capture.Camera
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler for camera.
func NewStreamHandler(camera capture.Camera) *StreamHandler {
	return &StreamHandler{camera: camera, interval: streamFrameInterval}
}

// ServeHTTP streams frames until the client disconnects or the camera closes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.camera == nil || !h.camera.IsOpen() {
		writeError(w, http.StatusServiceUnavailable, "Camera is not running")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if !h.camera.IsOpen() {
			return
		}

		frame, err := h.camera.ReadFrame()
		if err == nil {
			buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
			frame.Close()
			if err != nil {
				logrus.WithError(err).Debug("failed to encode preview frame")
			} else {
				_, werr := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", buf.Len())
				if werr == nil {
					_, werr = w.Write(buf.GetBytes())
				}
				if werr == nil {
					_, werr = fmt.Fprint(w, "\r\n")
				}
				buf.Close()
				if werr != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
