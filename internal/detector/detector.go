package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hands.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands the model reports (default: 1).
	// Recognition only ever looks at the first one.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// ScriptPath points at mediapipe_service.py. Empty means search the usual locations.
	ScriptPath string

	// PythonPath is the interpreter used to run the script. Empty means
	// a venv interpreter if one is found, else python3.
	PythonPath string

	// IdleTimeout shuts the helper process down after this long without a request.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      1,
		MinConfidence: 0.5,
		IdleTimeout:   30 * time.Second,
	}
}
