// Package detector provides hand pose detection interfaces and landmark types for sign recognition.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a keypoint in frame space. Z is carried through from the
// detector but is not used for classification.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// HandLandmarks is one detected hand. Points keeps the detector's keypoint
// order, which is stable for a given model configuration.
type HandLandmarks struct {
	Points     []Point3D `json:"keypoints"`
	Handedness string    `json:"handedness,omitempty"` // "Left" or "Right"
	Score      float64   `json:"score,omitempty"`
}

// Flatten converts keypoints into a vector of length 2*len(points), emitting
// x then y for each point in input order. An empty input yields an empty,
// non-nil vector.
func Flatten(points []Point3D) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Flatten returns the flattened x,y vector for the hand's keypoints.
func (h *HandLandmarks) Flatten() []float64 {
	if h == nil {
		return []float64{}
	}
	return Flatten(h.Points)
}
