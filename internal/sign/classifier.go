// Package sign classifies flattened hand-landmark vectors against a fixed set
// of labeled samples using exact 1-nearest-neighbor search.
package sign

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInconsistentDimensions is returned when samples do not all share one vector length.
var ErrInconsistentDimensions = errors.New("samples have inconsistent vector dimensions")

// Sample is a labeled reference vector.
type Sample struct {
	Label  string    `json:"label" yaml:"label"`
	Vector []float64 `json:"vector" yaml:"vector"`
}

// Outcome is the kind of result a classification cycle produced.
type Outcome int

const (
	// OutcomePending means no classification has happened yet.
	OutcomePending Outcome = iota
	// OutcomeNoHand means the detector found no hand in the frame.
	OutcomeNoHand
	// OutcomeUnknown means there are no samples to compare against.
	OutcomeUnknown
	// OutcomeDimensionMismatch means the query length differs from the samples.
	OutcomeDimensionMismatch
	// OutcomeMatch means a nearest sample was found.
	OutcomeMatch
)

var outcomeNames = map[Outcome]string{
	OutcomePending:           "pending",
	OutcomeNoHand:            "no_hand",
	OutcomeUnknown:           "unknown",
	OutcomeDimensionMismatch: "dimension_mismatch",
	OutcomeMatch:             "match",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalJSON encodes the outcome as its string name.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes an outcome from its string name.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range outcomeNames {
		if v == s {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", s)
}

// Result is the output of one classification.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	Label    string  `json:"label,omitempty"`
	Distance float64 `json:"distance"`
}

// Status renders the result as the string shown to the user.
func (r Result) Status() string {
	switch r.Outcome {
	case OutcomeMatch:
		return "That means: " + r.Label
	case OutcomeDimensionMismatch:
		return "Hand detected, but no matching samples"
	case OutcomeUnknown:
		return "No samples loaded"
	case OutcomeNoHand:
		return "Looking for your hand..."
	default:
		return "Loading model..."
	}
}

// Classifier holds an immutable sample set. It is safe for concurrent use.
type Classifier struct {
	samples []Sample
	dim     int
}

// NewClassifier copies samples into a new Classifier. All vectors must have
// the same length.
func NewClassifier(samples []Sample) (*Classifier, error) {
	c := &Classifier{samples: make([]Sample, 0, len(samples))}
	for i, s := range samples {
		if i == 0 {
			c.dim = len(s.Vector)
		} else if len(s.Vector) != c.dim {
			return nil, fmt.Errorf("%w: sample %d (%q) has %d values, want %d",
				ErrInconsistentDimensions, i, s.Label, len(s.Vector), c.dim)
		}
		vec := make([]float64, len(s.Vector))
		copy(vec, s.Vector)
		c.samples = append(c.samples, Sample{Label: s.Label, Vector: vec})
	}
	return c, nil
}

// Len returns the number of samples.
func (c *Classifier) Len() int {
	if c == nil {
		return 0
	}
	return len(c.samples)
}

// Dim returns the vector length shared by all samples, or 0 when empty.
func (c *Classifier) Dim() int {
	if c == nil {
		return 0
	}
	return c.dim
}

// Samples returns a copy of the sample set.
func (c *Classifier) Samples() []Sample {
	if c == nil {
		return nil
	}
	out := make([]Sample, len(c.samples))
	for i, s := range c.samples {
		vec := make([]float64, len(s.Vector))
		copy(vec, s.Vector)
		out[i] = Sample{Label: s.Label, Vector: vec}
	}
	return out
}

// Classify returns the label of the nearest sample. Ties go to the sample
// that appears first. A nil classifier behaves like an empty one.
func (c *Classifier) Classify(query []float64) Result {
	if c.Len() == 0 {
		return Result{Outcome: OutcomeUnknown}
	}
	if len(query) != c.dim {
		return Result{Outcome: OutcomeDimensionMismatch}
	}

	best := -1
	bestDist := math.Inf(1)
	for i, s := range c.samples {
		d := Distance(query, s.Vector)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	// Only reachable when every distance is NaN.
	if best < 0 {
		return Result{Outcome: OutcomeDimensionMismatch}
	}

	return Result{
		Outcome:  OutcomeMatch,
		Label:    c.samples[best].Label,
		Distance: bestDist,
	}
}

// Distance returns the Euclidean distance between a and b.
// It panics if the lengths differ.
func Distance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
