// Package recognizer runs the periodic camera -> detector -> classifier loop
// and publishes each outcome to subscribers.
package recognizer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/capture"
	"github.com/ayusman/signspeak/internal/detector"
	"github.com/ayusman/signspeak/internal/sign"
)

// Loop intervals.
const (
	// LiveInterval is the period between classification cycles.
	LiveInterval = 1500 * time.Millisecond
	// CaptureInterval is the period between sample capture cycles.
	CaptureInterval = 300 * time.Millisecond
)

// ErrUnknownMode is returned by ParseMode for anything but "live" or "capture".
var ErrUnknownMode = errors.New("unknown recognition mode")

// Mode selects what each cycle does with the detected hand.
type Mode string

const (
	// ModeLive classifies the hand and publishes the label.
	ModeLive Mode = "live"
	// ModeCapture only records the flattened vector for saving as a sample.
	ModeCapture Mode = "capture"
)

// ParseMode parses a mode name case-insensitively. Empty means live.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeLive):
		return ModeLive, nil
	case string(ModeCapture):
		return ModeCapture, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Event is one published cycle outcome.
type Event struct {
	Mode      Mode        `json:"mode,omitempty"`
	Result    sign.Result `json:"result"`
	Captured  bool        `json:"captured,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Status is the display string for the event.
func (e Event) Status() string {
	if e.Mode == ModeCapture && e.Captured {
		return "Hand captured, ready to save"
	}
	return e.Result.Status()
}

// Config holds the recognizer's collaborators. Detector may be nil, in which
// case ticks are skipped until SetDetector provides one.
type Config struct {
	Camera          capture.Camera
	Detector        detector.Detector
	Classifier      *sign.Classifier
	LiveInterval    time.Duration
	CaptureInterval time.Duration
}

// Recognizer owns the detection loop. At most one cycle is in flight at a time.
type Recognizer struct {
	camera    capture.Camera
	intervals map[Mode]time.Duration

	mu       sync.Mutex
	detector detector.Detector
	mode     Mode
	stopCh   chan struct{}

	classifier atomic.Pointer[sign.Classifier]
	busy       atomic.Bool
	gen        atomic.Uint64

	resultMu    sync.RWMutex
	last        Event
	captured    []float64
	subscribers []func(Event)
}

// New creates a stopped Recognizer.
func New(config Config) *Recognizer {
	live := config.LiveInterval
	if live <= 0 {
		live = LiveInterval
	}
	capt := config.CaptureInterval
	if capt <= 0 {
		capt = CaptureInterval
	}

	r := &Recognizer{
		camera:    config.Camera,
		detector:  config.Detector,
		intervals: map[Mode]time.Duration{ModeLive: live, ModeCapture: capt},
		last:      Event{Result: sign.Result{Outcome: sign.OutcomePending}, Timestamp: now()},
	}

	c := config.Classifier
	if c == nil {
		c, _ = sign.NewClassifier(nil)
	}
	r.classifier.Store(c)

	return r
}

// Recognize classifies the first hand in hands. With no hands the outcome is NoHand.
func Recognize(hands []detector.HandLandmarks, c *sign.Classifier) sign.Result {
	if len(hands) == 0 {
		return sign.Result{Outcome: sign.OutcomeNoHand}
	}
	return c.Classify(hands[0].Flatten())
}

// Recognize classifies hands with the current classifier.
func (r *Recognizer) Recognize(hands []detector.HandLandmarks) sign.Result {
	return Recognize(hands, r.Classifier())
}

// Start begins ticking in mode. Starting in the mode already running is a
// no-op; starting in another mode restarts the loop.
func (r *Recognizer) Start(mode Mode) error {
	interval, ok := r.intervals[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopCh != nil {
		if r.mode == mode {
			return nil
		}
		r.haltLocked()
	}

	if r.camera == nil {
		return capture.ErrCameraNotOpen
	}
	if err := r.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	if mode == ModeCapture {
		r.resultMu.Lock()
		r.captured = nil
		r.resultMu.Unlock()
	}

	gen := r.gen.Add(1)
	r.mode = mode
	r.stopCh = make(chan struct{})
	go r.run(r.stopCh, gen, mode, interval)

	logrus.WithFields(logrus.Fields{
		"mode":     mode,
		"interval": interval,
		"samples":  r.Classifier().Len(),
	}).Info("recognition started")

	return nil
}

// Stop halts the loop and closes the camera. A cycle already in flight
// finishes but its result is discarded.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopCh == nil {
		return
	}
	r.haltLocked()

	if err := r.camera.Close(); err != nil {
		logrus.WithError(err).Warn("error closing camera")
	}

	logrus.Info("recognition stopped")
}

func (r *Recognizer) haltLocked() {
	close(r.stopCh)
	r.stopCh = nil
	r.mode = ""

	r.resultMu.Lock()
	r.gen.Add(1)
	r.resultMu.Unlock()
}

// Close stops the loop and releases the detector.
func (r *Recognizer) Close() error {
	r.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detector == nil {
		return nil
	}
	err := r.detector.Close()
	r.detector = nil
	return err
}

// Running reports whether the loop is active, and in which mode.
func (r *Recognizer) Running() (Mode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode, r.stopCh != nil
}

// SetDetector replaces the hand detector. The previous one is not closed.
func (r *Recognizer) SetDetector(d detector.Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector = d
}

// Detector returns the current hand detector, which may be nil.
func (r *Recognizer) Detector() detector.Detector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detector
}

// SetClassifier swaps the classifier used by subsequent cycles. nil installs
// an empty classifier.
func (r *Recognizer) SetClassifier(c *sign.Classifier) {
	if c == nil {
		c, _ = sign.NewClassifier(nil)
	}
	r.classifier.Store(c)
	logrus.WithField("samples", c.Len()).Info("classifier updated")
}

// Classifier returns the classifier currently in use.
func (r *Recognizer) Classifier() *sign.Classifier {
	return r.classifier.Load()
}

// Camera returns the frame source.
func (r *Recognizer) Camera() capture.Camera {
	return r.camera
}

// Last returns the most recently published event.
func (r *Recognizer) Last() Event {
	r.resultMu.RLock()
	defer r.resultMu.RUnlock()
	return r.last
}

// LastCaptured returns a copy of the vector recorded by the most recent
// capture cycle that saw a hand, or nil.
func (r *Recognizer) LastCaptured() []float64 {
	r.resultMu.RLock()
	defer r.resultMu.RUnlock()
	if r.captured == nil {
		return nil
	}
	out := make([]float64, len(r.captured))
	copy(out, r.captured)
	return out
}

// OnResult registers fn to receive every published event. fn must not block.
func (r *Recognizer) OnResult(fn func(Event)) {
	r.resultMu.Lock()
	defer r.resultMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Recognizer) run(stopCh <-chan struct{}, gen uint64, mode Mode, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.tick(gen, mode)
		}
	}
}

// tick starts a cycle unless the loop has nothing to work with or the
// previous cycle is still running.
func (r *Recognizer) tick(gen uint64, mode Mode) {
	det := r.Detector()
	if det == nil || !r.camera.IsOpen() {
		return
	}
	if !r.busy.CompareAndSwap(false, true) {
		logrus.Debug("recognition cycle still running, tick dropped")
		return
	}

	go func() {
		defer r.busy.Store(false)
		r.runCycle(gen, mode, det)
	}()
}

func (r *Recognizer) runCycle(gen uint64, mode Mode, det detector.Detector) {
	frame, err := r.camera.ReadFrame()
	if err != nil {
		logrus.WithError(err).Warn("error reading frame")
		return
	}

	hands, err := det.Detect(frame)
	frame.Close()
	if err != nil {
		logrus.WithError(err).Warn("hand detection failed")
		hands = nil
	}

	ev := Event{Mode: mode, Timestamp: now()}

	switch mode {
	case ModeCapture:
		var vec []float64
		if len(hands) > 0 {
			vec = hands[0].Flatten()
			ev.Captured = true
			ev.Result = sign.Result{Outcome: sign.OutcomePending}
		} else {
			ev.Result = sign.Result{Outcome: sign.OutcomeNoHand}
		}
		r.publish(gen, ev, vec, true)
	default:
		ev.Result = r.Recognize(hands)
		r.publish(gen, ev, nil, false)
	}
}

func (r *Recognizer) publish(gen uint64, ev Event, vec []float64, setCaptured bool) {
	r.resultMu.Lock()
	if r.gen.Load() != gen {
		r.resultMu.Unlock()
		logrus.Debug("discarding result from stopped loop")
		return
	}
	r.last = ev
	if setCaptured {
		r.captured = vec
	}
	subs := make([]func(Event), len(r.subscribers))
	copy(subs, r.subscribers)
	r.resultMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func now() time.Time {
	return time.Now().UTC()
}
