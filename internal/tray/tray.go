// Package tray provides a desktop system tray menu for signspeak.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/signspeak/internal/recognizer"
)

const maxStatusLen = 40

// Tray is the system tray menu. It mirrors the recognizer state and forwards
// menu clicks to the registered callbacks.
type Tray struct {
	mu        sync.RWMutex
	onStart   func(mode recognizer.Mode)
	onStop    func()
	onOpen    func()
	onQuit    func()
	running   bool
	mode      recognizer.Mode
	lastTitle string

	menuToggle  *systray.MenuItem
	menuCapture *systray.MenuItem
	menuLast    *systray.MenuItem
}

// New creates a Tray with recognition shown as stopped.
func New() *Tray {
	return &Tray{lastTitle: resultTitle(recognizer.Event{})}
}

// OnStart sets the callback for the start menu items.
func (t *Tray) OnStart(fn func(mode recognizer.Mode)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback for stopping recognition.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnOpen sets the callback for the "Open signspeak" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit is called and must run on the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("signspeak")
	systray.SetTooltip("signspeak sign language translator")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running, t.mode), "Start or stop live translation")
	t.menuCapture = systray.AddMenuItem("Capture a sample", "Start capture mode for training")
	systray.AddSeparator()
	t.menuLast = systray.AddMenuItem(t.lastTitle, "Latest recognition result")
	t.menuLast.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open signspeak", "Open the web app in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit signspeak")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuCapture.ClickedCh:
				t.start(recognizer.ModeCapture)
			case <-menuOpen.ClickedCh:
				t.mu.RLock()
				fn := t.onOpen
				t.mu.RUnlock()
				if fn != nil {
					fn()
				}
			case <-menuQuit.ClickedCh:
				t.mu.RLock()
				fn := t.onQuit
				t.mu.RUnlock()
				if fn != nil {
					fn()
				}
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	running := t.running
	stop := t.onStop
	t.mu.RUnlock()

	if !running {
		t.start(recognizer.ModeLive)
		return
	}
	if stop != nil {
		stop()
	}
}

func (t *Tray) start(mode recognizer.Mode) {
	t.mu.RLock()
	fn := t.onStart
	t.mu.RUnlock()
	if fn != nil {
		fn(mode)
	}
}

// SetRunning updates the toggle item after the recognizer starts or stops.
func (t *Tray) SetRunning(mode recognizer.Mode, running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	t.mode = mode
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running, mode))
	}
}

// Update shows ev as the latest result. It is meant to be registered with
// recognizer.OnResult.
func (t *Tray) Update(ev recognizer.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTitle = resultTitle(ev)
	if t.menuLast != nil {
		t.menuLast.SetTitle(t.lastTitle)
	}
}

// Running reports the state last passed to SetRunning.
func (t *Tray) Running() (recognizer.Mode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode, t.running
}

// LastTitle returns the text of the result menu item.
func (t *Tray) LastTitle() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastTitle
}

func toggleTitle(running bool, mode recognizer.Mode) string {
	if !running {
		return "○ Start translating"
	}
	if mode == recognizer.ModeCapture {
		return "● Capturing (click to stop)"
	}
	return "● Translating (click to stop)"
}

func resultTitle(ev recognizer.Event) string {
	s := ev.Status()
	if r := []rune(s); len(r) > maxStatusLen {
		s = string(r[:maxStatusLen-1]) + "…"
	}
	return "Last: " + s
}
