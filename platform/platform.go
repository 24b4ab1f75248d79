// Package platform wraps glfw window/surface/input handling behind the
// Platform Surface contract (spec.md §4.1): window create/destroy,
// framebuffer size, event pumping, monotonic time, and Vulkan surface
// creation plus required instance extensions. Grounded on the teacher's
// engine/platform/platform.go, generalized from bare glfw callbacks into
// a small typed event queue so the engine/UI layers never import glfw
// directly.
package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/goki/vulkan"
)

func init() {
	// glfw event handling (and, transitively, window/surface calls) must
	// run on the thread that called glfw.Init — the teacher's
	// runtime.LockOSThread() in engine/platform/platform.go.
	runtime.LockOSThread()
}

// EventKind identifies a queued input event's variant.
type EventKind int

const (
	EventKey EventKind = iota
	EventMouseButton
	EventCursorPos
	EventScroll
	EventFramebufferSize
)

// Event is a tagged-union input event. Only the fields relevant to Kind
// are populated.
type Event struct {
	Kind EventKind

	Key      glfw.Key
	Scancode int
	Action   glfw.Action
	Mods     glfw.ModifierKey

	Button glfw.MouseButton

	X, Y float64

	XOff, YOff float64

	Width, Height int
}

// Platform owns a single glfw window and buffers its callbacks into an
// Event queue the logic goroutine drains once per tick, rather than
// reacting inline from glfw's callback thread.
type Platform struct {
	Window *glfw.Window
	events []Event
}

// New constructs an unattached Platform; call Startup to create the
// window.
func New() (*Platform, error) {
	return &Platform{}, nil
}

// Startup initializes glfw, creates a Vulkan-compatible (ClientAPI =
// NoAPI) window at the given position/size, and registers input
// callbacks.
func (p *Platform) Startup(title string, x, y, width, height int) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("platform: glfw init: %w", err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return fmt.Errorf("platform: create window: %w", err)
	}
	p.Window = window

	window.SetKeyCallback(p.onKey)
	window.SetMouseButtonCallback(p.onMouseButton)
	window.SetCursorPosCallback(p.onCursorPos)
	window.SetScrollCallback(p.onScroll)
	window.SetFramebufferSizeCallback(p.onFramebufferSize)
	window.SetPos(x, y)
	window.Show()

	return nil
}

// Shutdown destroys the window and terminates glfw.
func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
	}
	glfw.Terminate()
	return nil
}

// ShouldClose reports whether the user requested the window close.
func (p *Platform) ShouldClose() bool {
	return p.Window != nil && p.Window.ShouldClose()
}

// RequestClose sets the window's should-close flag, used by the render
// thread to unblock the logic thread's WaitEvents on shutdown (spec.md
// §4.9 cancellation).
func (p *Platform) RequestClose() {
	if p.Window != nil {
		p.Window.SetShouldClose(true)
	}
}

// PollEvents processes pending OS events without blocking.
func (p *Platform) PollEvents() { glfw.PollEvents() }

// WaitEvents blocks until at least one OS event arrives.
func (p *Platform) WaitEvents() { glfw.WaitEvents() }

// MonotonicTime returns glfw's monotonic clock in seconds.
func (p *Platform) MonotonicTime() float64 { return glfw.GetTime() }

// FramebufferSize returns the window's current framebuffer dimensions.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// RequiredInstanceExtensions returns the Vulkan instance extensions
// glfw requires for presentation on this platform.
func (p *Platform) RequiredInstanceExtensions() []string {
	return glfw.GetRequiredInstanceExtensions()
}

// CreateSurface creates a Vulkan surface for this window against
// instance, returning the surface as a uintptr so callers outside the
// Vulkan backend need not import goki/vulkan.
func (p *Platform) CreateSurface(instance uintptr) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(vulkan.Instance(instance), nil)
	if err != nil {
		return 0, fmt.Errorf("platform: create window surface: %w", err)
	}
	return uintptr(surface), nil
}

// DrainEvents returns and clears all events buffered since the last
// call, for the logic goroutine to consume once per tick.
func (p *Platform) DrainEvents() []Event {
	if len(p.events) == 0 {
		return nil
	}
	out := p.events
	p.events = nil
	return out
}

func (p *Platform) onKey(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	p.events = append(p.events, Event{Kind: EventKey, Key: key, Scancode: scancode, Action: action, Mods: mods})
}

func (p *Platform) onMouseButton(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	p.events = append(p.events, Event{Kind: EventMouseButton, Button: button, Action: action, Mods: mods})
}

func (p *Platform) onCursorPos(w *glfw.Window, xpos, ypos float64) {
	p.events = append(p.events, Event{Kind: EventCursorPos, X: xpos, Y: ypos})
}

func (p *Platform) onScroll(w *glfw.Window, xoff, yoff float64) {
	p.events = append(p.events, Event{Kind: EventScroll, XOff: xoff, YOff: yoff})
}

func (p *Platform) onFramebufferSize(w *glfw.Window, width, height int) {
	p.events = append(p.events, Event{Kind: EventFramebufferSize, Width: width, Height: height})
}
