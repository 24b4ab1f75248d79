package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// These tests exercise the event-queue plumbing directly, without
// calling Startup (which requires a live windowing system); the
// callbacks themselves only touch p.events so they're safe to invoke
// against a bare Platform value.

func TestDrainEventsReturnsAndClearsQueue(t *testing.T) {
	p := &Platform{}
	p.onKey(nil, glfw.KeyA, 0, glfw.Press, 0)
	p.onScroll(nil, 0, 1.5)

	events := p.DrainEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != EventKey || events[0].Key != glfw.KeyA {
		t.Errorf("event 0 = %+v, want EventKey/KeyA", events[0])
	}
	if events[1].Kind != EventScroll || events[1].YOff != 1.5 {
		t.Errorf("event 1 = %+v, want EventScroll/YOff=1.5", events[1])
	}

	if more := p.DrainEvents(); more != nil {
		t.Fatalf("expected nil after drain, got %v", more)
	}
}

func TestDrainEventsOnEmptyQueueReturnsNil(t *testing.T) {
	p := &Platform{}
	if events := p.DrainEvents(); events != nil {
		t.Fatalf("expected nil, got %v", events)
	}
}

func TestFramebufferSizeEventCarriesDimensions(t *testing.T) {
	p := &Platform{}
	p.onFramebufferSize(nil, 1920, 1080)

	events := p.DrainEvents()
	if len(events) != 1 || events[0].Width != 1920 || events[0].Height != 1080 {
		t.Fatalf("unexpected events: %+v", events)
	}
}
