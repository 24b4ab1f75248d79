package framepacket

import "testing"

type frame struct {
	Seq int
}

func TestAcquireReturnsFalseBeforeFirstPublish(t *testing.T) {
	p := New[frame]()
	if _, ok := p.Acquire(); ok {
		t.Fatalf("expected no packet ready before first Publish")
	}
}

// Invariant: a write to the back slot is not observable via Acquire
// until the logic side calls Publish.
func TestWriteNotObservableUntilPublish(t *testing.T) {
	p := New[frame]()
	back := p.Back()
	back.Seq = 1

	if _, ok := p.Acquire(); ok {
		t.Fatalf("expected write to back slot invisible before Publish")
	}

	p.Publish()

	got, ok := p.Acquire()
	if !ok {
		t.Fatalf("expected packet ready after Publish")
	}
	if got.Seq != 1 {
		t.Fatalf("Seq = %d, want 1", got.Seq)
	}
}

// The render side may re-render the same packet multiple times when the
// logic side is slow: a second Acquire with no intervening Publish
// reports ok=false rather than re-delivering a stale "ready" signal.
func TestAcquireIsOneShotPerPublish(t *testing.T) {
	p := New[frame]()
	p.Back().Seq = 7
	p.Publish()

	first, ok := p.Acquire()
	if !ok || first.Seq != 7 {
		t.Fatalf("first Acquire = (%v, %v), want (7, true)", first, ok)
	}

	if _, ok := p.Acquire(); ok {
		t.Fatalf("expected second Acquire with no new Publish to report ok=false")
	}
}

// Front/back never alias: the logic side's Back() pointer is always
// distinct from whatever Acquire most recently returned.
func TestFrontAndBackNeverAlias(t *testing.T) {
	p := New[frame]()
	p.Back().Seq = 1
	p.Publish()
	front, _ := p.Acquire()

	back := p.Back()
	if back == front {
		t.Fatalf("Back() returned the same pointer as the acquired front slot")
	}
	back.Seq = 2
	if front.Seq != 1 {
		t.Fatalf("writing to the new back slot mutated the already-acquired front packet")
	}
}

func TestPublishTwiceWithoutAcquireKeepsLatestPacket(t *testing.T) {
	p := New[frame]()
	p.Back().Seq = 1
	p.Publish()
	p.Back().Seq = 2
	p.Publish()

	got, ok := p.Acquire()
	if !ok || got.Seq != 2 {
		t.Fatalf("Acquire = (%v, %v), want (2, true) -- latest publish should win", got, ok)
	}
}

func TestCloseIsIdempotentAndObservable(t *testing.T) {
	p := New[frame]()
	if p.Closed() {
		t.Fatalf("expected not closed initially")
	}
	p.Close()
	p.Close()
	if !p.Closed() {
		t.Fatalf("expected closed after Close")
	}
}
