package computegraph

import (
	"testing"

	"github.com/kiln-engine/kiln/gpu"
)

type recordingBackend struct {
	hasCompute bool
	dispatches []uint32
	barriers   int
	boundSlots []map[uint32]*gpu.Stream
	bound      *fakeGPUBackend
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{hasCompute: true, bound: &fakeGPUBackend{current: map[uint32]*gpu.Stream{}}}
}

func (b *recordingBackend) HasCompute() bool { return b.hasCompute }

func (b *recordingBackend) ComputeDispatch(pipelineID, gx, gy, gz uint32, push []byte) error {
	b.dispatches = append(b.dispatches, pipelineID)
	snapshot := map[uint32]*gpu.Stream{}
	for k, v := range b.bound.current {
		snapshot[k] = v
	}
	b.boundSlots = append(b.boundSlots, snapshot)
	b.bound.current = map[uint32]*gpu.Stream{}
	return nil
}

func (b *recordingBackend) ComputeMemoryBarrier() error {
	b.barriers++
	return nil
}

// fakeGPUBackend tracks the most recent ComputeBindBuffer calls so tests
// can assert bindings are re-latched per dispatch rather than leaking.
type fakeGPUBackend struct {
	current map[uint32]*gpu.Stream
}

func (f *fakeGPUBackend) BufferCreate(s *gpu.Stream) error                    { s.Handle = s; return nil }
func (f *fakeGPUBackend) BufferDestroy(s *gpu.Stream)                        {}
func (f *fakeGPUBackend) BufferMap(s *gpu.Stream) ([]byte, error)            { return nil, nil }
func (f *fakeGPUBackend) BufferUnmap(s *gpu.Stream) error                    { return nil }
func (f *fakeGPUBackend) BufferUpload(s *gpu.Stream, d []byte, c uint64) error { return nil }
func (f *fakeGPUBackend) BufferRead(s *gpu.Stream, d []byte, c uint64) error   { return nil }
func (f *fakeGPUBackend) ComputeBindBuffer(s *gpu.Stream, slot uint32) error {
	f.current[slot] = s
	return nil
}
func (f *fakeGPUBackend) GraphicsBindBuffer(s *gpu.Stream, slot uint32) error { return nil }

func TestComputeGraphExecuteOrderAndBarriers(t *testing.T) {
	g := New()
	g.AddPass(1, 1, 1, 1)
	g.AddPass(2, 1, 1, 1)
	g.AddPass(3, 1, 1, 1)

	be := newRecordingBackend()
	g.Execute(be, nil)

	if len(be.dispatches) != 3 || be.dispatches[0] != 1 || be.dispatches[1] != 2 || be.dispatches[2] != 3 {
		t.Fatalf("dispatch order = %v, want [1 2 3]", be.dispatches)
	}
	// N passes -> N-1 barriers between them.
	if be.barriers != 2 {
		t.Fatalf("barriers = %d, want 2", be.barriers)
	}
}

func TestComputeGraphNoOpWithoutCompute(t *testing.T) {
	g := New()
	g.AddPass(1, 1, 1, 1)
	be := newRecordingBackend()
	be.hasCompute = false

	g.Execute(be, nil)

	if len(be.dispatches) != 0 {
		t.Fatalf("expected no dispatches, got %v", be.dispatches)
	}
}

// Invariant 6: a binding at slot k takes effect for exactly the next
// dispatch and does not leak to subsequent passes unless re-declared.
func TestComputeGraphBindingsDoNotLeak(t *testing.T) {
	be := newRecordingBackend()
	s1, _ := gpu.Create(be.bound, gpu.TypeFloat, 4, 0)
	s2, _ := gpu.Create(be.bound, gpu.TypeFloat, 4, 0)

	g := New()
	p1 := g.AddPass(1, 1, 1, 1)
	p1.BindStream(0, s1)
	p2 := g.AddPass(2, 1, 1, 1)
	p2.BindStream(1, s2)

	g.Execute(be, nil)

	if len(be.boundSlots) != 2 {
		t.Fatalf("expected 2 dispatch snapshots, got %d", len(be.boundSlots))
	}
	if _, ok := be.boundSlots[1][0]; ok {
		t.Fatalf("slot 0 binding from pass 1 leaked into pass 2's dispatch")
	}
}
