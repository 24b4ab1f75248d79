// Package computegraph implements an ordered compute-pass graph with
// ping-pong double-buffer support (spec.md §4.4), grounded on
// original_source/src/engine/graphics/compute_graph.h: a C array-of-
// structs graph generalized into Go slices of value structs, and the
// teacher's callback-closure idiom for pass execution state.
package computegraph

import (
	"github.com/kiln-engine/kiln/core"
	"github.com/kiln-engine/kiln/gpu"
)

// Backend is the narrow compute surface a ComputeGraph needs from a
// renderer backend. HasCompute reports whether the backend implements
// compute dispatch at all; when false, Execute degrades to a no-op with
// a logged warning (§4.4 "Failure").
type Backend interface {
	HasCompute() bool
	ComputeDispatch(pipelineID uint32, groupX, groupY, groupZ uint32, pushConstants []byte) error
	ComputeMemoryBarrier() error
}

// Pass is one compute dispatch: a pipeline, a fixed dispatch size,
// copied push constants, and resource bindings declared at fixed slots.
type Pass struct {
	PipelineID uint32
	GroupX, GroupY, GroupZ uint32

	pushConstants []byte

	streamBindings map[uint32]*gpu.Stream
	readBindings   map[uint32]*gpu.DoubleBuffer
	writeBindings  map[uint32]*gpu.DoubleBuffer
}

func newPass(pipelineID, gx, gy, gz uint32) *Pass {
	return &Pass{
		PipelineID:     pipelineID,
		GroupX:         gx,
		GroupY:         gy,
		GroupZ:         gz,
		streamBindings: map[uint32]*gpu.Stream{},
		readBindings:   map[uint32]*gpu.DoubleBuffer{},
		writeBindings:  map[uint32]*gpu.DoubleBuffer{},
	}
}

// SetPushConstants copies data so the caller may reuse its buffer
// afterwards.
func (p *Pass) SetPushConstants(data []byte) {
	p.pushConstants = append([]byte(nil), data...)
}

// SetDispatchSize overrides the dispatch group counts set at add-time.
func (p *Pass) SetDispatchSize(x, y, z uint32) {
	p.GroupX, p.GroupY, p.GroupZ = x, y, z
}

// BindStream binds a single stream directly to slot.
func (p *Pass) BindStream(slot uint32, s *gpu.Stream) {
	p.streamBindings[slot] = s
}

// BindBufferRead binds the current "read" stream of db to slot,
// re-resolved at every Execute (so a swap between executions is
// observed).
func (p *Pass) BindBufferRead(slot uint32, db *gpu.DoubleBuffer) {
	p.readBindings[slot] = db
}

// BindBufferWrite binds the current "write" stream of db to slot.
func (p *Pass) BindBufferWrite(slot uint32, db *gpu.DoubleBuffer) {
	p.writeBindings[slot] = db
}

// Graph is an ordered list of compute passes executed in declaration
// order, with a memory barrier inserted between consecutive passes.
type Graph struct {
	passes []*Pass
}

func New() *Graph {
	return &Graph{}
}

// AddPass appends a new pass to the execution order and returns it for
// further configuration (push constants, bindings, dispatch size).
func (g *Graph) AddPass(pipelineID uint32, groupX, groupY, groupZ uint32) *Pass {
	p := newPass(pipelineID, groupX, groupY, groupZ)
	g.passes = append(g.passes, p)
	return p
}

// Execute dispatches every pass in order against backend. Resource
// bindings apply for exactly the pass that declared them (spec.md §8,
// invariant 6): bindings are re-latched per pass and never carried over.
// A backend without compute support degrades to a no-op with a warning.
// Streams with a nil handle are skipped, matching §4.4's failure
// semantics for a torn-down or never-created buffer.
func (g *Graph) Execute(backend Backend, logger *core.Logger) {
	if !backend.HasCompute() {
		if logger != nil {
			logger.LogWarn("computegraph: backend has no compute capability, skipping %d passes", len(g.passes))
		}
		return
	}

	for i, pass := range g.passes {
		for slot, s := range pass.streamBindings {
			if s == nil || s.Handle == nil {
				continue
			}
			if err := s.BindCompute(slot); err != nil && logger != nil {
				logger.LogError("computegraph: bind stream slot %d failed: %s", slot, err)
			}
		}
		for slot, db := range pass.readBindings {
			s := db.Read()
			if s == nil || s.Handle == nil {
				continue
			}
			if err := s.BindCompute(slot); err != nil && logger != nil {
				logger.LogError("computegraph: bind read slot %d failed: %s", slot, err)
			}
		}
		for slot, db := range pass.writeBindings {
			s := db.Write()
			if s == nil || s.Handle == nil {
				continue
			}
			if err := s.BindCompute(slot); err != nil && logger != nil {
				logger.LogError("computegraph: bind write slot %d failed: %s", slot, err)
			}
		}

		if err := backend.ComputeDispatch(pass.PipelineID, pass.GroupX, pass.GroupY, pass.GroupZ, pass.pushConstants); err != nil {
			if logger != nil {
				logger.LogError("computegraph: dispatch pass %d failed: %s", i, err)
			}
			continue
		}

		if i < len(g.passes)-1 {
			if err := backend.ComputeMemoryBarrier(); err != nil && logger != nil {
				logger.LogError("computegraph: memory barrier after pass %d failed: %s", i, err)
			}
		}
	}
}

// Passes exposes the declared passes, primarily for tests asserting on
// graph shape.
func (g *Graph) Passes() []*Pass { return g.passes }
