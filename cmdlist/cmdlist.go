// Package cmdlist implements the backend-neutral render command list
// (spec.md §4.6 "RenderCommand"/"RenderCommandList"): a tagged union of
// draw-adjacent operations recorded during UI/graph execution and later
// replayed against a RendererBackend. Grounded on the teacher's
// engine/renderer/vulkan/command_buffer.go recording pattern, generalized
// from a Vulkan-only call sequence into a backend-agnostic value slice so
// the same list can be replayed by any backend.RendererBackend implementation,
// including a test stub.
package cmdlist

import "github.com/kiln-engine/kiln/gpu"

// Kind identifies which RenderCommand variant a Command holds.
type Kind int

const (
	KindBindPipeline Kind = iota
	KindBindBuffer
	KindBindVertexBuffer
	KindBindIndexBuffer
	KindPushConstants
	KindSetViewport
	KindSetScissor
	KindDraw
	KindDrawIndexed
)

// Viewport and Scissor are POD rectangles recorded verbatim, mirroring
// the VkViewport/VkRect2D split the teacher's Vulkan backend expects.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Scissor struct {
	X, Y          int32
	Width, Height uint32
}

// Command is a single tagged-union entry in a RenderCommandList. Only the
// fields relevant to Kind are meaningful; the rest are zero.
type Command struct {
	Kind Kind

	PipelineID uint32

	Buffer *gpu.Stream
	Slot   uint32

	PushConstants []byte

	Viewport Viewport
	Scissor  Scissor

	VertexCount, InstanceCount uint32
	IndexCount                 uint32
	FirstVertex, FirstInstance uint32
	FirstIndex                 uint32
	VertexOffset               int32
}

// List is an ordered sequence of commands built during a frame and
// replayed once against a backend.
type List struct {
	commands []Command

	// pendingBufferBind tracks whether a BindBuffer has been recorded since
	// the last pipeline bind without an intervening draw, so
	// HasTrailingBufferBindWithoutDraw can report invariant 5: binding a buffer never implicitly allocates a
	// descriptor set without a subsequent draw call.
	pendingBufferBind bool
}

func New() *List {
	return &List{}
}

func (l *List) BindPipeline(pipelineID uint32) {
	l.commands = append(l.commands, Command{Kind: KindBindPipeline, PipelineID: pipelineID})
	l.pendingBufferBind = false
}

func (l *List) BindBuffer(slot uint32, s *gpu.Stream) {
	l.commands = append(l.commands, Command{Kind: KindBindBuffer, Slot: slot, Buffer: s})
	l.pendingBufferBind = true
}

func (l *List) BindVertexBuffer(s *gpu.Stream) {
	l.commands = append(l.commands, Command{Kind: KindBindVertexBuffer, Buffer: s})
}

func (l *List) BindIndexBuffer(s *gpu.Stream) {
	l.commands = append(l.commands, Command{Kind: KindBindIndexBuffer, Buffer: s})
}

// PushConstants copies data so the caller may reuse its buffer.
func (l *List) PushConstants(data []byte) {
	l.commands = append(l.commands, Command{Kind: KindPushConstants, PushConstants: append([]byte(nil), data...)})
}

func (l *List) SetViewport(v Viewport) {
	l.commands = append(l.commands, Command{Kind: KindSetViewport, Viewport: v})
}

func (l *List) SetScissor(s Scissor) {
	l.commands = append(l.commands, Command{Kind: KindSetScissor, Scissor: s})
}

func (l *List) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	l.commands = append(l.commands, Command{
		Kind: KindDraw, VertexCount: vertexCount, InstanceCount: instanceCount,
		FirstVertex: firstVertex, FirstInstance: firstInstance,
	})
	l.pendingBufferBind = false
}

func (l *List) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	l.commands = append(l.commands, Command{
		Kind: KindDrawIndexed, IndexCount: indexCount, InstanceCount: instanceCount,
		FirstIndex: firstIndex, VertexOffset: vertexOffset, FirstInstance: firstInstance,
	})
	l.pendingBufferBind = false
}

// Commands exposes the recorded sequence for replay or inspection.
func (l *List) Commands() []Command { return l.commands }

// Reset clears the list for reuse across frames without reallocating its
// backing array.
func (l *List) Reset() {
	l.commands = l.commands[:0]
	l.pendingBufferBind = false
}

// Executor is the minimal backend surface needed to replay a Command
// list; backend.RendererBackend satisfies it structurally.
type Executor interface {
	CmdBindPipeline(pipelineID uint32)
	CmdBindBuffer(slot uint32, s *gpu.Stream)
	CmdBindVertexBuffer(s *gpu.Stream)
	CmdBindIndexBuffer(s *gpu.Stream)
	CmdPushConstants(data []byte)
	CmdSetViewport(v Viewport)
	CmdSetScissor(s Scissor)
	CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Replay executes every recorded command against exec in order.
func (l *List) Replay(exec Executor) {
	for _, c := range l.commands {
		switch c.Kind {
		case KindBindPipeline:
			exec.CmdBindPipeline(c.PipelineID)
		case KindBindBuffer:
			exec.CmdBindBuffer(c.Slot, c.Buffer)
		case KindBindVertexBuffer:
			exec.CmdBindVertexBuffer(c.Buffer)
		case KindBindIndexBuffer:
			exec.CmdBindIndexBuffer(c.Buffer)
		case KindPushConstants:
			exec.CmdPushConstants(c.PushConstants)
		case KindSetViewport:
			exec.CmdSetViewport(c.Viewport)
		case KindSetScissor:
			exec.CmdSetScissor(c.Scissor)
		case KindDraw:
			exec.CmdDraw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
		case KindDrawIndexed:
			exec.CmdDrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.VertexOffset, c.FirstInstance)
		}
	}
}

// HasTrailingBufferBindWithoutDraw reports whether the list ends with a
// BindBuffer that was never followed by a draw call, per invariant 5: a
// bind with no subsequent draw must never trigger descriptor allocation.
// Callers use this to assert a backend's lazy-allocation policy rather
// than the list itself allocating anything.
func (l *List) HasTrailingBufferBindWithoutDraw() bool {
	return l.pendingBufferBind
}
