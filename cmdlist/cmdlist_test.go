package cmdlist

import (
	"reflect"
	"testing"

	"github.com/kiln-engine/kiln/gpu"
)

type recordingExecutor struct {
	calls []string
}

func (r *recordingExecutor) CmdBindPipeline(pipelineID uint32) { r.calls = append(r.calls, "bind_pipeline") }
func (r *recordingExecutor) CmdBindBuffer(slot uint32, s *gpu.Stream) {
	r.calls = append(r.calls, "bind_buffer")
}
func (r *recordingExecutor) CmdBindVertexBuffer(s *gpu.Stream) { r.calls = append(r.calls, "bind_vertex") }
func (r *recordingExecutor) CmdBindIndexBuffer(s *gpu.Stream)  { r.calls = append(r.calls, "bind_index") }
func (r *recordingExecutor) CmdPushConstants(data []byte)      { r.calls = append(r.calls, "push_constants") }
func (r *recordingExecutor) CmdSetViewport(v Viewport)         { r.calls = append(r.calls, "set_viewport") }
func (r *recordingExecutor) CmdSetScissor(s Scissor)           { r.calls = append(r.calls, "set_scissor") }
func (r *recordingExecutor) CmdDraw(vc, ic, fv, fi uint32)     { r.calls = append(r.calls, "draw") }
func (r *recordingExecutor) CmdDrawIndexed(ic, inst, fidx uint32, voff int32, finst uint32) {
	r.calls = append(r.calls, "draw_indexed")
}

func TestListReplaysInRecordedOrder(t *testing.T) {
	l := New()
	l.BindPipeline(1)
	l.SetViewport(Viewport{Width: 800, Height: 600})
	l.SetScissor(Scissor{Width: 800, Height: 600})
	l.BindBuffer(0, nil)
	l.Draw(3, 1, 0, 0)
	l.BindIndexBuffer(nil)
	l.DrawIndexed(6, 1, 0, 0, 0)

	exec := &recordingExecutor{}
	l.Replay(exec)

	want := []string{"bind_pipeline", "set_viewport", "set_scissor", "bind_buffer", "draw", "bind_index", "draw_indexed"}
	if !reflect.DeepEqual(exec.calls, want) {
		t.Fatalf("replay order = %v, want %v", exec.calls, want)
	}
}

// Invariant 5: a BindBuffer with no following draw call must not appear
// to have triggered descriptor allocation; the list only flags it so a
// backend's lazy-allocation policy can be asserted.
func TestTrailingBufferBindWithoutDrawIsFlagged(t *testing.T) {
	l := New()
	l.BindPipeline(1)
	l.BindBuffer(0, nil)

	if !l.HasTrailingBufferBindWithoutDraw() {
		t.Fatalf("expected trailing bind-without-draw to be flagged")
	}

	l.Reset()
	l.BindPipeline(1)
	l.BindBuffer(0, nil)
	l.Draw(3, 1, 0, 0)

	if l.HasTrailingBufferBindWithoutDraw() {
		t.Fatalf("expected flag cleared once a draw follows the bind")
	}
}

func TestResetClearsCommandsAndFlag(t *testing.T) {
	l := New()
	l.BindPipeline(1)
	l.BindBuffer(0, nil)
	l.Reset()

	if len(l.Commands()) != 0 {
		t.Fatalf("expected empty command list after reset, got %d", len(l.Commands()))
	}
	if l.HasTrailingBufferBindWithoutDraw() {
		t.Fatalf("expected flag cleared after reset")
	}
}

func TestPushConstantsCopiesData(t *testing.T) {
	l := New()
	data := []byte{1, 2, 3, 4}
	l.PushConstants(data)
	data[0] = 0xFF

	got := l.Commands()[0].PushConstants
	if got[0] != 1 {
		t.Fatalf("push constants were not copied: mutation leaked through")
	}
}
