package backend

import (
	"fmt"

	"github.com/kiln-engine/kiln/cmdlist"
	"github.com/kiln-engine/kiln/gpu"
)

// Stub is an in-memory RendererBackend used by package tests that need
// a real implementation of the interface without a GPU, mirroring the
// fake backends gpu/stream_test.go and computegraph/graph_test.go
// already use for their narrower interfaces.
type Stub struct {
	Initialized bool
	Width, Height uint32

	buffers map[*gpu.Stream][]byte
	boundCompute map[uint32]*gpu.Stream
	boundGfx     map[uint32]*gpu.Stream

	nextPipeline PipelineHandle
	nextTexture  TextureHandle
	textures     map[TextureHandle]textureState

	computeEnabled bool
	dispatches     []uint32
	barriers       int

	screenshotPath string

	SubmittedLists int
	replayLog      []string
}

type textureState struct {
	width, height uint32
	format        TextureFormat
}

// NewStub constructs a Stub with compute support enabled by default.
func NewStub() *Stub {
	return &Stub{
		buffers:        map[*gpu.Stream][]byte{},
		boundCompute:   map[uint32]*gpu.Stream{},
		boundGfx:       map[uint32]*gpu.Stream{},
		textures:       map[TextureHandle]textureState{},
		computeEnabled: true,
	}
}

func (s *Stub) Init(params InitParams) error {
	s.Initialized = true
	s.Width, s.Height = params.Width, params.Height
	return nil
}

func (s *Stub) Cleanup() { s.Initialized = false }

func (s *Stub) SubmitCommands(cmds *cmdlist.List) error {
	s.SubmittedLists++
	cmds.Replay(s)
	return nil
}

func (s *Stub) UpdateViewport(width, height uint32) error {
	s.Width, s.Height = width, height
	return nil
}

func (s *Stub) RequestScreenshot(path string) { s.screenshotPath = path }

// PendingScreenshotPath exposes the latched path for tests; real
// backends consume it during the next SubmitCommands (§4.11).
func (s *Stub) PendingScreenshotPath() string { return s.screenshotPath }

func (s *Stub) HasCompute() bool { return s.computeEnabled }

// SetComputeEnabled lets tests exercise the "backend has no compute"
// degrade-to-no-op path (spec.md §4.4).
func (s *Stub) SetComputeEnabled(v bool) { s.computeEnabled = v }

func (s *Stub) ComputePipelineCreate(spirv []byte, layout PipelineLayout) (PipelineHandle, error) {
	if len(spirv) == 0 {
		return InvalidPipelineHandle, fmt.Errorf("backend: empty SPIR-V blob")
	}
	s.nextPipeline++
	return s.nextPipeline, nil
}

func (s *Stub) ComputePipelineDestroy(id PipelineHandle) {}

func (s *Stub) ComputeDispatch(pipelineID uint32, gx, gy, gz uint32, push []byte) error {
	s.dispatches = append(s.dispatches, pipelineID)
	return nil
}

func (s *Stub) ComputeWait() error { return nil }

func (s *Stub) ComputeMemoryBarrier() error {
	s.barriers++
	return nil
}

func (s *Stub) CompileShader(src []byte, stage ShaderStage) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func (s *Stub) GraphicsPipelineCreate(vert, frag []byte, layout PipelineLayout) (PipelineHandle, error) {
	if len(vert) == 0 || len(frag) == 0 {
		return InvalidPipelineHandle, fmt.Errorf("backend: empty shader stage")
	}
	s.nextPipeline++
	return s.nextPipeline, nil
}

func (s *Stub) GraphicsPipelineDestroy(id PipelineHandle) {}

func (s *Stub) TextureCreate(width, height uint32, format TextureFormat) (TextureHandle, error) {
	s.nextTexture++
	s.textures[s.nextTexture] = textureState{width, height, format}
	return s.nextTexture, nil
}

func (s *Stub) TextureDestroy(id TextureHandle) { delete(s.textures, id) }

func (s *Stub) TextureResize(id TextureHandle, width, height uint32) error {
	t, ok := s.textures[id]
	if !ok {
		return fmt.Errorf("backend: unknown texture handle %d", id)
	}
	t.width, t.height = width, height
	s.textures[id] = t
	return nil
}

func (s *Stub) TextureGetDescriptor(id TextureHandle) (uint64, error) {
	if _, ok := s.textures[id]; !ok {
		return 0, fmt.Errorf("backend: unknown texture handle %d", id)
	}
	return uint64(id), nil
}

// gpu.Backend

func (s *Stub) BufferCreate(stream *gpu.Stream) error {
	s.buffers[stream] = make([]byte, stream.TotalSize)
	stream.HostVisible = true
	stream.Handle = stream
	return nil
}

func (s *Stub) BufferDestroy(stream *gpu.Stream) {
	delete(s.buffers, stream)
	for k, v := range s.boundCompute {
		if v == stream {
			delete(s.boundCompute, k)
		}
	}
	for k, v := range s.boundGfx {
		if v == stream {
			delete(s.boundGfx, k)
		}
	}
}

func (s *Stub) BufferMap(stream *gpu.Stream) ([]byte, error) { return s.buffers[stream], nil }
func (s *Stub) BufferUnmap(stream *gpu.Stream) error         { return nil }

func (s *Stub) BufferUpload(stream *gpu.Stream, data []byte, count uint64) error {
	copy(s.buffers[stream], data)
	return nil
}

func (s *Stub) BufferRead(stream *gpu.Stream, out []byte, count uint64) error {
	copy(out, s.buffers[stream][:len(out)])
	return nil
}

func (s *Stub) ComputeBindBuffer(stream *gpu.Stream, slot uint32) error {
	s.boundCompute[slot] = stream
	return nil
}

func (s *Stub) GraphicsBindBuffer(stream *gpu.Stream, slot uint32) error {
	s.boundGfx[slot] = stream
	return nil
}

// cmdlist.Executor

func (s *Stub) CmdBindPipeline(pipelineID uint32) { s.replayLog = append(s.replayLog, "bind_pipeline") }
func (s *Stub) CmdBindBuffer(slot uint32, stream *gpu.Stream) {
	s.replayLog = append(s.replayLog, "bind_buffer")
}
func (s *Stub) CmdBindVertexBuffer(stream *gpu.Stream) {
	s.replayLog = append(s.replayLog, "bind_vertex")
}
func (s *Stub) CmdBindIndexBuffer(stream *gpu.Stream) {
	s.replayLog = append(s.replayLog, "bind_index")
}
func (s *Stub) CmdPushConstants(data []byte) { s.replayLog = append(s.replayLog, "push_constants") }
func (s *Stub) CmdSetViewport(v cmdlist.Viewport) { s.replayLog = append(s.replayLog, "set_viewport") }
func (s *Stub) CmdSetScissor(sc cmdlist.Scissor)  { s.replayLog = append(s.replayLog, "set_scissor") }
func (s *Stub) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	s.replayLog = append(s.replayLog, "draw")
}
func (s *Stub) CmdDrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	s.replayLog = append(s.replayLog, "draw_indexed")
}

// ReplayLog exposes the recorded CmdXxx call sequence for tests.
func (s *Stub) ReplayLog() []string { return s.replayLog }

// Dispatches and Barriers expose compute-graph interaction state.
func (s *Stub) Dispatches() []uint32 { return s.dispatches }
func (s *Stub) Barriers() int        { return s.barriers }
