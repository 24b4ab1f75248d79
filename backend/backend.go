// Package backend defines RendererBackend, the narrow-waist v-table
// every GPU implementation must satisfy (spec.md §4.6), plus the shared
// value types its methods exchange with callers (rendergraph, cmdlist,
// computegraph, the engine). Grounded on the teacher's
// engine/renderer/vulkan package boundary: the teacher hard-wires a
// single Vulkan implementation behind a handful of free functions; here
// that surface is pulled out into an interface so backend/vulkan and a
// test stub can both satisfy it, the same narrowing gpu.Backend already
// applies to buffer operations alone.
package backend

import (
	"github.com/kiln-engine/kiln/cmdlist"
	"github.com/kiln-engine/kiln/gpu"
)

// TextureFormat enumerates the texture formats §4.6 requires a backend
// to support for texture_create.
type TextureFormat int

const (
	TextureFormatRGBA8 TextureFormat = iota
	TextureFormatRGBA16F
	TextureFormatD32
)

// PipelineLayout selects one of the three fixed pipeline layout
// conventions described in §4.6.
type PipelineLayout int

const (
	LayoutDefaultUI PipelineLayout = iota
	LayoutZeroCopy
	LayoutCompute
)

// ShaderStage identifies which stage(s) a push-constant range or
// compiled shader targets.
type ShaderStage int

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute
)

// InitParams carries everything RendererBackend.Init needs to attach to
// a live window and bring up the device (spec.md §4.1/§4.6): a platform
// surface provider, the optional logger, and initial framebuffer size.
type InitParams struct {
	Platform       PlatformSurface
	Logger         interface {
		LogInfo(string, ...interface{})
		LogWarn(string, ...interface{})
		LogError(string, ...interface{})
	}
	Width, Height uint32
	AppName       string
}

// PlatformSurface is the slice of the platform package a backend needs
// at init time, narrowed to avoid an import cycle between backend and
// platform (platform does not need to know about RendererBackend).
type PlatformSurface interface {
	RequiredInstanceExtensions() []string
	FramebufferSize() (uint32, uint32)
	CreateSurface(instance uintptr) (uintptr, error)
}

// TextureHandle, PipelineHandle are opaque, backend-assigned ids; 0 is
// always invalid (spec.md §4.6 "id≥1 or 0").
type TextureHandle uint32
type PipelineHandle uint32

const InvalidTextureHandle TextureHandle = 0
const InvalidPipelineHandle PipelineHandle = 0

// RendererBackend is the abstract v-table spec.md §4.6 describes.
// Buffer operations are inherited structurally from gpu.Backend so a
// RendererBackend doubles as the Backend a gpu.Stream binds against.
// Command replay is inherited structurally from cmdlist.Executor so a
// RendererBackend can directly replay a cmdlist.List.
type RendererBackend interface {
	gpu.Backend
	cmdlist.Executor

	Init(params InitParams) error
	Cleanup()

	SubmitCommands(cmds *cmdlist.List) error
	UpdateViewport(width, height uint32) error

	RequestScreenshot(path string)

	HasCompute() bool
	ComputePipelineCreate(spirv []byte, layout PipelineLayout) (PipelineHandle, error)
	ComputePipelineDestroy(id PipelineHandle)
	ComputeDispatch(pipelineID uint32, groupX, groupY, groupZ uint32, pushConstants []byte) error
	ComputeWait() error
	ComputeMemoryBarrier() error
	CompileShader(src []byte, stage ShaderStage) ([]byte, error)

	GraphicsPipelineCreate(vert, frag []byte, layout PipelineLayout) (PipelineHandle, error)
	GraphicsPipelineDestroy(id PipelineHandle)

	TextureCreate(width, height uint32, format TextureFormat) (TextureHandle, error)
	TextureDestroy(id TextureHandle)
	TextureResize(id TextureHandle, width, height uint32) error
	TextureGetDescriptor(id TextureHandle) (uint64, error)
}
