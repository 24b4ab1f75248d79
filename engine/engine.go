// Package engine ties platform, backend, framepacket, font, and ui
// together into the top-level Initialize/Run/Shutdown lifecycle (spec.md
// §4.12). Grounded on the teacher's Engine+ApplicationCreate/Run stage
// machine (engine/engine.go, engine/application.go): the Stage enum and
// the overall boot sequence survive, but application-global state
// (appState, sync.Once singletons, an event-bus-driven Game callback
// struct) is replaced with an explicit *Engine value and a typed
// logicFn, since kiln has one engine per process rather than the
// teacher's process-global ApplicationState.
package engine

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/kiln-engine/kiln/backend"
	"github.com/kiln-engine/kiln/backend/vulkan"
	"github.com/kiln-engine/kiln/computegraph"
	"github.com/kiln-engine/kiln/core"
	"github.com/kiln-engine/kiln/font"
	"github.com/kiln-engine/kiln/framepacket"
	"github.com/kiln-engine/kiln/gpu"
	"github.com/kiln-engine/kiln/platform"
)

// Stage mirrors the teacher's EngineStage* constants, trimmed to the
// states an explicit *Engine value actually passes through (no separate
// Booting/BootComplete split, since Initialize no longer runs in two
// phases).
type Stage uint8

const (
	StageUninitialized Stage = iota
	StageInitializing
	StageInitialized
	StageRunning
	StageShuttingDown
)

// Engine owns every long-lived subsystem and drives the logic/render
// goroutine pair described in §4.9.
type Engine struct {
	mu    sync.Mutex
	stage Stage

	cfg      *core.Config
	logger   *core.Logger
	platform *platform.Platform
	backend  backend.RendererBackend
	pipeline *framepacket.Pipeline[Packet]
	atlas    *font.Atlas
	watcher  *core.ShaderWatcher

	resources       *backend.ResourceRegistry
	metrics         *core.Metrics
	fontTextureID   uuid.UUID
	defaultPipeline backend.PipelineHandle
	instanceStream  *gpu.Stream
	width, height   uint32

	// Instance culling: an optional compute pre-pass that reads the raw
	// per-frame instance upload (instanceStream) and writes a ping-pong
	// buffer the graphics draw reads instead, when a cull.spv shader is
	// present next to the other default shaders.
	computePipeline backend.PipelineHandle
	computeGraph    *computegraph.Graph
	cullPass        *computegraph.Pass
	cullA, cullB    *gpu.Stream
	instanceDouble  *gpu.DoubleBuffer
}

// New constructs an unattached Engine; call Initialize to bring up the
// window and device.
func New() *Engine {
	return &Engine{
		stage:     StageUninitialized,
		pipeline:  framepacket.New[Packet](),
		resources: backend.NewResourceRegistry(),
		metrics:   core.NewMetrics(),
	}
}

// Metrics exposes the rolling FPS/frame-time averager updated once per
// logic tick.
func (e *Engine) Metrics() *core.Metrics { return e.metrics }

func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

func (e *Engine) setStage(s Stage) {
	e.mu.Lock()
	e.stage = s
	e.mu.Unlock()
}

// Logger exposes the configured logger so caller-owned logic functions
// can share it.
func (e *Engine) Logger() *core.Logger { return e.logger }

// Initialize loads cfg, starts the platform window, builds the font
// atlas, constructs the Vulkan backend, and registers an fsnotify watch
// on cfg.ShaderDir, matching §4.12's Initialize contract.
func (e *Engine) Initialize(cfg *core.Config) error {
	e.setStage(StageInitializing)
	e.cfg = cfg

	logger, err := core.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("engine: logger: %w", err)
	}
	e.logger = logger

	p, err := platform.New()
	if err != nil {
		return fmt.Errorf("engine: platform: %w", err)
	}
	if err := p.Startup("kiln", 0, 0, 1280, 720); err != nil {
		return fmt.Errorf("engine: platform startup: %w", err)
	}
	e.platform = p

	if cfg.FontPath != "" {
		if ttf, err := os.ReadFile(cfg.FontPath); err != nil {
			logger.LogWarn("font atlas disabled, could not read %s: %s", cfg.FontPath, err)
		} else {
			atlas, err := font.Build(ttf, 18, font.DefaultAtlasSize, font.DefaultRanges)
			if err != nil {
				logger.LogWarn("font atlas build failed: %s", err)
			} else {
				e.atlas = atlas
			}
		}
	}

	vb := vulkan.New()
	w, h := p.FramebufferSize()
	if err := vb.Init(backend.InitParams{
		Platform: p,
		Logger:   logger,
		Width:    w,
		Height:   h,
		AppName:  "kiln",
	}); err != nil {
		return fmt.Errorf("engine: backend init: %w", err)
	}
	e.backend = vb
	e.width, e.height = w, h

	// The backend's first TextureCreate call always doubles as the font
	// atlas image (§4.6): mint a stable logical id for it here so the
	// engine can refer to "the font atlas texture" by uuid across a
	// future texture_resize rather than the backend's raw TextureHandle.
	if e.atlas != nil {
		texID, err := e.backend.TextureCreate(uint32(e.atlas.Width), uint32(e.atlas.Height), backend.TextureFormatRGBA8)
		if err != nil {
			logger.LogWarn("font atlas texture creation failed: %s", err)
		} else {
			e.fontTextureID = e.resources.RegisterTexture(texID)
		}
	}

	if cfg.ShaderDir != "" {
		watcher, err := core.NewShaderWatcher(cfg.ShaderDir, logger, e.onShaderChanged)
		if err != nil {
			logger.LogWarn("shader hot-reload disabled: %s", err)
		} else {
			e.watcher = watcher
		}

		e.loadDefaultPipeline(cfg.ShaderDir)
		e.loadComputePipeline(cfg.ShaderDir)
	}

	e.setStage(StageInitialized)
	return nil
}

// loadComputePipeline looks for a precompiled instance-culling compute
// shader next to the graphics pipeline's shaders. Its absence is never
// fatal (§7): the engine just draws every frame's raw instance upload
// directly, skipping the compute pre-pass entirely.
func (e *Engine) loadComputePipeline(shaderDir string) {
	spv, err := os.ReadFile(shaderDir + "/cull.spv")
	if err != nil {
		e.logger.LogWarn("no instance-culling compute shader at %s/cull.spv: %s", shaderDir, err)
		return
	}
	id, err := e.backend.ComputePipelineCreate(spv, backend.LayoutCompute)
	if err != nil {
		e.logger.LogWarn("compute pipeline creation failed: %s", err)
		return
	}
	e.computePipeline = id
}

// loadDefaultPipeline looks for precompiled vert.spv/frag.spv next to the
// watched shader directory and, if both are present, creates pipeline 0
// (backend.LayoutDefaultUI auto-latches the first such pipeline as its
// default, per §4.6). Shader compilation failure is never fatal (§7:
// "caller decides"): a missing or invalid pair just leaves the engine
// without a default pipeline until one is created explicitly.
func (e *Engine) loadDefaultPipeline(shaderDir string) {
	vert, err := os.ReadFile(shaderDir + "/vert.spv")
	if err != nil {
		e.logger.LogWarn("no default vertex shader at %s/vert.spv: %s", shaderDir, err)
		return
	}
	frag, err := os.ReadFile(shaderDir + "/frag.spv")
	if err != nil {
		e.logger.LogWarn("no default fragment shader at %s/frag.spv: %s", shaderDir, err)
		return
	}
	id, err := e.backend.GraphicsPipelineCreate(vert, frag, backend.LayoutDefaultUI)
	if err != nil {
		e.logger.LogWarn("default pipeline creation failed: %s", err)
		return
	}
	e.defaultPipeline = id
}

func (e *Engine) onShaderChanged(path string) {
	e.logger.LogInfo("shader source changed: %s", path)
}

// RequestScreenshot forwards to the backend, matching §4.11.
func (e *Engine) RequestScreenshot(path string) {
	if e.backend != nil {
		e.backend.RequestScreenshot(path)
	}
}

// Shutdown tears down every subsystem Initialize brought up, in reverse
// order.
func (e *Engine) Shutdown() error {
	e.setStage(StageShuttingDown)
	if e.instanceStream != nil {
		e.instanceStream.Destroy()
	}
	if e.cullA != nil {
		e.cullA.Destroy()
	}
	if e.cullB != nil {
		e.cullB.Destroy()
	}
	if e.computePipeline != backend.InvalidPipelineHandle && e.backend != nil {
		e.backend.ComputePipelineDestroy(e.computePipeline)
	}
	if e.watcher != nil {
		e.watcher.Close()
	}
	if texID, ok := e.resources.Texture(e.fontTextureID); ok && e.backend != nil {
		e.backend.TextureDestroy(texID)
		e.resources.ForgetTexture(e.fontTextureID)
	}
	if e.backend != nil {
		e.backend.Cleanup()
	}
	if e.platform != nil {
		e.platform.Shutdown()
	}
	return nil
}
