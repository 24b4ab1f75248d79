// Package vulkan implements backend.RendererBackend against the Vulkan
// API via github.com/goki/vulkan, grounded on the teacher's
// engine/renderer/vulkan package: the same instance/device/swapchain/
// renderpass/command-buffer/sync-object lifecycle, generalized from a
// single hard-wired 3D mesh renderer into the narrow backend.RendererBackend
// v-table spec.md §4.6 describes, with the teacher's two known bugs
// (NewVulkanCommandBuffer discarding its own allocation,
// RenderpassBegin's body being entirely commented out) fixed rather than
// carried forward.
package vulkan

import (
	"bytes"
	"fmt"
	stdimage "image"
	"image/png"
	"math"
	"os"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/kiln-engine/kiln/backend"
	"github.com/kiln-engine/kiln/cmdlist"
	"github.com/kiln-engine/kiln/gpu"
)

type backendLogger interface {
	LogInfo(string, ...interface{})
	LogWarn(string, ...interface{})
	LogError(string, ...interface{})
}

// fatalLogger is the widened logger interface fatalVk prefers when the
// caller's logger supports it; core.Logger (package core) satisfies it.
type fatalLogger interface {
	LogFatal(string, ...interface{})
}

// fatalHook, set via WithFatalHook, lets tests observe a "fatal" Vulkan
// error without the process actually dying through LogFatal's
// charmbracelet/log Fatalf call (§7 error handling design).
var fatalHook func(msg string)

// WithFatalHook installs h in place of the default LogFatal escalation
// for the remainder of the process; pass nil to restore default
// behaviour. Test seam only.
func WithFatalHook(h func(msg string)) { fatalHook = h }

func fatalVk(logger backendLogger, msg string, res vk.Result) error {
	full := fmt.Sprintf("%s: %s", msg, resultString(res))
	if fatalHook != nil {
		fatalHook(full)
	} else if fl, ok := logger.(fatalLogger); ok {
		fl.LogFatal(full)
	} else if logger != nil {
		logger.LogError(full)
	}
	return fmt.Errorf("vulkan: %s", full)
}

// texture wraps an *image with the descriptor state texture_get_descriptor
// and the default-UI/zero-copy sampler sets lazily populate. set is the
// storage-image convention (compute Set 0, texture_get_descriptor's
// return value); uiSets caches one combined-image-sampler descriptor per
// backend.PipelineLayout that reads this texture (keyed by convention
// since each has its own vk.DescriptorSetLayout even for an
// identically-shaped single-sampler set).
type texture struct {
	img    *image
	format backend.TextureFormat
	set    vk.DescriptorSet
	uiSets map[backend.PipelineLayout]vk.DescriptorSet
}

// Backend implements backend.RendererBackend. Constructed blank via New
// and brought up by Init, so a single value can be torn down and fully
// re-constructed on device loss (§4.10) without the caller re-wiring
// anything.
type Backend struct {
	logger  backendLogger
	params  backend.InitParams
	appName string
	debug   bool

	ctx *context

	pipelines      map[backend.PipelineHandle]*pipeline
	nextPipelineID uint32
	defaultPipeline *pipeline

	textures      map[backend.TextureHandle]*texture
	nextTextureID  uint32
	lastTextureID  backend.TextureHandle

	defaultVertexBuffer *buffer
	defaultIndexBuffer  *buffer

	fontImage *image
	fontSet   vk.DescriptorSet

	pendingGraphics map[uint32]*gpu.Stream
	pendingCompute  map[uint32]*gpu.Stream
	bindingsDirty   bool

	currentPipeline *pipeline
	recording       *commandBuffer

	computeCB   *commandBuffer
	computeSets []vk.DescriptorSet

	screenshotPending bool
	screenshotPath    string
}

// New constructs an unattached Backend; call Init to bring it up.
func New() *Backend {
	return &Backend{
		pipelines:       make(map[backend.PipelineHandle]*pipeline),
		textures:        make(map[backend.TextureHandle]*texture),
		pendingGraphics: make(map[uint32]*gpu.Stream),
		pendingCompute:  make(map[uint32]*gpu.Stream),
		debug:           true,
	}
}

// Init attaches to params.Platform's window: instance, optional debug
// messenger, surface, device, swapchain, render pass, framebuffers,
// command buffers, sync objects, descriptor-set layouts/pool, and the
// unit-quad vertex/index buffers the default UI layout draws instanced
// quads against. Adapted from the teacher's VulkanRenderer.Initialize.
func (vb *Backend) Init(params backend.InitParams) error {
	vb.params = params
	vb.logger = params.Logger
	vb.appName = params.AppName

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("vulkan: glfw GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vulkan: init loader: %w", err)
	}

	c := &context{locks: newLockPool(), framebufferWidth: params.Width, framebufferHeight: params.Height, debug: vb.debug}
	vb.ctx = c

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(params.AppName),
		PEngineName:        safeString("kiln"),
	}
	createInfo := vk.InstanceCreateInfo{SType: vk.StructureTypeInstanceCreateInfo, PApplicationInfo: appInfo}

	extensions := append([]string{"VK_KHR_surface"}, params.Platform.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
	}
	if vb.debug {
		extensions = append(extensions, vk.ExtDebugUtilsExtensionName, vk.ExtDebugReportExtensionName)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)

	var layers []string
	if vb.debug {
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	if res := vk.CreateInstance(&createInfo, c.allocator, &c.instance); !resultIsSuccess(res) {
		return fatalVk(vb.logger, "create instance", res)
	}
	if err := vk.InitInstance(c.instance); err != nil {
		return fmt.Errorf("vulkan: init instance: %w", err)
	}

	if vb.debug {
		dbgInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: vb.debugCallback,
		}
		if err := vk.Error(vk.CreateDebugReportCallback(c.instance, &dbgInfo, nil, &c.debugMessenger)); err != nil {
			vb.logWarn("vulkan: debug report callback unavailable: %s", err)
		}
	}

	surfacePtr, err := params.Platform.CreateSurface(uintptr(c.instance))
	if err != nil {
		return fmt.Errorf("vulkan: create surface: %w", err)
	}
	c.surface = vk.SurfaceFromPointer(surfacePtr)

	if err := createDevice(c); err != nil {
		return fmt.Errorf("vulkan: create device: %w", err)
	}

	sc, err := createSwapchain(c, c.framebufferWidth, c.framebufferHeight)
	if err != nil {
		return fmt.Errorf("vulkan: create swapchain: %w", err)
	}
	c.swapchain = sc

	rp, err := createRenderpass(c, 0, 0, float32(c.framebufferWidth), float32(c.framebufferHeight), 0.1, 0.1, 0.12, 1.0, 1.0, 0)
	if err != nil {
		return fmt.Errorf("vulkan: create renderpass: %w", err)
	}
	c.mainRenderpass = rp

	if err := regenerateFramebuffers(c); err != nil {
		return fmt.Errorf("vulkan: create framebuffers: %w", err)
	}
	if err := createCommandBuffers(c); err != nil {
		return fmt.Errorf("vulkan: create command buffers: %w", err)
	}
	if err := createSyncObjects(c); err != nil {
		return fmt.Errorf("vulkan: create sync objects: %w", err)
	}
	if err := createDescriptorSetLayouts(c); err != nil {
		return fmt.Errorf("vulkan: create descriptor set layouts: %w", err)
	}
	if err := createDescriptorPool(c); err != nil {
		return fmt.Errorf("vulkan: create descriptor pool: %w", err)
	}

	if err := vb.createDefaultGeometry(); err != nil {
		return fmt.Errorf("vulkan: create default geometry: %w", err)
	}

	vb.logInfo("vulkan backend initialized (%dx%d)", c.framebufferWidth, c.framebufferHeight)
	return nil
}

// createDefaultGeometry uploads the unit quad every default-UI instanced
// draw reuses: four vec2 corners plus a two-triangle index list.
func (vb *Backend) createDefaultGeometry() error {
	c := vb.ctx
	verts := []byte{}
	for _, v := range [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
		verts = append(verts, f32le(v[0])...)
		verts = append(verts, f32le(v[1])...)
	}
	vbuf, err := createDeviceBuffer(c, uint64(len(verts)), false)
	if err != nil {
		return err
	}
	staged, err := createDeviceBuffer(c, uint64(len(verts)), true)
	if err != nil {
		return err
	}
	defer staged.destroy(c)
	mapped, err := mapStaging(c, staged, uint64(len(verts)))
	if err != nil {
		return err
	}
	copy(mapped, verts)
	unmapStaging(c, staged)
	if err := copyBuffer(c, staged, vbuf, vk.DeviceSize(len(verts))); err != nil {
		return err
	}
	vb.defaultVertexBuffer = vbuf

	idx := []byte{}
	for _, i := range []uint16{0, 1, 2, 2, 3, 0} {
		idx = append(idx, byte(i), byte(i>>8))
	}
	ibuf, err := createDeviceBuffer(c, uint64(len(idx)), false)
	if err != nil {
		return err
	}
	stagedIdx, err := createDeviceBuffer(c, uint64(len(idx)), true)
	if err != nil {
		return err
	}
	defer stagedIdx.destroy(c)
	mappedIdx, err := mapStaging(c, stagedIdx, uint64(len(idx)))
	if err != nil {
		return err
	}
	copy(mappedIdx, idx)
	unmapStaging(c, stagedIdx)
	if err := copyBuffer(c, stagedIdx, ibuf, vk.DeviceSize(len(idx))); err != nil {
		return err
	}
	vb.defaultIndexBuffer = ibuf
	return nil
}

func mapStaging(c *context, b *buffer, size uint64) ([]byte, error) {
	var mapped unsafe.Pointer
	if res := vk.MapMemory(c.device.logicalDevice, b.memory, 0, vk.DeviceSize(size), 0, &mapped); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: map staging: %s", resultString(res))
	}
	return bytesFromPointer(mapped, int(size)), nil
}

func unmapStaging(c *context, b *buffer) {
	vk.UnmapMemory(c.device.logicalDevice, b.memory)
}

func f32le(v float32) []byte {
	bits := math.Float32bits(v)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

// Cleanup waits for the device to idle then tears everything down in
// reverse creation order, mirroring the teacher's VulkanRenderer.Shutdow.
func (vb *Backend) Cleanup() {
	c := vb.ctx
	if c == nil || c.device == nil || c.device.logicalDevice == nil {
		return
	}
	vk.DeviceWaitIdle(c.device.logicalDevice)

	for id, p := range vb.pipelines {
		p.destroy(c)
		delete(vb.pipelines, id)
	}
	for id, t := range vb.textures {
		t.img.destroy(c)
		delete(vb.textures, id)
	}
	if vb.fontImage != nil {
		vb.fontImage.destroy(c)
		vb.fontImage = nil
	}
	if vb.defaultVertexBuffer != nil {
		vb.defaultVertexBuffer.destroy(c)
	}
	if vb.defaultIndexBuffer != nil {
		vb.defaultIndexBuffer.destroy(c)
	}

	for _, layout := range c.pipelineLayouts {
		if layout != nil {
			vk.DestroyPipelineLayout(c.device.logicalDevice, layout, c.allocator)
		}
	}
	destroyDescriptorSetLayouts(c)
	destroyDescriptorPool(c)

	destroySyncObjects(c)

	for _, cb := range c.graphicsCommandBuffers {
		cb.free(c, c.device.graphicsCommandPool)
	}
	c.graphicsCommandBuffers = nil

	for _, fb := range c.swapchain.framebuffers {
		fb.destroy(c)
	}
	c.mainRenderpass.destroy(c)
	c.swapchain.destroy(c)

	destroyDevice(c)

	if c.surface != nil {
		vk.DestroySurface(c.instance, c.surface, c.allocator)
		c.surface = nil
	}
	if vb.debug && c.debugMessenger != nil {
		vk.DestroyDebugReportCallback(c.instance, c.debugMessenger, c.allocator)
	}
	vk.DestroyInstance(c.instance, c.allocator)
}

func (vb *Backend) logInfo(msg string, args ...interface{}) {
	if vb.logger != nil {
		vb.logger.LogInfo(msg, args...)
	}
}
func (vb *Backend) logWarn(msg string, args ...interface{}) {
	if vb.logger != nil {
		vb.logger.LogWarn(msg, args...)
	}
}
func (vb *Backend) logError(msg string, args ...interface{}) {
	if vb.logger != nil {
		vb.logger.LogError(msg, args...)
	}
}

func (vb *Backend) debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64,
	location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	vb.logWarn("vulkan[%s]: %s", pLayerPrefix, pMessage)
	return vk.Bool32(vk.False)
}

// UpdateViewport recreates swapchain-dependent objects at the new size,
// mirroring the teacher's Resized + recreateSwapchain path.
func (vb *Backend) UpdateViewport(width, height uint32) error {
	c := vb.ctx
	if width == 0 || height == 0 {
		return nil
	}
	vk.DeviceWaitIdle(c.device.logicalDevice)

	c.framebufferWidth, c.framebufferHeight = width, height
	for _, fb := range c.swapchain.framebuffers {
		fb.destroy(c)
	}
	sc, err := c.swapchain.recreate(c, width, height)
	if err != nil {
		return fmt.Errorf("vulkan: recreate swapchain: %w", err)
	}
	c.swapchain = sc
	c.mainRenderpass.w, c.mainRenderpass.h = float32(width), float32(height)
	if err := regenerateFramebuffers(c); err != nil {
		return fmt.Errorf("vulkan: regenerate framebuffers: %w", err)
	}
	destroySyncObjects(c)
	if err := createSyncObjects(c); err != nil {
		return fmt.Errorf("vulkan: recreate sync objects: %w", err)
	}
	return nil
}

// RequestScreenshot latches path + a pending flag; the next
// SubmitCommands performs the readback (§4.11).
func (vb *Backend) RequestScreenshot(path string) {
	vb.screenshotPending = true
	vb.screenshotPath = path
}

// ssboBindingCountFor bounds how many bindings of a set this convention
// actually declared (descriptor.go), so draw/dispatch-time writes never
// touch a binding index the set layout didn't create.
func ssboBindingCountFor(kind backend.PipelineLayout) uint32 {
	if kind == backend.LayoutDefaultUI {
		return 1
	}
	return maxSSBOBindings
}

func freeSet(c *context, pool vk.DescriptorPool, set vk.DescriptorSet) {
	if set == nil {
		return
	}
	vk.FreeDescriptorSets(c.device.logicalDevice, pool, 1, []vk.DescriptorSet{set})
}

// --- compute ---

// HasCompute reports whether this backend can dispatch compute work.
// The graphics queue family this backend selects always advertises
// compute per the Vulkan spec's "graphics implies compute on at least
// one queue family" guidance devices in practice honor, so this is
// unconditionally true rather than a capability probe.
func (vb *Backend) HasCompute() bool { return true }

func (vb *Backend) ComputePipelineCreate(spirv []byte, layout backend.PipelineLayout) (backend.PipelineHandle, error) {
	p, err := createComputePipeline(vb.ctx, spirv, layout)
	if err != nil {
		return backend.InvalidPipelineHandle, err
	}
	vb.nextPipelineID++
	id := backend.PipelineHandle(vb.nextPipelineID)
	vb.pipelines[id] = p
	return id, nil
}

func (vb *Backend) ComputePipelineDestroy(id backend.PipelineHandle) {
	if p, ok := vb.pipelines[id]; ok {
		p.destroy(vb.ctx)
		delete(vb.pipelines, id)
	}
}

func (vb *Backend) ensureComputeRecording() error {
	if vb.computeCB != nil {
		return nil
	}
	cb, err := oneShotBegin(vb.ctx, vb.ctx.device.graphicsCommandPool)
	if err != nil {
		return err
	}
	vb.computeCB = cb
	return nil
}

func (vb *Backend) allocateSSBOSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout, count uint32, pending map[uint32]*gpu.Stream) (vk.DescriptorSet, error) {
	set, err := allocateSet(vb.ctx, pool, layout)
	if err != nil {
		return nil, err
	}
	fallback := pending[0]
	for i := uint32(0); i < count; i++ {
		s := pending[i]
		if s == nil {
			s = fallback
		}
		if s == nil {
			continue
		}
		b, ok := s.Handle.(*buffer)
		if !ok || b == nil {
			continue
		}
		writeSSBOBinding(vb.ctx, set, i, b.handle, b.size)
	}
	return set, nil
}

// ComputeDispatch binds pipelineID, rebinds the pending SSBO bindings
// (and, if a texture exists, the storage-image Set 0) then dispatches,
// grounding §4.4 ComputeGraph.execute's per-pass resource rebind.
func (vb *Backend) ComputeDispatch(pipelineID uint32, groupX, groupY, groupZ uint32, pushConstants []byte) error {
	p, ok := vb.pipelines[backend.PipelineHandle(pipelineID)]
	if !ok || p == nil {
		return fmt.Errorf("vulkan: compute_dispatch: unknown pipeline %d", pipelineID)
	}
	if err := vb.ensureComputeRecording(); err != nil {
		return err
	}
	p.bind(vb.computeCB)

	if set0 := vb.ctx.setLayouts[backend.LayoutCompute][0]; set0 != nil {
		if t, ok := vb.textures[vb.lastTextureID]; ok && t != nil {
			if t.set == nil {
				set, err := allocateSet(vb.ctx, vb.ctx.descriptorPool, set0)
				if err == nil {
					writeStorageImageSet(vb.ctx, set, t.img.view)
					t.set = set
				}
			}
			if t.set != nil {
				vk.CmdBindDescriptorSets(vb.computeCB.handle, vk.PipelineBindPointCompute, p.layout, 0, 1, []vk.DescriptorSet{t.set}, 0, nil)
			}
		}
	}

	set1 := vb.ctx.setLayouts[backend.LayoutCompute][1]
	if set1 != nil {
		set, err := vb.allocateSSBOSet(vb.ctx.descriptorPool, set1, ssboBindingCountFor(backend.LayoutCompute), vb.pendingCompute)
		if err != nil {
			return err
		}
		vb.computeSets = append(vb.computeSets, set)
		vk.CmdBindDescriptorSets(vb.computeCB.handle, vk.PipelineBindPointCompute, p.layout, 1, 1, []vk.DescriptorSet{set}, 0, nil)
	}

	if len(pushConstants) > 0 {
		vk.CmdPushConstants(vb.computeCB.handle, p.layout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(len(pushConstants)), pushConstants)
	}
	vk.CmdDispatch(vb.computeCB.handle, groupX, groupY, groupZ)
	// Compute bindings cover exactly this dispatch; the next pass must
	// declare its own.
	clear(vb.pendingCompute)
	return nil
}

// ComputeWait ends, submits and waits on the recording compute command
// buffer, then frees the descriptor sets ComputeDispatch allocated.
func (vb *Backend) ComputeWait() error {
	if vb.computeCB == nil {
		return nil
	}
	c := vb.ctx
	cb := vb.computeCB
	vb.computeCB = nil
	err := c.locks.safeCall(lockQueue, func() error {
		return oneShotEnd(c, cb, c.device.graphicsCommandPool, c.device.graphicsQueue)
	})
	for _, s := range vb.computeSets {
		freeSet(c, c.descriptorPool, s)
	}
	vb.computeSets = nil
	return err
}

// ComputeMemoryBarrier records a compute-to-any-read-or-write barrier
// between two passes of the same dispatch batch (§4.4 execute).
func (vb *Backend) ComputeMemoryBarrier() error {
	if vb.computeCB == nil {
		return fmt.Errorf("vulkan: compute_memory_barrier: no recording compute command buffer")
	}
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit),
	}
	vk.CmdPipelineBarrier(vb.computeCB.handle,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
	return nil
}

// CompileShader implements backend.RendererBackend.CompileShader,
// narrowing the bitmask backend.ShaderStage to the single stage name
// shader.go's compileShader diagnoses against.
func (vb *Backend) CompileShader(src []byte, stage backend.ShaderStage) ([]byte, error) {
	name := ShaderStageNameVertex
	switch {
	case stage&backend.StageCompute != 0:
		name = ShaderStageNameCompute
	case stage&backend.StageFragment != 0:
		name = ShaderStageNameFragment
	}
	return compileShader(src, name)
}

// --- graphics pipelines ---

func (vb *Backend) GraphicsPipelineCreate(vert, frag []byte, layout backend.PipelineLayout) (backend.PipelineHandle, error) {
	p, err := createGraphicsPipeline(vb.ctx, vert, frag, layout)
	if err != nil {
		return backend.InvalidPipelineHandle, err
	}
	vb.nextPipelineID++
	id := backend.PipelineHandle(vb.nextPipelineID)
	vb.pipelines[id] = p
	if vb.defaultPipeline == nil && layout == backend.LayoutDefaultUI {
		vb.defaultPipeline = p
	}
	return id, nil
}

func (vb *Backend) GraphicsPipelineDestroy(id backend.PipelineHandle) {
	p, ok := vb.pipelines[id]
	if !ok {
		return
	}
	if p == vb.defaultPipeline {
		vb.defaultPipeline = nil
	}
	p.destroy(vb.ctx)
	delete(vb.pipelines, id)
}

// --- textures ---

func textureUsageAndAspect(format backend.TextureFormat) (vk.Format, vk.ImageUsageFlags, vk.ImageAspectFlags) {
	common := vk.ImageUsageFlags(vk.ImageUsageSampledBit) | vk.ImageUsageFlags(vk.ImageUsageStorageBit) |
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) | vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	switch format {
	case backend.TextureFormatRGBA16F:
		return vk.FormatR16g16b16a16Sfloat, common, vk.ImageAspectFlags(vk.ImageAspectColorBit)
	case backend.TextureFormatD32:
		return vk.FormatD32Sfloat,
			vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit),
			vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	default:
		return vk.FormatR8g8b8a8Unorm, common, vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

// transitionToGeneral moves a freshly created image out of UNDEFINED into
// GENERAL, the one layout this backend keeps every backend.TextureHandle
// in: valid for both a compute storage-image write and (at some cost to
// sampling performance) a combined-image-sampler read, which avoids
// building a full per-texture layout-tracking state machine for a
// layout transition that otherwise would need to happen every time a
// texture round-trips between being a compute target and a UI texture.
func transitionToGeneral(c *context, img *image, aspect vk.ImageAspectFlags) error {
	cb, err := oneShotBegin(c, c.device.graphicsCommandPool)
	if err != nil {
		return err
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:            vk.ImageLayoutUndefined,
		NewLayout:            vk.ImageLayoutGeneral,
		SrcAccessMask:        0,
		DstAccessMask:        vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit),
		Image:                img.handle,
		SubresourceRange:     vk.ImageSubresourceRange{AspectMask: aspect, LevelCount: 1, LayerCount: 1},
	}
	vk.CmdPipelineBarrier(cb.handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return oneShotEnd(c, cb, c.device.graphicsCommandPool, c.device.graphicsQueue)
}

func (vb *Backend) TextureCreate(width, height uint32, format backend.TextureFormat) (backend.TextureHandle, error) {
	fmtV, usage, aspect := textureUsageAndAspect(format)
	img, err := createImage(vb.ctx, width, height, fmtV, usage, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), true, aspect)
	if err != nil {
		return backend.InvalidTextureHandle, err
	}
	sampler, err := createSampler(vb.ctx)
	if err != nil {
		img.destroy(vb.ctx)
		return backend.InvalidTextureHandle, err
	}
	img.sampler = sampler
	if err := transitionToGeneral(vb.ctx, img, aspect); err != nil {
		img.destroy(vb.ctx)
		return backend.InvalidTextureHandle, err
	}

	vb.nextTextureID++
	id := backend.TextureHandle(vb.nextTextureID)
	vb.textures[id] = &texture{img: img, format: format}
	vb.lastTextureID = id
	if vb.fontImage == nil {
		vb.fontImage = img
	}
	return id, nil
}

func (vb *Backend) destroyTextureSets(t *texture) {
	freeSet(vb.ctx, vb.ctx.descriptorPool, t.set)
	for _, s := range t.uiSets {
		freeSet(vb.ctx, vb.ctx.descriptorPool, s)
	}
}

func (vb *Backend) TextureDestroy(id backend.TextureHandle) {
	t, ok := vb.textures[id]
	if !ok {
		return
	}
	vb.destroyTextureSets(t)
	t.img.destroy(vb.ctx)
	delete(vb.textures, id)
	if vb.fontImage == t.img {
		vb.fontImage = nil
		vb.fontSet = nil
	}
}

func (vb *Backend) TextureResize(id backend.TextureHandle, width, height uint32) error {
	t, ok := vb.textures[id]
	if !ok {
		return fmt.Errorf("vulkan: texture_resize: unknown handle %d", id)
	}
	wasFont := vb.fontImage == t.img
	vb.destroyTextureSets(t)
	t.img.destroy(vb.ctx)
	t.set, t.uiSets = nil, nil

	fmtV, usage, aspect := textureUsageAndAspect(t.format)
	img, err := createImage(vb.ctx, width, height, fmtV, usage, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), true, aspect)
	if err != nil {
		return err
	}
	sampler, err := createSampler(vb.ctx)
	if err != nil {
		img.destroy(vb.ctx)
		return err
	}
	img.sampler = sampler
	if err := transitionToGeneral(vb.ctx, img, aspect); err != nil {
		img.destroy(vb.ctx)
		return err
	}
	t.img = img
	if wasFont {
		vb.fontImage = img
		vb.fontSet = nil
	}
	return nil
}

func (vb *Backend) TextureGetDescriptor(id backend.TextureHandle) (uint64, error) {
	t, ok := vb.textures[id]
	if !ok {
		return 0, fmt.Errorf("vulkan: texture_get_descriptor: unknown handle %d", id)
	}
	if t.set == nil {
		set, err := allocateSet(vb.ctx, vb.ctx.descriptorPool, vb.ctx.setLayouts[backend.LayoutCompute][0])
		if err != nil {
			return 0, err
		}
		writeStorageImageSet(vb.ctx, set, t.img.view)
		t.set = set
	}
	return uint64(uintptr(t.set)), nil
}

// textureUISet lazily allocates (and caches per pipeline convention) the
// combined-image-sampler descriptor a default-UI or zero-copy draw binds
// t through.
func (vb *Backend) textureUISet(t *texture, kind backend.PipelineLayout, setIndex uint32) (vk.DescriptorSet, error) {
	if t.uiSets == nil {
		t.uiSets = make(map[backend.PipelineLayout]vk.DescriptorSet)
	}
	if set, ok := t.uiSets[kind]; ok && set != nil {
		return set, nil
	}
	layout := vb.ctx.setLayouts[kind][setIndex]
	set, err := allocateSet(vb.ctx, vb.ctx.descriptorPool, layout)
	if err != nil {
		return nil, err
	}
	writeImageSet(vb.ctx, set, t.img.view, t.img.sampler, vk.ImageLayoutGeneral)
	t.uiSets[kind] = set
	return set, nil
}

// --- cmdlist.Executor ---

// rebindGlobalSets re-latches the sets a BIND_PIPELINE command owns for
// the rest of its draws: Set 0 (font sampler for default UI, global
// sampler for zero-copy) and, for default UI, Set 2 (user texture). Set
// 1 (the per-draw SSBO) is left to ensureSet1Bound (§4.7 step 4).
func (vb *Backend) rebindGlobalSets(p *pipeline) {
	switch p.kind {
	case backend.LayoutDefaultUI:
		if vb.fontImage != nil {
			if vb.fontSet == nil {
				set, err := allocateSet(vb.ctx, vb.ctx.descriptorPool, vb.ctx.setLayouts[backend.LayoutDefaultUI][0])
				if err != nil {
					vb.logError("vulkan: allocate font descriptor: %s", err)
				} else {
					writeImageSet(vb.ctx, set, vb.fontImage.view, vb.fontImage.sampler, vk.ImageLayoutGeneral)
					vb.fontSet = set
				}
			}
			if vb.fontSet != nil {
				vk.CmdBindDescriptorSets(vb.recording.handle, vk.PipelineBindPointGraphics, p.layout, 0, 1, []vk.DescriptorSet{vb.fontSet}, 0, nil)
			}
		}
		if t, ok := vb.textures[vb.lastTextureID]; ok && t != nil {
			if set, err := vb.textureUISet(t, backend.LayoutDefaultUI, 2); err == nil {
				vk.CmdBindDescriptorSets(vb.recording.handle, vk.PipelineBindPointGraphics, p.layout, 2, 1, []vk.DescriptorSet{set}, 0, nil)
			}
		}
	case backend.LayoutZeroCopy:
		if t, ok := vb.textures[vb.lastTextureID]; ok && t != nil {
			if set, err := vb.textureUISet(t, backend.LayoutZeroCopy, 0); err == nil {
				vk.CmdBindDescriptorSets(vb.recording.handle, vk.PipelineBindPointGraphics, p.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
			}
		}
	}
}

func (vb *Backend) CmdBindPipeline(pipelineID uint32) {
	var p *pipeline
	if pipelineID == 0 {
		p = vb.defaultPipeline
	} else {
		p = vb.pipelines[backend.PipelineHandle(pipelineID)]
	}
	if p == nil {
		vb.logWarn("vulkan: bind_pipeline: no pipeline for id %d", pipelineID)
		return
	}
	p.bind(vb.recording)
	vb.currentPipeline = p
	vb.pendingGraphics = make(map[uint32]*gpu.Stream)
	vb.bindingsDirty = false
	vb.rebindGlobalSets(p)
}

func (vb *Backend) CmdBindBuffer(slot uint32, s *gpu.Stream) {
	vb.pendingGraphics[slot] = s
	vb.bindingsDirty = true
}

func (vb *Backend) CmdBindVertexBuffer(s *gpu.Stream) {
	b, ok := s.Handle.(*buffer)
	if !ok || b == nil {
		return
	}
	vk.CmdBindVertexBuffers(vb.recording.handle, 0, 1, []vk.Buffer{b.handle}, []vk.DeviceSize{0})
}

func (vb *Backend) CmdBindIndexBuffer(s *gpu.Stream) {
	b, ok := s.Handle.(*buffer)
	if !ok || b == nil {
		return
	}
	vk.CmdBindIndexBuffer(vb.recording.handle, b.handle, 0, vk.IndexTypeUint16)
}

func (vb *Backend) CmdPushConstants(data []byte) {
	if vb.currentPipeline == nil || len(data) == 0 {
		return
	}
	stage := pushConstantRangeFor(vb.currentPipeline.kind).StageFlags
	vk.CmdPushConstants(vb.recording.handle, vb.currentPipeline.layout, stage, 0, uint32(len(data)), data)
}

func (vb *Backend) CmdSetViewport(v cmdlist.Viewport) {
	vp := vk.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.MinDepth, MaxDepth: v.MaxDepth}
	vk.CmdSetViewport(vb.recording.handle, 0, 1, []vk.Viewport{vp})
}

func (vb *Backend) CmdSetScissor(s cmdlist.Scissor) {
	sc := vk.Rect2D{Offset: vk.Offset2D{X: s.X, Y: s.Y}, Extent: vk.Extent2D{Width: s.Width, Height: s.Height}}
	vk.CmdSetScissor(vb.recording.handle, 0, 1, []vk.Rect2D{sc})
}

// ensureSet1Bound lazily allocates and writes Set 1 (the instance/SSBO
// set every convention declares) from this frame's ephemeral pool the
// first time a draw follows a dirty BIND_BUFFER, per §4.7 step 4: "if
// dirty, allocate descriptor set from frame pool, fill declared slots
// (missing fall back to slot 0), update+bind Set 1".
func (vb *Backend) ensureSet1Bound() {
	if vb.currentPipeline == nil || !vb.bindingsDirty {
		return
	}
	kind := vb.currentPipeline.kind
	layout := vb.ctx.setLayouts[kind][1]
	if layout == nil {
		vb.bindingsDirty = false
		return
	}
	pool := vb.ctx.framePools[vb.ctx.currentFrame]
	set, err := vb.allocateSSBOSet(pool, layout, ssboBindingCountFor(kind), vb.pendingGraphics)
	if err != nil {
		vb.logError("vulkan: draw: allocate descriptor set: %s", err)
		vb.bindingsDirty = false
		return
	}
	vk.CmdBindDescriptorSets(vb.recording.handle, vk.PipelineBindPointGraphics, vb.currentPipeline.layout, 1, 1, []vk.DescriptorSet{set}, 0, nil)
	vb.bindingsDirty = false
}

func (vb *Backend) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vb.ensureSet1Bound()
	vk.CmdDraw(vb.recording.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (vb *Backend) CmdDrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vb.ensureSet1Bound()
	vk.CmdDrawIndexed(vb.recording.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// --- frame submission (§4.7) ---

// SubmitCommands runs the nine-step sequence spec.md §4.7 describes:
// acquire, reset the frame's ephemeral descriptor pool, begin the main
// render pass bound to the default quad/pipeline/sets, replay cmds,
// end the pass, handle a pending screenshot, submit, present, advance
// the frame cursor (handled inside swapchain.present).
func (vb *Backend) SubmitCommands(cmds *cmdlist.List) error {
	c := vb.ctx
	frame := c.currentFrame

	if !c.inFlightFences[frame].wait(c, math.MaxUint64) {
		return fmt.Errorf("vulkan: submit_commands: frame fence wait timed out")
	}

	index, status, err := c.swapchain.acquireNextImage(c, math.MaxUint64, c.imageAvailableSemaphores[frame])
	switch status {
	case swapRecreate:
		if err := vb.UpdateViewport(c.framebufferWidth, c.framebufferHeight); err != nil {
			return vb.recoverDeviceLost(err)
		}
		return nil
	case swapDeviceLost:
		return vb.recoverDeviceLost(fmt.Errorf("vulkan: acquire next image: device lost"))
	case swapFatal:
		return err
	}
	c.imageIndex = index

	// A swapchain can have more images than framesInFlight, so the fence
	// for this frame slot is not necessarily the fence that last used
	// image index: wait on whichever fence that was before touching the
	// image again (spec.md §4.7 step 1, §5 testable property #1).
	if prior := c.imagesInFlight[index]; prior != nil {
		if !prior.wait(c, math.MaxUint64) {
			return fmt.Errorf("vulkan: submit_commands: image-in-flight fence wait timed out")
		}
	}

	if err := resetFramePool(c, frame); err != nil {
		return err
	}

	cb := c.graphicsCommandBuffers[index]
	cb.reset()
	if err := cb.begin(false, false, false); err != nil {
		return err
	}
	vb.recording = cb

	c.mainRenderpass.begin(cb, c.swapchain.framebuffers[index].handle)

	vb.currentPipeline = nil
	vb.bindingsDirty = false
	vb.pendingGraphics = make(map[uint32]*gpu.Stream)
	if vb.defaultPipeline != nil {
		vb.CmdBindPipeline(0)
		if vb.defaultVertexBuffer != nil {
			vb.CmdBindVertexBuffer(&gpu.Stream{Handle: vb.defaultVertexBuffer})
		}
		if vb.defaultIndexBuffer != nil {
			vb.CmdBindIndexBuffer(&gpu.Stream{Handle: vb.defaultIndexBuffer})
		}
	} else {
		vb.logWarn("vulkan: submit_commands: no default pipeline created yet")
	}

	cmds.Replay(vb)

	c.mainRenderpass.end(cb)

	var staging *buffer
	if vb.screenshotPending {
		s, err := vb.beginScreenshotCopy(cb, index)
		if err != nil {
			vb.logError("vulkan: screenshot: %s", err)
			vb.screenshotPending = false
		} else {
			staging = s
		}
	}

	if err := cb.end(); err != nil {
		return err
	}

	c.inFlightFences[frame].reset(c)

	var submitErr error
	c.locks.safeCall(lockQueue, func() error {
		submitInfo := vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   1,
			PWaitSemaphores:      []vk.Semaphore{c.imageAvailableSemaphores[frame]},
			PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
			CommandBufferCount:   1,
			PCommandBuffers:      []vk.CommandBuffer{cb.handle},
			SignalSemaphoreCount: 1,
			PSignalSemaphores:    []vk.Semaphore{c.queueCompleteSemaphores[frame]},
		}
		if res := vk.QueueSubmit(c.device.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, c.inFlightFences[frame].handle); !resultIsSuccess(res) {
			submitErr = fatalVk(vb.logger, "queue submit", res)
			return submitErr
		}
		return nil
	})
	if submitErr != nil {
		return submitErr
	}
	c.inFlightFences[frame].isSignaled = false
	c.imagesInFlight[index] = c.inFlightFences[frame]

	if staging != nil {
		c.inFlightFences[frame].wait(c, math.MaxUint64)
		vb.finishScreenshot(staging)
	}

	switch presentStatus, presentErr := c.swapchain.present(c, c.queueCompleteSemaphores[frame], index); presentStatus {
	case swapRecreate:
		if err := vb.UpdateViewport(c.framebufferWidth, c.framebufferHeight); err != nil {
			return vb.recoverDeviceLost(err)
		}
	case swapDeviceLost:
		return vb.recoverDeviceLost(fmt.Errorf("vulkan: queue present: device lost"))
	case swapFatal:
		return presentErr
	}

	return nil
}

// --- screenshot pipeline (§4.11) ---

func (vb *Backend) beginScreenshotCopy(cb *commandBuffer, imageIndex uint32) (*buffer, error) {
	c := vb.ctx
	w, h := c.framebufferWidth, c.framebufferHeight
	size := uint64(w) * uint64(h) * 4
	staging, err := createDeviceBuffer(c, size, true)
	if err != nil {
		return nil, err
	}
	img := c.swapchain.images[imageIndex]

	toSrc := vk.ImageMemoryBarrier{
		SType:            vk.StructureTypeImageMemoryBarrier,
		OldLayout:        vk.ImageLayoutPresentSrc,
		NewLayout:        vk.ImageLayoutTransferSrcOptimal,
		SrcAccessMask:    vk.AccessFlags(vk.AccessMemoryReadBit),
		DstAccessMask:    vk.AccessFlags(vk.AccessTransferReadBit),
		Image:            img,
		SubresourceRange: vk.ImageSubresourceRange{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LevelCount: 1, LayerCount: 1},
	}
	vk.CmdPipelineBarrier(cb.handle, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toSrc})

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
		ImageExtent:      vk.Extent3D{Width: w, Height: h, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cb.handle, img, vk.ImageLayoutTransferSrcOptimal, staging.handle, 1, []vk.BufferImageCopy{region})

	backToPresent := toSrc
	backToPresent.OldLayout, backToPresent.NewLayout = vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutPresentSrc
	backToPresent.SrcAccessMask, backToPresent.DstAccessMask = vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessMemoryReadBit)
	vk.CmdPipelineBarrier(cb.handle, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{backToPresent})

	return staging, nil
}

// finishScreenshot copies the mapped staging buffer to a heap-owned
// slice then hands the PNG encode/write off to a detached goroutine, so
// the render loop doesn't stall on disk I/O (§4.11 "spawn detached
// worker").
func (vb *Backend) finishScreenshot(staging *buffer) {
	c := vb.ctx
	w, h := int(c.framebufferWidth), int(c.framebufferHeight)
	path := vb.screenshotPath
	vb.screenshotPending = false
	vb.screenshotPath = ""

	mapped, err := mapStaging(c, staging, uint64(w*h*4))
	if err != nil {
		vb.logError("vulkan: screenshot: map staging: %s", err)
		staging.destroy(c)
		return
	}
	heap := append([]byte(nil), mapped...)
	unmapStaging(c, staging)
	staging.destroy(c)

	bgra := c.swapchain.imageFormat.Format == vk.FormatB8g8r8a8Unorm
	logger := vb.logger
	go writeScreenshotPNG(path, w, h, heap, bgra, logger)
}

func writeScreenshotPNG(path string, w, h int, pixels []byte, bgra bool, logger backendLogger) {
	if bgra {
		for i := 0; i+3 < len(pixels); i += 4 {
			pixels[i], pixels[i+2] = pixels[i+2], pixels[i]
		}
	}
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	copy(img.Pix, pixels)
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		if logger != nil {
			logger.LogError("vulkan: screenshot: encode png: %s", err)
		}
		return
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		if logger != nil {
			logger.LogError("vulkan: screenshot: write %s: %s", path, err)
		}
	}
}

// --- device-loss recovery (§4.10) ---

// recoverDeviceLost tears the entire device down and re-initializes
// from scratch against the same InitParams. The caller (the engine's
// render goroutine) is responsible for re-uploading any widget-derived
// vertex buffers afterward: this backend has no record of what the UI
// layer last pushed into a gpu.Stream.
func (vb *Backend) recoverDeviceLost(cause error) error {
	vb.logError("vulkan: recovering from device loss: %s", cause)
	params := vb.params
	if vb.ctx != nil && vb.ctx.device != nil && vb.ctx.device.logicalDevice != nil {
		vk.DeviceWaitIdle(vb.ctx.device.logicalDevice)
	}
	vb.Cleanup()
	*vb = *New()
	if err := vb.Init(params); err != nil {
		return fmt.Errorf("vulkan: device-loss recovery failed: %w", err)
	}
	vb.logWarn("vulkan: device recovered, caller must re-upload widget vertex buffers")
	return nil
}
