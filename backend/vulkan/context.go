package vulkan

import (
	vk "github.com/goki/vulkan"
)

// framesInFlight is the depth of the per-frame ring spec.md §4.7
// describes (acquire/submit/present pipelined two frames deep so the
// render thread never waits on the GPU between frames it doesn't have
// to). Grounded on the teacher's VulkanSwapchain.MaxFramesInFlight,
// which the teacher also pins at 2.
const framesInFlight = 2

// context mirrors the teacher's VulkanContext: the live instance,
// device, swapchain and per-frame synchronization state a VulkanBackend
// needs across every Init/frame/Cleanup call. Unlike the teacher, this
// context carries a descriptor pool and the three fixed pipeline-layout
// descriptor-set layouts backend.PipelineLayout selects between, and
// drops the teacher's geometry/material/renderpass-registry fields,
// which belonged to its 3D mesh renderer and have no SPEC_FULL.md
// counterpart.
type context struct {
	instance  vk.Instance
	allocator *vk.AllocationCallbacks
	surface   vk.Surface

	debugMessenger vk.DebugReportCallback
	debug          bool

	device *device

	swapchain *swapchain

	mainRenderpass *renderpass

	framebufferWidth, framebufferHeight                     uint32
	framebufferSizeGeneration, framebufferSizeLastGeneration uint64
	recreatingSwapchain                                      bool

	graphicsCommandBuffers []*commandBuffer

	imageAvailableSemaphores []vk.Semaphore
	queueCompleteSemaphores  []vk.Semaphore
	inFlightFences           []*fence
	imagesInFlight           []*fence

	currentFrame uint32
	imageIndex   uint32

	// descriptorPool backs long-lived allocations: the font sampler set,
	// the global sampler set, and every texture.get_descriptor set. Each
	// frame also gets its own ephemeral pool, reset at the start of
	// submit_commands step 2, for the Set-1 SSBO descriptors draw calls
	// allocate lazily (§4.7 step 4, DRAW/DRAW_INDEXED).
	descriptorPool vk.DescriptorPool
	framePools     []vk.DescriptorPool

	// setLayouts and pipelineLayouts are indexed by backend.PipelineLayout
	// (LayoutDefaultUI/LayoutZeroCopy/LayoutCompute); each entry holds the
	// up-to-three per-set layouts that convention declares (§4.6 "Pipeline
	// layout conventions").
	setLayouts      [3]descriptorSetLayouts
	pipelineLayouts [3]vk.PipelineLayout

	locks *lockPool
}

// findMemoryIndex locates a physical-device memory type matching both
// typeFilter's bitset and propertyFlags, the way the teacher's
// VulkanContext.FindMemoryIndex does.
func (c *context) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) int32 {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.device.physicalDevice, &props)
	props.Deref()

	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && vk.MemoryPropertyFlagBits(props.MemoryTypes[i].PropertyFlags)&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	return -1
}
