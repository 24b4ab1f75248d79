package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
)

// swapchain mirrors the teacher's VulkanSwapchain, trimmed to the
// single on-screen color+depth target SPEC_FULL.md's compositing pass
// renders the UI DisplayList into.
type swapchain struct {
	imageFormat vk.SurfaceFormat
	handle      vk.Swapchain
	images      []vk.Image
	views       []vk.ImageView

	depthAttachment *image

	framebuffers []*framebuffer
}

func createSwapchain(c *context, width, height uint32) (*swapchain, error) {
	sc := &swapchain{}
	support := c.device.swapchainSupport

	sc.imageFormat = support.formats[0]
	for _, f := range support.formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.imageFormat = f
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, m := range support.presentModes {
		if m == vk.PresentModeMailbox {
			presentMode = m
			break
		}
	}

	extent := vk.Extent2D{Width: width, Height: height}
	if support.capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.capabilities.CurrentExtent
	}
	min, max := support.capabilities.MinImageExtent, support.capabilities.MaxImageExtent
	extent.Width = clampU32(extent.Width, min.Width, max.Width)
	extent.Height = clampU32(extent.Height, min.Height, max.Height)

	imageCount := support.capabilities.MinImageCount + 1
	if support.capabilities.MaxImageCount > 0 && imageCount > support.capabilities.MaxImageCount {
		imageCount = support.capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          c.surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.imageFormat.Format,
		ImageColorSpace:  sc.imageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}
	if c.device.graphicsQueueIndex != c.device.presentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{c.device.graphicsQueueIndex, c.device.presentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(c.device.logicalDevice, &createInfo, c.allocator, &handle); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create swapchain: %s", resultString(res))
	}
	sc.handle = handle
	c.currentFrame = 0

	var imageCnt uint32
	vk.GetSwapchainImages(c.device.logicalDevice, handle, &imageCnt, nil)
	sc.images = make([]vk.Image, imageCnt)
	sc.views = make([]vk.ImageView, imageCnt)
	vk.GetSwapchainImages(c.device.logicalDevice, handle, &imageCnt, sc.images)

	for i := range sc.images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    sc.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.imageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(c.device.logicalDevice, &viewInfo, c.allocator, &sc.views[i]); !resultIsSuccess(res) {
			return nil, fmt.Errorf("vulkan: create swapchain image view: %s", resultString(res))
		}
	}

	if err := detectDepthFormat(c.device); err != nil {
		return nil, err
	}
	depth, err := createImage(c, extent.Width, extent.Height, c.device.depthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}
	sc.depthAttachment = depth

	return sc, nil
}

func (sc *swapchain) destroy(c *context) {
	vk.DeviceWaitIdle(c.device.logicalDevice)
	if sc.depthAttachment != nil {
		sc.depthAttachment.destroy(c)
	}
	for _, v := range sc.views {
		vk.DestroyImageView(c.device.logicalDevice, v, c.allocator)
	}
	vk.DestroySwapchain(c.device.logicalDevice, sc.handle, c.allocator)
}

func (sc *swapchain) recreate(c *context, width, height uint32) (*swapchain, error) {
	sc.destroy(c)
	return createSwapchain(c, width, height)
}

// swapStatus classifies the outcome of an acquire/present call per
// spec.md §4.7 steps 1 & 8: out-of-date/suboptimal asks the caller to
// recreate the swapchain and retry, device-lost asks it to enter
// recovery, and anything else not named in those two buckets is fatal.
type swapStatus int

const (
	swapOK swapStatus = iota
	swapRecreate
	swapDeviceLost
	swapFatal
)

// classifyResult buckets a vk.Result from acquire or present.
// suboptimalIsOK differs between the two calls: acquiring a suboptimal
// image still hands back a usable index for this frame (recreation
// happens at present time instead), but a suboptimal present means this
// frame is already done, so it recreates immediately.
func classifyResult(result vk.Result, suboptimalIsOK bool) swapStatus {
	switch {
	case resultIsSuccess(result):
		return swapOK
	case result == vk.Suboptimal:
		if suboptimalIsOK {
			return swapOK
		}
		return swapRecreate
	case result == vk.ErrorOutOfDate:
		return swapRecreate
	case result == vk.ErrorDeviceLost:
		return swapDeviceLost
	default:
		return swapFatal
	}
}

// acquireNextImage waits on imageAvailable and returns the next
// presentable swapchain image index. status distinguishes the four
// outcomes §4.7 step 1 and §4.10 require the caller to tell apart:
// swapOK (index is valid, suboptimal included), swapRecreate
// (out-of-date, no index, caller recreates and retries),
// swapDeviceLost (caller must enter device-loss recovery), and
// swapFatal (err is set, caller propagates).
func (sc *swapchain) acquireNextImage(c *context, timeoutNs uint64, imageAvailable vk.Semaphore) (uint32, swapStatus, error) {
	var index uint32
	result := vk.AcquireNextImage(c.device.logicalDevice, sc.handle, timeoutNs, imageAvailable, vk.NullFence, &index)
	status := classifyResult(result, true)
	if status == swapFatal {
		return 0, status, fmt.Errorf("vulkan: acquire next image: %s", resultString(result))
	}
	if status != swapOK {
		return 0, status, nil
	}
	return index, status, nil
}

// present mirrors acquireNextImage's four-way classification for
// vkQueuePresentKHR's result (spec.md §4.7 step 8).
func (sc *swapchain) present(c *context, renderComplete vk.Semaphore, imageIndex uint32) (swapStatus, error) {
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	result := vk.QueuePresent(c.device.presentQueue, &info)
	c.currentFrame = (c.currentFrame + 1) % framesInFlight
	status := classifyResult(result, false)
	if status == swapFatal {
		return status, fmt.Errorf("vulkan: queue present: %s", resultString(result))
	}
	return status, nil
}
