package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
)

// device mirrors the teacher's VulkanDevice: the selected physical
// device plus the logical device and queues created against it.
type device struct {
	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device

	graphicsQueueIndex, presentQueueIndex, transferQueueIndex uint32
	graphicsQueue, presentQueue, transferQueue                vk.Queue

	graphicsCommandPool vk.CommandPool

	swapchainSupport *swapchainSupportInfo

	depthFormat       vk.Format
	depthChannelCount uint8
}

type swapchainSupportInfo struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

type queueFamilyInfo struct {
	graphics, present, transfer uint32
}

// createDevice selects a physical device and brings up the logical
// device, queues and graphics command pool, grounded on the teacher's
// device.go DeviceCreate/SelectPhysicalDevice.
func createDevice(c *context) error {
	if err := selectPhysicalDevice(c); err != nil {
		return err
	}

	presentSharesGraphics := c.device.graphicsQueueIndex == c.device.presentQueueIndex
	transferSharesGraphics := c.device.graphicsQueueIndex == c.device.transferQueueIndex

	indices := []uint32{c.device.graphicsQueueIndex}
	if !presentSharesGraphics {
		indices = append(indices, c.device.presentQueueIndex)
	}
	if !transferSharesGraphics {
		indices = append(indices, c.device.transferQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	priority := float32(1.0)
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		}
	}

	features := vk.PhysicalDeviceFeatures{SamplerAnisotropy: vk.True}
	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if runtime.GOOS == "darwin" {
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: safeStrings(extensionNames),
	}

	var logical vk.Device
	if err := c.locks.safeCall(lockDevice, func() error {
		if res := vk.CreateDevice(c.device.physicalDevice, &createInfo, c.allocator, &logical); !resultIsSuccess(res) {
			return fmt.Errorf("vulkan: create device: %s", resultString(res))
		}
		return nil
	}); err != nil {
		return err
	}
	c.device.logicalDevice = logical

	var gq, pq, tq vk.Queue
	vk.GetDeviceQueue(logical, c.device.graphicsQueueIndex, 0, &gq)
	vk.GetDeviceQueue(logical, c.device.presentQueueIndex, 0, &pq)
	vk.GetDeviceQueue(logical, c.device.transferQueueIndex, 0, &tq)
	c.device.graphicsQueue, c.device.presentQueue, c.device.transferQueue = gq, pq, tq

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.device.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logical, &poolInfo, c.allocator, &pool); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: create command pool: %s", resultString(res))
	}
	c.device.graphicsCommandPool = pool

	return nil
}

func destroyDevice(c *context) {
	if c.device == nil {
		return
	}
	if c.device.graphicsCommandPool != nil {
		vk.DestroyCommandPool(c.device.logicalDevice, c.device.graphicsCommandPool, c.allocator)
	}
	if c.device.logicalDevice != nil {
		c.locks.safeCall(lockDevice, func() error {
			vk.DestroyDevice(c.device.logicalDevice, c.allocator)
			return nil
		})
	}
	c.device.physicalDevice = nil
	c.device.logicalDevice = nil
}

func selectPhysicalDevice(c *context) error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(c.instance, &count, nil); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: enumerate physical devices: %s", resultString(res))
	}
	if count == 0 {
		return fmt.Errorf("vulkan: no devices support Vulkan")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(c.instance, &count, devices); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: enumerate physical devices: %s", resultString(res))
	}

	for _, pd := range devices {
		queueInfo, support, err := physicalDeviceMeetsRequirements(pd, c.surface)
		if err != nil {
			continue
		}
		c.device = &device{
			physicalDevice:     pd,
			swapchainSupport:   support,
			graphicsQueueIndex: queueInfo.graphics,
			presentQueueIndex:  queueInfo.present,
			transferQueueIndex: queueInfo.transfer,
		}
		return nil
	}
	return fmt.Errorf("vulkan: no physical device meets requirements")
}

func physicalDeviceMeetsRequirements(pd vk.PhysicalDevice, surface vk.Surface) (queueFamilyInfo, *swapchainSupportInfo, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)

	info := queueFamilyInfo{graphics: vk.MaxUint32, present: vk.MaxUint32, transfer: vk.MaxUint32}
	minTransferScore := 255
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		score := 0
		if uint32(families[i].QueueFlags)&uint32(vk.QueueGraphicsBit) != 0 {
			info.graphics = i
			score++
		}
		if uint32(families[i].QueueFlags)&uint32(vk.QueueTransferBit) != 0 && score <= minTransferScore {
			minTransferScore = score
			info.transfer = i
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, i, surface, &supportsPresent); !resultIsSuccess(res) {
			return queueFamilyInfo{}, nil, fmt.Errorf("vulkan: query surface support: %s", resultString(res))
		}
		if supportsPresent == vk.True {
			info.present = i
		}
	}

	if info.graphics == vk.MaxUint32 || info.present == vk.MaxUint32 {
		return queueFamilyInfo{}, nil, fmt.Errorf("vulkan: device lacks graphics/present queue")
	}
	if info.transfer == vk.MaxUint32 {
		info.transfer = info.graphics
	}

	support := &swapchainSupportInfo{}
	if err := querySwapchainSupport(pd, surface, support); err != nil {
		return queueFamilyInfo{}, nil, err
	}
	if len(support.formats) == 0 || len(support.presentModes) == 0 {
		return queueFamilyInfo{}, nil, fmt.Errorf("vulkan: device lacks swapchain support")
	}
	return info, support, nil
}

func querySwapchainSupport(pd vk.PhysicalDevice, surface vk.Surface, support *swapchainSupportInfo) error {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &caps); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: surface capabilities: %s", resultString(res))
	}
	caps.Deref()
	support.capabilities = caps

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)
	if formatCount > 0 {
		support.formats = make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, support.formats)
		for i := range support.formats {
			support.formats[i].Deref()
		}
	}

	var presentModeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &presentModeCount, nil)
	if presentModeCount > 0 {
		support.presentModes = make([]vk.PresentMode, presentModeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &presentModeCount, support.presentModes)
	}
	return nil
}

// detectDepthFormat picks the first supported depth-stencil format from
// a fixed candidate list, grounded on the teacher's
// DeviceDetectDepthFormat.
func detectDepthFormat(d *device) error {
	candidates := []vk.Format{vk.FormatD32Sfloat, vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint}
	sizes := []uint8{4, 4, 3}
	flags := vk.FormatFeatureDepthStencilAttachmentBit

	for i, cand := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, cand, &props)
		props.Deref()
		if uint32(props.LinearTilingFeatures)&uint32(flags) == uint32(flags) ||
			uint32(props.OptimalTilingFeatures)&uint32(flags) == uint32(flags) {
			d.depthFormat = cand
			d.depthChannelCount = sizes[i]
			return nil
		}
	}
	return fmt.Errorf("vulkan: no supported depth format")
}
