package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// image mirrors the teacher's VulkanImage: a device image, its backing
// memory, and an optional view. Used both for the swapchain's depth
// attachment and for backend.TextureHandle-backed textures.
type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	width, height uint32
	format vk.Format
	sampler vk.Sampler
}

func createImage(c *context, width, height uint32, format vk.Format, usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags, createView bool, aspect vk.ImageAspectFlags) (*image, error) {

	img := &image{width: width, height: height, format: format}

	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	if res := vk.CreateImage(c.device.logicalDevice, &createInfo, c.allocator, &img.handle); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create image: %s", resultString(res))
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device.logicalDevice, img.handle, &req)
	req.Deref()

	memType := c.findMemoryIndex(req.MemoryTypeBits, vk.MemoryPropertyFlagBits(memoryFlags))
	if memType == -1 {
		return nil, fmt.Errorf("vulkan: no memory type for image")
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: uint32(memType),
	}
	if res := vk.AllocateMemory(c.device.logicalDevice, &allocInfo, c.allocator, &img.memory); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: allocate image memory: %s", resultString(res))
	}
	if res := vk.BindImageMemory(c.device.logicalDevice, img.handle, img.memory, 0); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: bind image memory: %s", resultString(res))
	}

	if createView {
		if err := img.createView(c, format, aspect); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (img *image) createView(c *context, format vk.Format, aspect vk.ImageAspectFlags) error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if res := vk.CreateImageView(c.device.logicalDevice, &viewInfo, c.allocator, &img.view); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: create image view: %s", resultString(res))
	}
	return nil
}

func (img *image) destroy(c *context) {
	if img.sampler != nil {
		vk.DestroySampler(c.device.logicalDevice, img.sampler, c.allocator)
		img.sampler = nil
	}
	if img.view != nil {
		vk.DestroyImageView(c.device.logicalDevice, img.view, c.allocator)
		img.view = nil
	}
	if img.memory != nil {
		vk.FreeMemory(c.device.logicalDevice, img.memory, c.allocator)
		img.memory = nil
	}
	if img.handle != nil {
		vk.DestroyImage(c.device.logicalDevice, img.handle, c.allocator)
		img.handle = nil
	}
}

// createSampler attaches a default linear/clamp-to-edge sampler, used
// by the font atlas and any other backend.TextureHandle a shader reads
// as a combined image sampler (spec.md §4.6 TextureGetDescriptor).
func createSampler(c *context) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		MaxAnisotropy:           1.0,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(c.device.logicalDevice, &info, c.allocator, &sampler); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create sampler: %s", resultString(res))
	}
	return sampler, nil
}
