package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// framebuffer mirrors the teacher's VulkanFramebuffer.
type framebuffer struct {
	handle      vk.Framebuffer
	attachments []vk.ImageView
}

func createFramebuffer(c *context, rp *renderpass, width, height uint32, attachments []vk.ImageView) (*framebuffer, error) {
	fb := &framebuffer{attachments: append([]vk.ImageView(nil), attachments...)}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    fb.attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	if res := vk.CreateFramebuffer(c.device.logicalDevice, &info, c.allocator, &fb.handle); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create framebuffer: %s", resultString(res))
	}
	return fb, nil
}

func (fb *framebuffer) destroy(c *context) {
	if fb.handle != nil {
		vk.DestroyFramebuffer(c.device.logicalDevice, fb.handle, c.allocator)
		fb.handle = nil
	}
	fb.attachments = nil
}

func regenerateFramebuffers(c *context) error {
	c.swapchain.framebuffers = make([]*framebuffer, len(c.swapchain.images))
	for i := range c.swapchain.images {
		attachments := []vk.ImageView{c.swapchain.views[i], c.swapchain.depthAttachment.view}
		fb, err := createFramebuffer(c, c.mainRenderpass, c.framebufferWidth, c.framebufferHeight, attachments)
		if err != nil {
			return err
		}
		c.swapchain.framebuffers[i] = fb
	}
	return nil
}
