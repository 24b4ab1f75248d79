package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// renderpass mirrors the teacher's VulkanRenderPass. SPEC_FULL.md only
// ever needs a single color+depth compositing pass (the UI DisplayList
// and any compute-graph outputs are resolved to the swapchain image
// before this pass begins), so unlike the teacher's
// HasPrevPass/HasNextPass chaining this is always the first and last
// pass in a frame.
type renderpass struct {
	handle                vk.RenderPass
	x, y, w, h            float32
	r, g, b, a            float32
	depth                 float32
	stencil               uint32
}

func createRenderpass(c *context, x, y, w, h, r, g, b, a, depth float32, stencil uint32) (*renderpass, error) {
	rp := &renderpass{x: x, y: y, w: w, h: h, r: r, g: g, b: b, a: a, depth: depth, stencil: stencil}

	colorAttachment := vk.AttachmentDescription{
		Format:         c.swapchain.imageFormat.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	colorRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}

	depthAttachment := vk.AttachmentDescription{
		Format:         c.device.depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	depthRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{colorAttachment, depthAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	if res := vk.CreateRenderPass(c.device.logicalDevice, &createInfo, c.allocator, &rp.handle); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create renderpass: %s", resultString(res))
	}
	return rp, nil
}

func (rp *renderpass) destroy(c *context) {
	if rp.handle != nil {
		vk.DestroyRenderPass(c.device.logicalDevice, rp.handle, c.allocator)
		rp.handle = nil
	}
}

func (rp *renderpass) begin(cb *commandBuffer, fb vk.Framebuffer) {
	clears := make([]vk.ClearValue, 2)
	clears[0].SetColor([]float32{rp.r, rp.g, rp.b, rp.a})
	clears[1].SetDepthStencil(rp.depth, rp.stencil)

	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.handle,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: int32(rp.x), Y: int32(rp.y)},
			Extent: vk.Extent2D{Width: uint32(rp.w), Height: uint32(rp.h)},
		},
		ClearValueCount: 2,
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(cb.handle, &info, vk.SubpassContentsInline)
	cb.state = commandBufferStateInRenderPass
}

func (rp *renderpass) end(cb *commandBuffer) {
	vk.CmdEndRenderPass(cb.handle)
	cb.state = commandBufferStateRecording
}
