package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/kiln-engine/kiln/backend"
)

// pipeline mirrors the teacher's VulkanPipeline (Handle + PipelineLayout),
// widened with the convention it was built for (so CmdBindPipeline knows
// which sets to re-latch, §4.7 step 4 BIND_PIPELINE) and its bind point
// (graphics or compute).
type pipeline struct {
	handle    vk.Pipeline
	layout    vk.PipelineLayout
	kind      backend.PipelineLayout
	bindPoint vk.PipelineBindPoint
}

// pushConstantRangeFor returns the single push-constant range each fixed
// pipeline-layout convention declares (§4.6 "Pipeline layout
// conventions"): 64 bytes vertex+fragment for the default UI view-proj
// matrix, 128 bytes vertex+fragment for zero-copy, 128 bytes compute-only
// for the compute layout.
func pushConstantRangeFor(kind backend.PipelineLayout) vk.PushConstantRange {
	switch kind {
	case backend.LayoutDefaultUI:
		return vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Offset: 0, Size: 64}
	case backend.LayoutZeroCopy:
		return vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Offset: 0, Size: 128}
	default: // backend.LayoutCompute
		return vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Offset: 0, Size: 128}
	}
}

// buildPipelineLayout assembles the vk.PipelineLayout for kind from
// context's cached descriptor-set layouts (skipping unused set slots)
// plus its push-constant range. Pipeline layouts are built once per
// convention and shared across every pipeline created with that
// convention, mirroring context.pipelineLayouts[3].
func buildPipelineLayout(c *context, kind backend.PipelineLayout) (vk.PipelineLayout, error) {
	if c.pipelineLayouts[kind] != nil {
		return c.pipelineLayouts[kind], nil
	}
	var sets []vk.DescriptorSetLayout
	for _, l := range c.setLayouts[kind] {
		if l != nil {
			sets = append(sets, l)
		}
	}
	pcRange := pushConstantRangeFor(kind)
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pcRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(c.device.logicalDevice, &info, c.allocator, &layout); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create pipeline layout: %s", resultString(res))
	}
	c.pipelineLayouts[kind] = layout
	return layout, nil
}

// vertexInputFor returns the per-convention vertex-input state: the
// default UI layout draws instanced unit quads (one vec2 position
// attribute, per-instance data comes from the bound SSBO, not vertex
// attributes); zero-copy has no vertex input at all, generating
// full-screen geometry from gl_VertexIndex in the shader (§4.6 "Layout 1
// (zero-copy): No vertex input").
func vertexInputFor(kind backend.PipelineLayout) vk.PipelineVertexInputStateCreateInfo {
	if kind == backend.LayoutZeroCopy {
		return vk.PipelineVertexInputStateCreateInfo{SType: vk.StructureTypePipelineVertexInputStateCreateInfo}
	}
	binding := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    8, // vec2 position
		InputRate: vk.VertexInputRateVertex,
	}
	attr := vk.VertexInputAttributeDescription{
		Location: 0,
		Binding:  0,
		Format:   vk.FormatR32g32Sfloat,
		Offset:   0,
	}
	return vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{binding},
		VertexAttributeDescriptionCount: 1,
		PVertexAttributeDescriptions:    []vk.VertexInputAttributeDescription{attr},
	}
}

// createGraphicsPipeline adapts the teacher's NewGraphicsPipeline,
// generalized from a single hard-coded 3D-mesh vertex layout to the three
// backend.PipelineLayout conventions this engine actually needs, and
// built from already-compiled SPIR-V byte slices rather than the
// teacher's VulkanShaderStage wrapper.
func createGraphicsPipeline(c *context, vertSPV, fragSPV []byte, kind backend.PipelineLayout) (*pipeline, error) {
	vertModule, err := createShaderModule(c, vertSPV)
	if err != nil {
		return nil, fmt.Errorf("vulkan: graphics pipeline vertex shader: %w", err)
	}
	fragModule, err := createShaderModule(c, fragSPV)
	if err != nil {
		destroyShaderModule(c, vertModule)
		return nil, fmt.Errorf("vulkan: graphics pipeline fragment shader: %w", err)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit, Module: vertModule, PName: safeString("main")},
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit, Module: fragModule, PName: safeString("main")},
	}

	w, h := float32(c.framebufferWidth), float32(c.framebufferHeight)
	viewport := vk.Viewport{X: 0, Y: 0, Width: w, Height: h, MinDepth: 0, MaxDepth: 1}
	scissor := vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: vk.Extent2D{Width: c.framebufferWidth, Height: c.framebufferHeight}}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType: vk.StructureTypePipelineViewportStateCreateInfo, ViewportCount: 1,
		PViewports: []vk.Viewport{viewport}, ScissorCount: 1, PScissors: []vk.Rect2D{scissor},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType: vk.StructureTypePipelineRasterizationStateCreateInfo, PolygonMode: vk.PolygonModeFill,
		LineWidth: 1.0, CullMode: vk.CullModeFlags(vk.CullModeNone), FrontFace: vk.FrontFaceCounterClockwise,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType: vk.StructureTypePipelineMultisampleStateCreateInfo, RasterizationSamples: vk.SampleCount1Bit, MinSampleShading: 1.0,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.True, SrcColorBlendFactor: vk.BlendFactorSrcAlpha, DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp: vk.BlendOpAdd, SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha, DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp: vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType: vk.StructureTypePipelineColorBlendStateCreateInfo, AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType: vk.StructureTypePipelineDynamicStateCreateInfo, DynamicStateCount: uint32(len(dynamicStates)), PDynamicStates: dynamicStates,
	}

	vertexInput := vertexInputFor(kind)
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType: vk.StructureTypePipelineInputAssemblyStateCreateInfo, Topology: vk.PrimitiveTopologyTriangleList,
	}

	layout, err := buildPipelineLayout(c, kind)
	if err != nil {
		destroyShaderModule(c, vertModule)
		destroyShaderModule(c, fragModule)
		return nil, err
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType: vk.StructureTypePipelineDepthStencilStateCreateInfo, DepthTestEnable: vk.True,
		DepthWriteEnable: vk.True, DepthCompareOp: vk.CompareOpLessOrEqual,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          c.mainRenderpass.handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	handles := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(c.device.logicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, c.allocator, handles)

	destroyShaderModule(c, vertModule)
	destroyShaderModule(c, fragModule)

	if !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create graphics pipeline: %s", resultString(res))
	}
	return &pipeline{handle: handles[0], layout: layout, kind: kind, bindPoint: vk.PipelineBindPointGraphics}, nil
}

// createComputePipeline has no teacher counterpart (the teacher's
// renderer never dispatches compute); it reuses the same
// buildPipelineLayout/shader-module plumbing createGraphicsPipeline does.
func createComputePipeline(c *context, spirv []byte, kind backend.PipelineLayout) (*pipeline, error) {
	module, err := createShaderModule(c, spirv)
	if err != nil {
		return nil, fmt.Errorf("vulkan: compute pipeline shader: %w", err)
	}
	defer destroyShaderModule(c, module)

	layout, err := buildPipelineLayout(c, kind)
	if err != nil {
		return nil, err
	}

	stage := vk.PipelineShaderStageCreateInfo{
		SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageComputeBit, Module: module, PName: safeString("main"),
	}
	createInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo, Stage: stage, Layout: layout, BasePipelineIndex: -1,
	}
	handles := make([]vk.Pipeline, 1)
	res := vk.CreateComputePipelines(c.device.logicalDevice, vk.NullPipelineCache, 1,
		[]vk.ComputePipelineCreateInfo{createInfo}, c.allocator, handles)
	if !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create compute pipeline: %s", resultString(res))
	}
	return &pipeline{handle: handles[0], layout: layout, kind: kind, bindPoint: vk.PipelineBindPointCompute}, nil
}

func (p *pipeline) destroy(c *context) {
	if p.handle != nil {
		vk.DestroyPipeline(c.device.logicalDevice, p.handle, c.allocator)
		p.handle = nil
	}
	// p.layout is owned by context.pipelineLayouts (shared per convention,
	// built once via buildPipelineLayout) and torn down with the context,
	// not here.
}

func (p *pipeline) bind(cb *commandBuffer) {
	vk.CmdBindPipeline(cb.handle, p.bindPoint, p.handle)
}
