package render

import (
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/mesh"
	"kuberoom/internal/shader"
	"kuberoom/internal/vkerr"
)

const entryPoint = "main\x00"

func createDescriptorSetLayout(device vulkan.Device) (vulkan.DescriptorSetLayout, error) {
	bindings := []vulkan.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
		},
		{
			Binding:         1,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit),
		},
	}
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vulkan.DescriptorSetLayout
	if err := vkerr.Check(vulkan.CreateDescriptorSetLayout(device, &layoutInfo, nil, &layout), "create descriptor set layout"); err != nil {
		return nil, err
	}
	return layout, nil
}

// renderPassAttachments lists color, depth and, when multisampling, the
// single-sample resolve target that is presented.
func renderPassAttachments(colorFormat, depthFormat vulkan.Format, samples vulkan.SampleCountFlagBits) []vulkan.AttachmentDescription {
	multisampled := samples != vulkan.SampleCount1Bit
	color := vulkan.AttachmentDescription{
		Format:         colorFormat,
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	if multisampled {
		color.StoreOp = vulkan.AttachmentStoreOpDontCare
		color.FinalLayout = vulkan.ImageLayoutColorAttachmentOptimal
	}
	depth := vulkan.AttachmentDescription{
		Format:         depthFormat,
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpDontCare,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	attachments := []vulkan.AttachmentDescription{color, depth}
	if multisampled {
		attachments = append(attachments, vulkan.AttachmentDescription{
			Format:         colorFormat,
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         vulkan.AttachmentLoadOpDontCare,
			StoreOp:        vulkan.AttachmentStoreOpStore,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  vulkan.ImageLayoutUndefined,
			FinalLayout:    vulkan.ImageLayoutPresentSrc,
		})
	}
	return attachments
}

func createRenderPass(device vulkan.Device, colorFormat, depthFormat vulkan.Format, samples vulkan.SampleCountFlagBits) (vulkan.RenderPass, error) {
	attachments := renderPassAttachments(colorFormat, depthFormat, samples)

	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vulkan.AttachmentReference{{
			Attachment: 0,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}},
		PDepthStencilAttachment: &vulkan.AttachmentReference{
			Attachment: 1,
			Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	if len(attachments) == 3 {
		subpass.PResolveAttachments = []vulkan.AttachmentReference{{
			Attachment: 2,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}}
	}

	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit | vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}
	var renderPass vulkan.RenderPass
	if err := vkerr.Check(vulkan.CreateRenderPass(device, &createInfo, nil, &renderPass), "create render pass"); err != nil {
		return nil, err
	}
	return renderPass, nil
}

func createShaderModule(device vulkan.Device, code shader.Bytecode) (vulkan.ShaderModule, error) {
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(code.Size()),
		PCode:    code.Words(),
	}
	var module vulkan.ShaderModule
	if err := vkerr.Check(vulkan.CreateShaderModule(device, &createInfo, nil, &module), "create shader module "+code.Name()); err != nil {
		return nil, err
	}
	return module, nil
}

func vertexAttributes() []vulkan.VertexInputAttributeDescription {
	return []vulkan.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: mesh.PosOffset},
		{Location: 1, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: mesh.ColorOffset},
		{Location: 2, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: mesh.TexCoordOffset},
	}
}

type pipelineSpec struct {
	stages     shader.Stages
	layout     vulkan.DescriptorSetLayout
	renderPass vulkan.RenderPass
	extent     vulkan.Extent2D
	samples    vulkan.SampleCountFlagBits
}

// createGraphicsPipeline returns the pipeline and its layout. Shader
// modules only live for the duration of the call.
func createGraphicsPipeline(device vulkan.Device, spec pipelineSpec) (vulkan.Pipeline, vulkan.PipelineLayout, error) {
	vertModule, err := createShaderModule(device, spec.stages.Vertex)
	if err != nil {
		return nil, nil, err
	}
	defer vulkan.DestroyShaderModule(device, vertModule, nil)
	fragModule, err := createShaderModule(device, spec.stages.Fragment)
	if err != nil {
		return nil, nil, err
	}
	defer vulkan.DestroyShaderModule(device, fragModule, nil)

	shaderStages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vertModule,
			PName:  entryPoint,
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  entryPoint,
		},
	}

	attributes := vertexAttributes()
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                         vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vulkan.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    mesh.VertexSize,
			InputRate: vulkan.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vulkan.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vulkan.False,
	}

	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vulkan.Viewport{{
			Width:    float32(spec.extent.Width),
			Height:   float32(spec.extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}},
		ScissorCount: 1,
		PScissors: []vulkan.Rect2D{{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: spec.extent,
		}},
	}

	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             vulkan.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vulkan.CullModeFlags(vulkan.CullModeBackBit),
		FrontFace:               vulkan.FrontFaceCounterClockwise,
		DepthBiasEnable:         vulkan.False,
	}

	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: spec.samples,
		SampleShadingEnable:  vulkan.False,
	}

	depthStencil := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vulkan.True,
		DepthWriteEnable:      vulkan.True,
		DepthCompareOp:        vulkan.CompareOpLess,
		DepthBoundsTestEnable: vulkan.False,
		StencilTestEnable:     vulkan.False,
	}

	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vulkan.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
			BlendEnable:    vulkan.False,
		}},
	}

	layoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:          vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vulkan.DescriptorSetLayout{spec.layout},
	}
	var layout vulkan.PipelineLayout
	if err := vkerr.Check(vulkan.CreatePipelineLayout(device, &layoutInfo, nil, &layout), "create pipeline layout"); err != nil {
		return nil, nil, err
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		Layout:              layout,
		RenderPass:          spec.renderPass,
		Subpass:             0,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	res := vulkan.CreateGraphicsPipelines(device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)
	if err := vkerr.Check(res, "create graphics pipeline"); err != nil {
		vulkan.DestroyPipelineLayout(device, layout, nil)
		return nil, nil, err
	}
	return pipelines[0], layout, nil
}
