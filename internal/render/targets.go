package render

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/shader"
	"kuberoom/internal/vkerr"
)

// scene holds what survives a rebuild: geometry, texture, shaders and the
// descriptor set layout.
type scene struct {
	setLayout  vulkan.DescriptorSetLayout
	vertices   *Buffer
	indices    *Buffer
	indexCount uint32
	texture    *Texture
	stages     shader.Stages
}

func (s *scene) destroy(device vulkan.Device) {
	s.texture.Destroy()
	s.indices.Destroy()
	s.vertices.Destroy()
	if s.setLayout != vulkan.DescriptorSetLayout(vulkan.NullHandle) {
		vulkan.DestroyDescriptorSetLayout(device, s.setLayout, nil)
		s.setLayout = vulkan.DescriptorSetLayout(vulkan.NullHandle)
	}
}

// frameTargets is everything whose shape follows the presentation chain.
// It is built whole and torn down whole.
type frameTargets struct {
	device         vulkan.Device
	commandPool    vulkan.CommandPool
	color          *Image
	depth          *Image
	renderPass     vulkan.RenderPass
	pipelineLayout vulkan.PipelineLayout
	pipeline       vulkan.Pipeline
	framebuffers   []vulkan.Framebuffer
	uniforms       []*Buffer
	descriptorPool vulkan.DescriptorPool
	descriptorSets []vulkan.DescriptorSet
	commands       []vulkan.CommandBuffer
}

func newFrameTargets(alloc *Allocator, chain *presentationChain, sc *scene) (*frameTargets, error) {
	ctx := alloc.ctx
	t := &frameTargets{device: ctx.device, commandPool: ctx.commandPool}
	steps := []func() error{
		func() error { return t.createAttachments(alloc, chain) },
		func() error {
			rp, err := createRenderPass(ctx.device, chain.config.Format, ctx.depthFormat, ctx.samples)
			t.renderPass = rp
			return err
		},
		func() error {
			pipeline, layout, err := createGraphicsPipeline(ctx.device, pipelineSpec{
				stages:     sc.stages,
				layout:     sc.setLayout,
				renderPass: t.renderPass,
				extent:     chain.extent(),
				samples:    ctx.samples,
			})
			t.pipeline, t.pipelineLayout = pipeline, layout
			return err
		},
		func() error { return t.createFramebuffers(chain) },
		func() error { return t.createUniforms(alloc, len(chain.images)) },
		func() error { return t.createDescriptors(sc) },
		func() error { return t.recordCommands(chain, sc) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.destroy()
			return nil, err
		}
	}
	return t, nil
}

func (t *frameTargets) createAttachments(alloc *Allocator, chain *presentationChain) error {
	ctx := alloc.ctx
	extent := chain.extent()
	if ctx.samples != vulkan.SampleCount1Bit {
		color, err := alloc.CreateImage(ImageSpec{
			Width:   extent.Width,
			Height:  extent.Height,
			Samples: ctx.samples,
			Format:  chain.config.Format,
			Tiling:  vulkan.ImageTilingOptimal,
			Usage: vulkan.ImageUsageFlags(vulkan.ImageUsageTransientAttachmentBit |
				vulkan.ImageUsageColorAttachmentBit),
			Properties: vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit),
			Aspect:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
		})
		if err != nil {
			return errors.Wrap(err, "color target")
		}
		t.color = color
	}

	depth, err := alloc.CreateImage(ImageSpec{
		Width:      extent.Width,
		Height:     extent.Height,
		Samples:    ctx.samples,
		Format:     ctx.depthFormat,
		Tiling:     vulkan.ImageTilingOptimal,
		Usage:      vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit),
		Properties: vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit),
		Aspect:     vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit),
	})
	if err != nil {
		return errors.Wrap(err, "depth target")
	}
	t.depth = depth
	return nil
}

// framebufferAttachments orders views to match renderPassAttachments.
func (t *frameTargets) framebufferAttachments(swapView vulkan.ImageView) []vulkan.ImageView {
	if t.color != nil {
		return []vulkan.ImageView{t.color.View, t.depth.View, swapView}
	}
	return []vulkan.ImageView{swapView, t.depth.View}
}

func (t *frameTargets) createFramebuffers(chain *presentationChain) error {
	extent := chain.extent()
	t.framebuffers = make([]vulkan.Framebuffer, 0, len(chain.views))
	for i, view := range chain.views {
		attachments := t.framebufferAttachments(view)
		createInfo := vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      t.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}
		var fb vulkan.Framebuffer
		if err := vkerr.Check(vulkan.CreateFramebuffer(t.device, &createInfo, nil, &fb), fmt.Sprintf("create framebuffer %d", i)); err != nil {
			return err
		}
		t.framebuffers = append(t.framebuffers, fb)
	}
	return nil
}

func (t *frameTargets) createUniforms(alloc *Allocator, count int) error {
	t.uniforms = make([]*Buffer, 0, count)
	for i := 0; i < count; i++ {
		buf, err := alloc.CreateBuffer(
			uniformSize,
			vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit),
			vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit),
		)
		if err != nil {
			return errors.Wrapf(err, "uniform buffer %d", i)
		}
		t.uniforms = append(t.uniforms, buf)
	}
	return nil
}

func (t *frameTargets) createDescriptors(sc *scene) error {
	count := uint32(len(t.uniforms))
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       count,
		PoolSizeCount: 2,
		PPoolSizes: []vulkan.DescriptorPoolSize{
			{Type: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: count},
			{Type: vulkan.DescriptorTypeCombinedImageSampler, DescriptorCount: count},
		},
	}
	if err := vkerr.Check(vulkan.CreateDescriptorPool(t.device, &poolInfo, nil, &t.descriptorPool), "create descriptor pool"); err != nil {
		return err
	}

	layouts := make([]vulkan.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = sc.setLayout
	}
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     t.descriptorPool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	t.descriptorSets = make([]vulkan.DescriptorSet, count)
	if err := vkerr.Check(vulkan.AllocateDescriptorSets(t.device, &allocInfo, &t.descriptorSets[0]), "allocate descriptor sets"); err != nil {
		return err
	}

	for i, set := range t.descriptorSets {
		writes := []vulkan.WriteDescriptorSet{
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      0,
				DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				PBufferInfo: []vulkan.DescriptorBufferInfo{{
					Buffer: t.uniforms[i].Handle,
					Offset: 0,
					Range:  uniformSize,
				}},
			},
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      1,
				DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				PImageInfo: []vulkan.DescriptorImageInfo{{
					ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
					ImageView:   sc.texture.Image.View,
					Sampler:     sc.texture.Sampler,
				}},
			},
		}
		vulkan.UpdateDescriptorSets(t.device, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}

func (t *frameTargets) destroy() {
	if t == nil {
		return
	}
	if len(t.commands) > 0 {
		vulkan.FreeCommandBuffers(t.device, t.commandPool, uint32(len(t.commands)), t.commands)
		t.commands = nil
	}
	for _, fb := range t.framebuffers {
		vulkan.DestroyFramebuffer(t.device, fb, nil)
	}
	t.framebuffers = nil
	if t.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(t.device, t.pipeline, nil)
		t.pipeline = vulkan.Pipeline(vulkan.NullHandle)
	}
	if t.pipelineLayout != vulkan.PipelineLayout(vulkan.NullHandle) {
		vulkan.DestroyPipelineLayout(t.device, t.pipelineLayout, nil)
		t.pipelineLayout = vulkan.PipelineLayout(vulkan.NullHandle)
	}
	if t.renderPass != vulkan.RenderPass(vulkan.NullHandle) {
		vulkan.DestroyRenderPass(t.device, t.renderPass, nil)
		t.renderPass = vulkan.RenderPass(vulkan.NullHandle)
	}
	// Sets go back with their pool.
	if t.descriptorPool != vulkan.DescriptorPool(vulkan.NullHandle) {
		vulkan.DestroyDescriptorPool(t.device, t.descriptorPool, nil)
		t.descriptorPool = vulkan.DescriptorPool(vulkan.NullHandle)
	}
	t.descriptorSets = nil
	for _, buf := range t.uniforms {
		buf.Destroy()
	}
	t.uniforms = nil
	t.depth.Destroy()
	t.depth = nil
	t.color.Destroy()
	t.color = nil
}
