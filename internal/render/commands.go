package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/vkerr"
)

// clearValues returns opaque black for color and the far plane for depth.
func clearValues() []vulkan.ClearValue {
	return []vulkan.ClearValue{
		vulkan.NewClearValue([]float32{0, 0, 0, 1}),
		vulkan.NewClearDepthStencil(1.0, 0),
	}
}

// recordCommands records one command buffer per presentable image. They are
// replayed every frame until the next rebuild.
func (t *frameTargets) recordCommands(chain *presentationChain, sc *scene) error {
	count := uint32(len(t.framebuffers))
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        t.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	commands := make([]vulkan.CommandBuffer, count)
	if err := vkerr.Check(vulkan.AllocateCommandBuffers(t.device, &allocInfo, commands), "allocate command buffers"); err != nil {
		return err
	}
	t.commands = commands

	for i, cb := range t.commands {
		if err := t.record(cb, i, chain.extent(), sc); err != nil {
			return errors.Wrapf(err, "record image %d", i)
		}
	}
	return nil
}

func (t *frameTargets) record(cb vulkan.CommandBuffer, image int, extent vulkan.Extent2D, sc *scene) error {
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	if err := vkerr.Check(vulkan.BeginCommandBuffer(cb, &beginInfo), "begin command buffer"); err != nil {
		return err
	}

	clears := clearValues()
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  t.renderPass,
		Framebuffer: t.framebuffers[image],
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}

	vulkan.CmdBeginRenderPass(cb, &renderPassInfo, vulkan.SubpassContentsInline)
	vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, t.pipeline)
	vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{sc.vertices.Handle}, []vulkan.DeviceSize{0})
	vulkan.CmdBindIndexBuffer(cb, sc.indices.Handle, 0, vulkan.IndexTypeUint32)
	vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointGraphics, t.pipelineLayout, 0, 1, []vulkan.DescriptorSet{t.descriptorSets[image]}, 0, nil)
	vulkan.CmdDrawIndexed(cb, sc.indexCount, 1, 0, 0, 0)
	vulkan.CmdEndRenderPass(cb)

	return vkerr.Check(vulkan.EndCommandBuffer(cb), "end command buffer")
}
