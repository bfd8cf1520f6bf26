package render

import (
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/texture"
	"kuberoom/internal/vkerr"
)

func createImageView(device vulkan.Device, image vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags, mipLevels uint32) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vulkan.ImageView
	if err := vkerr.Check(vulkan.CreateImageView(device, &viewInfo, nil, &view), "create image view"); err != nil {
		return nil, err
	}
	return view, nil
}

type barrierMasks struct {
	srcAccess vulkan.AccessFlags
	dstAccess vulkan.AccessFlags
	srcStage  vulkan.PipelineStageFlags
	dstStage  vulkan.PipelineStageFlags
}

// layoutTransition knows the two transitions a texture upload needs.
// Anything else is refused.
func layoutTransition(from, to vulkan.ImageLayout) (barrierMasks, error) {
	switch {
	case from == vulkan.ImageLayoutUndefined && to == vulkan.ImageLayoutTransferDstOptimal:
		return barrierMasks{
			srcAccess: 0,
			dstAccess: vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
			srcStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit),
			dstStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
		}, nil
	case from == vulkan.ImageLayoutTransferDstOptimal && to == vulkan.ImageLayoutShaderReadOnlyOptimal:
		return barrierMasks{
			srcAccess: vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
			dstAccess: vulkan.AccessFlags(vulkan.AccessShaderReadBit),
			srcStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
			dstStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit),
		}, nil
	}
	return barrierMasks{}, vkerr.Preconditionf("unsupported layout transition %d -> %d", from, to)
}

func colorRange(baseMip, levels uint32) vulkan.ImageSubresourceRange {
	return vulkan.ImageSubresourceRange{
		AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
		BaseMipLevel:   baseMip,
		LevelCount:     levels,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func imageBarrier(img vulkan.Image, from, to vulkan.ImageLayout, srcAccess, dstAccess vulkan.AccessFlags, rng vulkan.ImageSubresourceRange) vulkan.ImageMemoryBarrier {
	return vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    rng,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
	}
}

func (c *RenderContext) transitionLayout(img *Image, from, to vulkan.ImageLayout) error {
	masks, err := layoutTransition(from, to)
	if err != nil {
		return err
	}
	barrier := imageBarrier(img.Handle, from, to, masks.srcAccess, masks.dstAccess, colorRange(0, img.Spec.MipLevels))
	return c.submitOnce(func(cmd vulkan.CommandBuffer) {
		vulkan.CmdPipelineBarrier(cmd, masks.srcStage, masks.dstStage, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
	})
}

func (c *RenderContext) copyBufferToImage(buf *Buffer, img *Image) error {
	region := vulkan.BufferImageCopy{
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vulkan.Extent3D{
			Width:  img.Spec.Width,
			Height: img.Spec.Height,
			Depth:  1,
		},
	}
	return c.submitOnce(func(cmd vulkan.CommandBuffer) {
		vulkan.CmdCopyBufferToImage(cmd, buf.Handle, img.Handle, vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{region})
	})
}

// mipBlits returns the blit from level i-1 into level i for every level
// after the base.
func mipBlits(width, height, levels uint32) []vulkan.ImageBlit {
	chain := texture.MipChain(width, height, levels)
	blits := make([]vulkan.ImageBlit, 0, len(chain))
	for i := 1; i < len(chain); i++ {
		src, dst := chain[i-1], chain[i]
		blits = append(blits, vulkan.ImageBlit{
			SrcSubresource: vulkan.ImageSubresourceLayers{
				AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
				MipLevel:   uint32(i - 1),
				LayerCount: 1,
			},
			SrcOffsets: [2]vulkan.Offset3D{{}, {X: src.Width, Y: src.Height, Z: 1}},
			DstSubresource: vulkan.ImageSubresourceLayers{
				AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
				MipLevel:   uint32(i),
				LayerCount: 1,
			},
			DstOffsets: [2]vulkan.Offset3D{{}, {X: dst.Width, Y: dst.Height, Z: 1}},
		})
	}
	return blits
}

// generateMipmaps fills levels 1..n-1 from level 0 and leaves every level in
// shader-read layout. The image must be in transfer-dst layout on entry.
func (c *RenderContext) generateMipmaps(img *Image) error {
	props := c.formatProperties(img.Spec.Format)
	if props.OptimalTilingFeatures&vulkan.FormatFeatureFlags(vulkan.FormatFeatureSampledImageFilterLinearBit) == 0 {
		return vkerr.Preconditionf("format %d does not support linear blitting", img.Spec.Format)
	}
	blits := mipBlits(img.Spec.Width, img.Spec.Height, img.Spec.MipLevels)
	last := img.Spec.MipLevels - 1

	return c.submitOnce(func(cmd vulkan.CommandBuffer) {
		transfer := vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
		fragment := vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit)
		for i, blit := range blits {
			level := uint32(i)
			toSrc := imageBarrier(img.Handle,
				vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutTransferSrcOptimal,
				vulkan.AccessFlags(vulkan.AccessTransferWriteBit), vulkan.AccessFlags(vulkan.AccessTransferReadBit),
				colorRange(level, 1))
			vulkan.CmdPipelineBarrier(cmd, transfer, transfer, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{toSrc})

			vulkan.CmdBlitImage(cmd,
				img.Handle, vulkan.ImageLayoutTransferSrcOptimal,
				img.Handle, vulkan.ImageLayoutTransferDstOptimal,
				1, []vulkan.ImageBlit{blit}, vulkan.FilterLinear)

			toRead := imageBarrier(img.Handle,
				vulkan.ImageLayoutTransferSrcOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal,
				vulkan.AccessFlags(vulkan.AccessTransferReadBit), vulkan.AccessFlags(vulkan.AccessShaderReadBit),
				colorRange(level, 1))
			vulkan.CmdPipelineBarrier(cmd, transfer, fragment, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{toRead})
		}

		// The last level was only ever written.
		lastRead := imageBarrier(img.Handle,
			vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal,
			vulkan.AccessFlags(vulkan.AccessTransferWriteBit), vulkan.AccessFlags(vulkan.AccessShaderReadBit),
			colorRange(last, 1))
		vulkan.CmdPipelineBarrier(cmd, transfer, fragment, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{lastRead})
	})
}

type Texture struct {
	Image   *Image
	Sampler vulkan.Sampler
}

func (t *Texture) Destroy() {
	if t == nil {
		return
	}
	if t.Sampler != vulkan.Sampler(vulkan.NullHandle) {
		vulkan.DestroySampler(t.Image.device, t.Sampler, nil)
		t.Sampler = vulkan.Sampler(vulkan.NullHandle)
	}
	t.Image.Destroy()
}

// textureFormat matches the sRGB swapchain format so sampled colors are
// linearized once.
const textureFormat = vulkan.FormatR8g8b8a8Srgb

// UploadTexture uploads pixels into a device-local image with a full mip
// chain and builds its sampler.
func (a *Allocator) UploadTexture(px *texture.Pixels) (*Texture, error) {
	if px == nil || px.Width == 0 || px.Height == 0 {
		return nil, vkerr.Preconditionf("texture has no pixels")
	}
	if len(px.RGBA) != px.Size() {
		return nil, vkerr.Preconditionf("texture holds %d bytes, want %d", len(px.RGBA), px.Size())
	}

	staging, err := a.stage(px.RGBA)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := a.CreateImage(ImageSpec{
		Width:     px.Width,
		Height:    px.Height,
		MipLevels: texture.MipLevels(px.Width, px.Height),
		Samples:   vulkan.SampleCount1Bit,
		Format:    textureFormat,
		Tiling:    vulkan.ImageTilingOptimal,
		Usage: vulkan.ImageUsageFlags(vulkan.ImageUsageTransferSrcBit |
			vulkan.ImageUsageTransferDstBit |
			vulkan.ImageUsageSampledBit),
		Properties: vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit),
		Aspect:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
	})
	if err != nil {
		return nil, err
	}
	tex := &Texture{Image: img}

	steps := []func() error{
		func() error {
			return a.ctx.transitionLayout(img, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal)
		},
		func() error { return a.ctx.copyBufferToImage(staging, img) },
		func() error { return a.ctx.generateMipmaps(img) },
		func() error {
			sampler, err := a.ctx.createSampler(img.Spec.MipLevels)
			tex.Sampler = sampler
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			tex.Destroy()
			return nil, err
		}
	}
	return tex, nil
}

func (c *RenderContext) createSampler(mipLevels uint32) (vulkan.Sampler, error) {
	samplerInfo := vulkan.SamplerCreateInfo{
		SType:                   vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:               vulkan.FilterLinear,
		MinFilter:               vulkan.FilterLinear,
		AddressModeU:            vulkan.SamplerAddressModeRepeat,
		AddressModeV:            vulkan.SamplerAddressModeRepeat,
		AddressModeW:            vulkan.SamplerAddressModeRepeat,
		AnisotropyEnable:        vulkan.False,
		MaxAnisotropy:           1,
		BorderColor:             vulkan.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vulkan.False,
		CompareEnable:           vulkan.False,
		CompareOp:               vulkan.CompareOpAlways,
		MipmapMode:              vulkan.SamplerMipmapModeLinear,
		MinLod:                  0,
		MaxLod:                  float32(mipLevels),
	}
	if c.anisotropy {
		samplerInfo.AnisotropyEnable = vulkan.True
		samplerInfo.MaxAnisotropy = c.maxAnisotropy
	}
	var sampler vulkan.Sampler
	if err := vkerr.Check(vulkan.CreateSampler(c.device, &samplerInfo, nil, &sampler), "create texture sampler"); err != nil {
		return nil, err
	}
	return sampler, nil
}
