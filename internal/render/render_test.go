package render

import (
	"math"
	"testing"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/vkerr"
)

func flags(bits ...vulkan.MemoryPropertyFlagBits) vulkan.MemoryPropertyFlags {
	var f vulkan.MemoryPropertyFlags
	for _, b := range bits {
		f |= vulkan.MemoryPropertyFlags(b)
	}
	return f
}

func TestSelectMemoryType(t *testing.T) {
	types := []vulkan.MemoryType{
		{PropertyFlags: flags(vulkan.MemoryPropertyDeviceLocalBit)},
		{PropertyFlags: flags(vulkan.MemoryPropertyHostVisibleBit)},
		{PropertyFlags: flags(vulkan.MemoryPropertyHostVisibleBit, vulkan.MemoryPropertyHostCoherentBit)},
	}
	hostCoherent := flags(vulkan.MemoryPropertyHostVisibleBit, vulkan.MemoryPropertyHostCoherentBit)

	idx, err := selectMemoryType(types, 0b111, hostCoherent)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), idx)

	idx, err = selectMemoryType(types, 0b111, flags(vulkan.MemoryPropertyHostVisibleBit))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx, "first match wins")

	idx, err = selectMemoryType(types, 0b101, flags(vulkan.MemoryPropertyHostVisibleBit))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), idx, "filter excludes type 1")

	_, err = selectMemoryType(types, 0b011, hostCoherent)
	require.Error(t, err)
	assert.Equal(t, vkerr.KindResource, vkerr.KindOf(err))

	_, err = selectMemoryType(types, 0b111, flags(vulkan.MemoryPropertyLazilyAllocatedBit))
	assert.Error(t, err)
}

func TestMaxSampleCount(t *testing.T) {
	counts := vulkan.SampleCountFlags(vulkan.SampleCount1Bit | vulkan.SampleCount2Bit | vulkan.SampleCount4Bit | vulkan.SampleCount8Bit)
	assert.Equal(t, vulkan.SampleCount8Bit, maxSampleCount(counts))
	assert.Equal(t, vulkan.SampleCount1Bit, maxSampleCount(vulkan.SampleCountFlags(vulkan.SampleCount1Bit)))
	assert.Equal(t, vulkan.SampleCount1Bit, maxSampleCount(0))
	assert.Equal(t, vulkan.SampleCount64Bit, maxSampleCount(vulkan.SampleCountFlags(vulkan.SampleCount64Bit|vulkan.SampleCount2Bit)))
}

func TestLayoutTransition(t *testing.T) {
	masks, err := layoutTransition(vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)
	assert.Zero(t, masks.srcAccess)
	assert.Equal(t, vulkan.AccessFlags(vulkan.AccessTransferWriteBit), masks.dstAccess)
	assert.Equal(t, vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit), masks.srcStage)
	assert.Equal(t, vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit), masks.dstStage)

	masks, err = layoutTransition(vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal)
	require.NoError(t, err)
	assert.Equal(t, vulkan.AccessFlags(vulkan.AccessTransferWriteBit), masks.srcAccess)
	assert.Equal(t, vulkan.AccessFlags(vulkan.AccessShaderReadBit), masks.dstAccess)
	assert.Equal(t, vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit), masks.dstStage)

	_, err = layoutTransition(vulkan.ImageLayoutShaderReadOnlyOptimal, vulkan.ImageLayoutTransferDstOptimal)
	require.Error(t, err)
	assert.Equal(t, vkerr.KindPrecondition, vkerr.KindOf(err))
}

func TestMipBlitsHalveEachLevel(t *testing.T) {
	blits := mipBlits(1024, 256, 11)
	require.Len(t, blits, 10)
	for i, b := range blits {
		level := uint32(i + 1)
		assert.Equal(t, level-1, b.SrcSubresource.MipLevel)
		assert.Equal(t, level, b.DstSubresource.MipLevel)

		wantW := int32(math.Max(1, float64(int(1024)>>level)))
		wantH := int32(math.Max(1, float64(int(256)>>level)))
		assert.Equal(t, vulkan.Offset3D{X: wantW, Y: wantH, Z: 1}, b.DstOffsets[1], "level %d", level)
		if i > 0 {
			assert.Equal(t, blits[i-1].DstOffsets[1], b.SrcOffsets[1])
		}
	}
	assert.Empty(t, mipBlits(1, 1, 1))
}

func TestRenderPassAttachments(t *testing.T) {
	single := renderPassAttachments(vulkan.FormatB8g8r8a8Srgb, vulkan.FormatD32Sfloat, vulkan.SampleCount1Bit)
	require.Len(t, single, 2)
	assert.Equal(t, vulkan.ImageLayoutPresentSrc, single[0].FinalLayout)
	assert.Equal(t, vulkan.AttachmentStoreOpStore, single[0].StoreOp)

	multi := renderPassAttachments(vulkan.FormatB8g8r8a8Srgb, vulkan.FormatD32Sfloat, vulkan.SampleCount4Bit)
	require.Len(t, multi, 3)
	assert.Equal(t, vulkan.SampleCount4Bit, multi[0].Samples)
	assert.Equal(t, vulkan.SampleCount4Bit, multi[1].Samples)
	assert.Equal(t, vulkan.ImageLayoutColorAttachmentOptimal, multi[0].FinalLayout)
	assert.Equal(t, vulkan.SampleCount1Bit, multi[2].Samples)
	assert.Equal(t, vulkan.ImageLayoutPresentSrc, multi[2].FinalLayout)
	for _, a := range multi {
		if a.Format == vulkan.FormatD32Sfloat {
			assert.Equal(t, vulkan.ImageLayoutDepthStencilAttachmentOptimal, a.FinalLayout)
		}
	}
}

func TestCameraTransforms(t *testing.T) {
	cam := DefaultCamera()
	state := cam.transforms(3, vulkan.Extent2D{Width: 800, Height: 600})
	assert.Equal(t, mgl32.Ident4(), state.Model, "no spin keeps the model fixed")
	assert.Less(t, state.Proj[5], float32(0), "projection flips Y for Vulkan clip space")

	eye := state.View.Mul4x1(cam.Eye.Vec4(1))
	assert.InDelta(t, 0, eye.Vec3().Len(), 1e-4, "eye maps to the view origin")

	cam.Spin = 90
	spun := cam.transforms(1, vulkan.Extent2D{Width: 800, Height: 600})
	x := spun.Model.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, x.X(), 1e-5)
	assert.InDelta(t, 1, x.Y(), 1e-5)

	degenerate := cam.transforms(0, vulkan.Extent2D{Width: 800})
	for _, v := range degenerate.Proj {
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestUniformLayout(t *testing.T) {
	assert.EqualValues(t, 3*16*4, uniformSize)
	var u uniformState
	u.Model = mgl32.Ident4()
	b := u.bytes()
	require.Len(t, b, int(uniformSize))
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, b[:4], "Model[0] is 1.0")
}

func TestClearValuesAndCStrings(t *testing.T) {
	assert.Len(t, clearValues(), 2)
	assert.Equal(t, []string{"a\x00", "VK_KHR_swapchain\x00"}, cstrings([]string{"a", "VK_KHR_swapchain"}))
}
