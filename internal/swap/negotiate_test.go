package swap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/vkerr"
)

func undefinedExtentCaps(min, max vulkan.Extent2D) vulkan.SurfaceCapabilities {
	return vulkan.SurfaceCapabilities{
		MinImageCount:  2,
		MaxImageCount:  8,
		CurrentExtent:  vulkan.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: min,
		MaxImageExtent: max,
	}
}

func TestChooseExtentClampsIntoBounds(t *testing.T) {
	min := vulkan.Extent2D{Width: 16, Height: 32}
	max := vulkan.Extent2D{Width: 2048, Height: 1024}
	caps := undefinedExtentCaps(min, max)

	for _, w := range []int{0, 1, 15, 16, 17, 800, 2047, 2048, 2049, 100000} {
		for _, h := range []int{0, 31, 32, 600, 1024, 1025, 70000} {
			got := ChooseExtent(caps, w, h)
			assert.GreaterOrEqual(t, got.Width, min.Width)
			assert.LessOrEqual(t, got.Width, max.Width)
			assert.GreaterOrEqual(t, got.Height, min.Height)
			assert.LessOrEqual(t, got.Height, max.Height)
			if uint32(w) >= min.Width && uint32(w) <= max.Width {
				assert.Equal(t, uint32(w), got.Width)
			}
			if uint32(h) >= min.Height && uint32(h) <= max.Height {
				assert.Equal(t, uint32(h), got.Height)
			}
		}
	}
}

func TestChooseExtentUndefinedSentinelUsesFramebuffer(t *testing.T) {
	caps := undefinedExtentCaps(vulkan.Extent2D{Width: 1, Height: 1}, vulkan.Extent2D{Width: 4096, Height: 4096})
	got := ChooseExtent(caps, 1024, 768)
	assert.Equal(t, vulkan.Extent2D{Width: 1024, Height: 768}, got)
}

func TestChooseExtentPrefersCurrentExtent(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		CurrentExtent:  vulkan.Extent2D{Width: 640, Height: 480},
		MinImageExtent: vulkan.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vulkan.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, vulkan.Extent2D{Width: 640, Height: 480}, ChooseExtent(caps, 1920, 1080))
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, vulkan.PresentModeFifo, ChoosePresentMode([]vulkan.PresentMode{vulkan.PresentModeFifo}))
	assert.Equal(t, vulkan.PresentModeFifo, ChoosePresentMode([]vulkan.PresentMode{vulkan.PresentModeImmediate, vulkan.PresentModeFifo}))
	assert.Equal(t, vulkan.PresentModeMailbox, ChoosePresentMode([]vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox}))
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vulkan.SurfaceFormat{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}
	other := vulkan.SurfaceFormat{Format: vulkan.FormatR8g8b8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}

	assert.Equal(t, preferred, ChooseSurfaceFormat([]vulkan.SurfaceFormat{other, preferred}))
	assert.Equal(t, other, ChooseSurfaceFormat([]vulkan.SurfaceFormat{other}))
}

func TestImageCount(t *testing.T) {
	for _, tc := range []struct {
		min, max, want uint32
	}{
		{2, 8, 3},
		{2, 0, 3},
		{3, 3, 3},
		{1, 2, 2},
	} {
		caps := vulkan.SurfaceCapabilities{MinImageCount: tc.min, MaxImageCount: tc.max}
		assert.Equal(t, tc.want, ImageCount(caps), "min=%d max=%d", tc.min, tc.max)
	}
}

func TestNegotiateIsStableForUnchangedSurface(t *testing.T) {
	support := Support{
		Capabilities: undefinedExtentCaps(vulkan.Extent2D{Width: 1, Height: 1}, vulkan.Extent2D{Width: 4096, Height: 4096}),
		Formats: []vulkan.SurfaceFormat{
			{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
			{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vulkan.PresentMode{vulkan.PresentModeFifo},
	}

	first, err := Negotiate(support, 800, 600)
	require.NoError(t, err)
	second, err := Negotiate(support, 800, 600)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, uint32(3), first.ImageCount)
	assert.Equal(t, vulkan.FormatB8g8r8a8Srgb, first.Format)
	assert.Equal(t, vulkan.PresentModeFifo, first.PresentMode)
}

func TestNegotiateRejectsInadequateSurface(t *testing.T) {
	_, err := Negotiate(Support{PresentModes: []vulkan.PresentMode{vulkan.PresentModeFifo}}, 800, 600)
	require.Error(t, err)
	assert.Equal(t, vkerr.KindSetup, vkerr.KindOf(err))
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		res    vulkan.Result
		status Status
	}{
		{vulkan.Success, Ready},
		{vulkan.Suboptimal, Suboptimal},
		{vulkan.ErrorOutOfDate, Stale},
	} {
		status, err := Classify(tc.res, "acquire next image")
		require.NoError(t, err)
		assert.Equal(t, tc.status, status)
	}

	_, err := Classify(vulkan.ErrorDeviceLost, "queue present")
	require.Error(t, err)
	assert.Equal(t, vkerr.KindResource, vkerr.KindOf(err))
}

type fakeWindow struct {
	sizes [][2]int
	waits int
}

func (f *fakeWindow) FramebufferSize() (int, int) {
	s := f.sizes[0]
	if len(f.sizes) > 1 {
		f.sizes = f.sizes[1:]
	}
	return s[0], s[1]
}

func (f *fakeWindow) WaitEvents() { f.waits++ }

func TestAwaitDrawableBlocksWhileMinimized(t *testing.T) {
	win := &fakeWindow{sizes: [][2]int{{0, 0}, {0, 600}, {800, 0}, {800, 600}}}
	w, h := AwaitDrawable(win)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	assert.Equal(t, 3, win.waits)
}

func TestAwaitDrawableReturnsImmediately(t *testing.T) {
	win := &fakeWindow{sizes: [][2]int{{1024, 768}}}
	w, h := AwaitDrawable(win)
	assert.Equal(t, [2]int{1024, 768}, [2]int{w, h})
	assert.Zero(t, win.waits)
}
