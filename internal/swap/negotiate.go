// Package swap decides how a presentation chain should look for a surface
// and interprets what the presentation engine says about it.
package swap

import (
	"math"

	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/constraints"

	"kuberoom/internal/vkerr"
)

// Support is what a physical device reports for one surface.
type Support struct {
	Capabilities vulkan.SurfaceCapabilities
	Formats      []vulkan.SurfaceFormat
	PresentModes []vulkan.PresentMode
}

// Adequate reports whether a chain can be created at all.
func (s Support) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

// Config is the negotiated shape of a presentation chain.
type Config struct {
	Format      vulkan.Format
	ColorSpace  vulkan.ColorSpace
	PresentMode vulkan.PresentMode
	Extent      vulkan.Extent2D
	ImageCount  uint32
	Transform   vulkan.SurfaceTransformFlagBits
}

// Negotiate picks format, present mode, extent and image count for a
// framebuffer of width x height pixels.
func Negotiate(support Support, width, height int) (Config, error) {
	if !support.Adequate() {
		return Config{}, vkerr.Setupf("surface reports %d formats and %d present modes",
			len(support.Formats), len(support.PresentModes))
	}
	format := ChooseSurfaceFormat(support.Formats)
	return Config{
		Format:      format.Format,
		ColorSpace:  format.ColorSpace,
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(support.Capabilities, width, height),
		ImageCount:  ImageCount(support.Capabilities),
		Transform:   support.Capabilities.CurrentTransform,
	}, nil
}

func ChooseSurfaceFormat(available []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, f := range available {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return available[0]
}

// ChoosePresentMode prefers mailbox; FIFO is always available.
func ChoosePresentMode(available []vulkan.PresentMode) vulkan.PresentMode {
	for _, m := range available {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	return vulkan.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless the surface leaves
// it to the application, in which case the framebuffer size is clamped into
// the surface bounds.
func ChooseExtent(caps vulkan.SurfaceCapabilities, width, height int) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	min := caps.MinImageExtent
	max := caps.MaxImageExtent
	return vulkan.Extent2D{
		Width:  clamp(uint32(width), min.Width, max.Width),
		Height: clamp(uint32(height), min.Height, max.Height),
	}
}

// ImageCount asks for one image more than the minimum. A zero maximum means
// unbounded.
func ImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp[T constraints.Ordered](val, lo, hi T) T {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
