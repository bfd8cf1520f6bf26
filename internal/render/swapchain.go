package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/swap"
	"kuberoom/internal/vkerr"
)

// presentationChain is the swapchain together with one view per image.
type presentationChain struct {
	device vulkan.Device
	handle vulkan.Swapchain
	images []vulkan.Image
	views  []vulkan.ImageView
	config swap.Config
}

func (c *RenderContext) createChain(width, height int) (*presentationChain, error) {
	cfg, err := swap.Negotiate(c.querySupport(c.physicalDevice), width, height)
	if err != nil {
		return nil, err
	}

	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          c.surface,
		MinImageCount:    cfg.ImageCount,
		ImageFormat:      cfg.Format,
		ImageColorSpace:  cfg.ColorSpace,
		ImageExtent:      cfg.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		PreTransform:     cfg.Transform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      cfg.PresentMode,
		Clipped:          vulkan.True,
		OldSwapchain:     vulkan.Swapchain(vulkan.NullHandle),
	}
	if c.queues.graphicsFamily != c.queues.presentFamily {
		indices := []uint32{c.queues.graphicsFamily, c.queues.presentFamily}
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(indices))
		createInfo.PQueueFamilyIndices = indices
	} else {
		createInfo.ImageSharingMode = vulkan.SharingModeExclusive
	}

	chain := &presentationChain{device: c.device, config: cfg}
	if err := vkerr.Check(vulkan.CreateSwapchain(c.device, &createInfo, nil, &chain.handle), "create swapchain"); err != nil {
		return nil, err
	}

	var count uint32
	if err := vkerr.Check(vulkan.GetSwapchainImages(c.device, chain.handle, &count, nil), "count swapchain images"); err != nil {
		chain.destroy()
		return nil, err
	}
	chain.images = make([]vulkan.Image, count)
	if err := vkerr.Check(vulkan.GetSwapchainImages(c.device, chain.handle, &count, chain.images), "get swapchain images"); err != nil {
		chain.destroy()
		return nil, err
	}

	chain.views = make([]vulkan.ImageView, 0, count)
	for i, img := range chain.images {
		view, err := createImageView(c.device, img, cfg.Format, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), 1)
		if err != nil {
			chain.destroy()
			return nil, errors.Wrapf(err, "swapchain image %d", i)
		}
		chain.views = append(chain.views, view)
	}

	log.Printf("Swapchain %dx%d, %d images, present mode %d",
		cfg.Extent.Width, cfg.Extent.Height, count, cfg.PresentMode)
	return chain, nil
}

func (p *presentationChain) extent() vulkan.Extent2D {
	return p.config.Extent
}

func (p *presentationChain) acquire(signal vulkan.Semaphore) (uint32, swap.Status, error) {
	var index uint32
	res := vulkan.AcquireNextImage(p.device, p.handle, vulkan.MaxUint64, signal, vulkan.Fence(vulkan.NullHandle), &index)
	status, err := swap.Classify(res, "acquire next image")
	if err != nil || status == swap.Stale {
		return 0, status, err
	}
	if int(index) >= len(p.images) {
		return 0, status, vkerr.Preconditionf("acquired image %d of %d", index, len(p.images))
	}
	return index, status, nil
}

func (p *presentationChain) present(queue vulkan.Queue, image uint32, wait vulkan.Semaphore) (swap.Status, error) {
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{p.handle},
		PImageIndices:      []uint32{image},
	}
	return swap.Classify(vulkan.QueuePresent(queue, &presentInfo), "queue present")
}

func (p *presentationChain) destroy() {
	if p == nil {
		return
	}
	for _, view := range p.views {
		vulkan.DestroyImageView(p.device, view, nil)
	}
	p.views = nil
	if p.handle != vulkan.Swapchain(vulkan.NullHandle) {
		vulkan.DestroySwapchain(p.device, p.handle, nil)
		p.handle = vulkan.Swapchain(vulkan.NullHandle)
	}
	p.images = nil
}
