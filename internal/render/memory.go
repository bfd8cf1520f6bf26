package render

import (
	"unsafe"

	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"kuberoom/internal/vkerr"
)

// Buffer owns a buffer handle and the memory bound to it. Destroy releases
// both together.
type Buffer struct {
	Handle vulkan.Buffer
	Memory vulkan.DeviceMemory
	Size   vulkan.DeviceSize

	device vulkan.Device
}

func (b *Buffer) Destroy() {
	if b == nil {
		return
	}
	if b.Handle != vulkan.Buffer(vulkan.NullHandle) {
		vulkan.DestroyBuffer(b.device, b.Handle, nil)
		b.Handle = vulkan.Buffer(vulkan.NullHandle)
	}
	if b.Memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(b.device, b.Memory, nil)
		b.Memory = vulkan.DeviceMemory(vulkan.NullHandle)
	}
}

type ImageSpec struct {
	Width, Height uint32
	MipLevels     uint32
	Samples       vulkan.SampleCountFlagBits
	Format        vulkan.Format
	Tiling        vulkan.ImageTiling
	Usage         vulkan.ImageUsageFlags
	Properties    vulkan.MemoryPropertyFlags
	Aspect        vulkan.ImageAspectFlags
}

// Image owns an image, its memory and its view.
type Image struct {
	Handle vulkan.Image
	Memory vulkan.DeviceMemory
	View   vulkan.ImageView
	Spec   ImageSpec

	device vulkan.Device
}

func (i *Image) Destroy() {
	if i == nil {
		return
	}
	if i.View != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(i.device, i.View, nil)
		i.View = vulkan.ImageView(vulkan.NullHandle)
	}
	if i.Handle != vulkan.Image(vulkan.NullHandle) {
		vulkan.DestroyImage(i.device, i.Handle, nil)
		i.Handle = vulkan.Image(vulkan.NullHandle)
	}
	if i.Memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(i.device, i.Memory, nil)
		i.Memory = vulkan.DeviceMemory(vulkan.NullHandle)
	}
}

type Allocator struct {
	ctx         *RenderContext
	logger      *slog.Logger
	memoryTypes []vulkan.MemoryType
}

func NewAllocator(ctx *RenderContext, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	var props vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(ctx.physicalDevice, &props)
	props.Deref()
	types := make([]vulkan.MemoryType, props.MemoryTypeCount)
	for i := range types {
		props.MemoryTypes[i].Deref()
		types[i] = props.MemoryTypes[i]
	}
	return &Allocator{ctx: ctx, logger: logger, memoryTypes: types}
}

// selectMemoryType returns the first type allowed by filter whose property
// flags include every bit of want.
func selectMemoryType(types []vulkan.MemoryType, filter uint32, want vulkan.MemoryPropertyFlags) (uint32, error) {
	for i, t := range types {
		if filter&(1<<uint(i)) != 0 && t.PropertyFlags&want == want {
			return uint32(i), nil
		}
	}
	return 0, vkerr.Resourcef("no memory type matches filter 0x%x with properties 0x%x", filter, want)
}

func (a *Allocator) allocate(req vulkan.MemoryRequirements, props vulkan.MemoryPropertyFlags) (vulkan.DeviceMemory, error) {
	typeIndex, err := selectMemoryType(a.memoryTypes, req.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vulkan.DeviceMemory
	if err := vkerr.Check(vulkan.AllocateMemory(a.ctx.device, &allocInfo, nil, &memory), "allocate memory"); err != nil {
		return nil, err
	}
	a.logger.Debug("allocated device memory",
		slog.Uint64("size", uint64(req.Size)),
		slog.Int("type", int(typeIndex)),
		slog.Uint64("properties", uint64(props)))
	return memory, nil
}

func (a *Allocator) CreateBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlags) (*Buffer, error) {
	buf := &Buffer{Size: size, device: a.ctx.device}
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	if err := vkerr.Check(vulkan.CreateBuffer(a.ctx.device, &bufferInfo, nil, &buf.Handle), "create buffer"); err != nil {
		return nil, err
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(a.ctx.device, buf.Handle, &memReq)
	memReq.Deref()

	memory, err := a.allocate(memReq, props)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	buf.Memory = memory
	if err := vkerr.Check(vulkan.BindBufferMemory(a.ctx.device, buf.Handle, buf.Memory, 0), "bind buffer memory"); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// CreateImage allocates an image and, when spec.Aspect is set, its view.
func (a *Allocator) CreateImage(spec ImageSpec) (*Image, error) {
	if spec.MipLevels == 0 {
		spec.MipLevels = 1
	}
	if spec.Samples == 0 {
		spec.Samples = vulkan.SampleCount1Bit
	}
	img := &Image{Spec: spec, device: a.ctx.device}
	imageInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     spec.MipLevels,
		ArrayLayers:   1,
		Format:        spec.Format,
		Tiling:        spec.Tiling,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         spec.Usage,
		Samples:       spec.Samples,
		SharingMode:   vulkan.SharingModeExclusive,
	}
	if err := vkerr.Check(vulkan.CreateImage(a.ctx.device, &imageInfo, nil, &img.Handle), "create image"); err != nil {
		return nil, err
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(a.ctx.device, img.Handle, &memReq)
	memReq.Deref()

	memory, err := a.allocate(memReq, spec.Properties)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = memory
	if err := vkerr.Check(vulkan.BindImageMemory(a.ctx.device, img.Handle, img.Memory, 0), "bind image memory"); err != nil {
		img.Destroy()
		return nil, err
	}

	if spec.Aspect != 0 {
		view, err := createImageView(a.ctx.device, img.Handle, spec.Format, spec.Aspect, spec.MipLevels)
		if err != nil {
			img.Destroy()
			return nil, err
		}
		img.View = view
	}
	return img, nil
}

func (a *Allocator) Write(buf *Buffer, data []byte) error {
	if vulkan.DeviceSize(len(data)) > buf.Size {
		return vkerr.Preconditionf("write of %d bytes into %d byte buffer", len(data), buf.Size)
	}
	var mapped unsafe.Pointer
	if err := vkerr.Check(vulkan.MapMemory(a.ctx.device, buf.Memory, 0, vulkan.DeviceSize(len(data)), 0, &mapped), "map memory"); err != nil {
		return err
	}
	vulkan.Memcopy(mapped, data)
	vulkan.UnmapMemory(a.ctx.device, buf.Memory)
	return nil
}

func (a *Allocator) stage(data []byte) (*Buffer, error) {
	staging, err := a.CreateBuffer(
		vulkan.DeviceSize(len(data)),
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		return nil, err
	}
	if err := a.Write(staging, data); err != nil {
		staging.Destroy()
		return nil, err
	}
	return staging, nil
}

// UploadBuffer copies data into a new device-local buffer through a staging
// buffer. The staging buffer is gone by the time UploadBuffer returns.
func (a *Allocator) UploadBuffer(data []byte, usage vulkan.BufferUsageFlags) (*Buffer, error) {
	if len(data) == 0 {
		return nil, vkerr.Preconditionf("upload of empty buffer")
	}
	staging, err := a.stage(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	dst, err := a.CreateBuffer(
		staging.Size,
		usage|vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit),
		vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return nil, err
	}
	err = a.ctx.submitOnce(func(cmd vulkan.CommandBuffer) {
		vulkan.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, 1, []vulkan.BufferCopy{{
			Size: staging.Size,
		}})
	})
	if err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// submitOnce records a throwaway command buffer, submits it to the graphics
// queue and blocks on its fence.
func (c *RenderContext) submitOnce(record func(cmd vulkan.CommandBuffer)) error {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandPool:        c.commandPool,
		CommandBufferCount: 1,
	}
	cmds := make([]vulkan.CommandBuffer, 1)
	if err := vkerr.Check(vulkan.AllocateCommandBuffers(c.device, &allocInfo, cmds), "allocate one-shot command buffer"); err != nil {
		return err
	}
	defer vulkan.FreeCommandBuffers(c.device, c.commandPool, 1, cmds)

	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkerr.Check(vulkan.BeginCommandBuffer(cmds[0], &beginInfo), "begin one-shot command buffer"); err != nil {
		return err
	}
	record(cmds[0])
	if err := vkerr.Check(vulkan.EndCommandBuffer(cmds[0]), "end one-shot command buffer"); err != nil {
		return err
	}

	fenceInfo := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	var fence vulkan.Fence
	if err := vkerr.Check(vulkan.CreateFence(c.device, &fenceInfo, nil, &fence), "create one-shot fence"); err != nil {
		return err
	}
	defer vulkan.DestroyFence(c.device, fence, nil)

	submit := []vulkan.SubmitInfo{{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmds,
	}}
	if err := vkerr.Check(vulkan.QueueSubmit(c.graphicsQueue, 1, submit, fence), "submit one-shot command buffer"); err != nil {
		return err
	}
	return vkerr.Check(vulkan.WaitForFences(c.device, 1, []vulkan.Fence{fence}, vulkan.True, vulkan.MaxUint64), "wait for one-shot fence")
}
