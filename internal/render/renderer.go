// Package render drives Vulkan: device bring-up, resource creation, the
// presentation chain and everything sized by it.
package render

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"kuberoom/internal/frame"
	"kuberoom/internal/mesh"
	"kuberoom/internal/shader"
	"kuberoom/internal/swap"
	"kuberoom/internal/texture"
	"kuberoom/internal/vkerr"
)

// Options configures device bring-up and frame pacing.
type Options struct {
	Validation     bool
	Multisample    bool
	FramesInFlight int
	Camera         Camera
	Logger         *slog.Logger
}

// Assets are the CPU-side inputs uploaded once at startup.
type Assets struct {
	Mesh    mesh.Mesh
	Texture *texture.Pixels
	Shaders shader.Stages
}

// Renderer owns every GPU object of the viewer. It implements engine.Target.
type Renderer struct {
	ctx    *RenderContext
	alloc  *Allocator
	camera Camera
	start  time.Time

	scene   scene
	chain   *presentationChain
	targets *frameTargets
	slots   *slotSet
}

// New brings up Vulkan for window, uploads assets and builds the first
// presentation chain.
func New(window *glfw.Window, opts Options, assets Assets) (*Renderer, error) {
	if opts.FramesInFlight < 1 {
		return nil, vkerr.Preconditionf("frames in flight must be at least 1, got %d", opts.FramesInFlight)
	}
	if len(assets.Mesh.Indices) == 0 {
		return nil, vkerr.Preconditionf("mesh has no triangles")
	}
	ctx, err := NewContext(window, opts)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		ctx:    ctx,
		alloc:  NewAllocator(ctx, opts.Logger),
		camera: opts.Camera,
		start:  time.Now(),
	}
	if err := r.init(opts, assets); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(opts Options, assets Assets) error {
	var err error
	r.scene.stages = assets.Shaders
	if r.scene.setLayout, err = createDescriptorSetLayout(r.ctx.device); err != nil {
		return err
	}
	if r.scene.vertices, err = r.alloc.UploadBuffer(assets.Mesh.VertexBytes(), vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit)); err != nil {
		return errors.Wrap(err, "vertex buffer")
	}
	if r.scene.indices, err = r.alloc.UploadBuffer(assets.Mesh.IndexBytes(), vulkan.BufferUsageFlags(vulkan.BufferUsageIndexBufferBit)); err != nil {
		return errors.Wrap(err, "index buffer")
	}
	r.scene.indexCount = uint32(len(assets.Mesh.Indices))
	if r.scene.texture, err = r.alloc.UploadTexture(assets.Texture); err != nil {
		return errors.Wrap(err, "texture")
	}
	if r.slots, err = newSlotSet(r.ctx.device, opts.FramesInFlight); err != nil {
		return err
	}
	width, height := swap.AwaitDrawable(r.ctx)
	return r.build(width, height)
}

func (r *Renderer) build(width, height int) error {
	chain, err := r.ctx.createChain(width, height)
	if err != nil {
		return err
	}
	r.chain = chain
	targets, err := newFrameTargets(r.alloc, chain, &r.scene)
	if err != nil {
		return err
	}
	r.targets = targets
	return nil
}

func (r *Renderer) teardownChain() {
	r.targets.destroy()
	r.targets = nil
	r.chain.destroy()
	r.chain = nil
}

func (r *Renderer) Fences() frame.Fences {
	return r.slots
}

func (r *Renderer) ImageCount() int {
	if r.chain == nil {
		return 0
	}
	return len(r.chain.images)
}

func (r *Renderer) Acquire(slot int) (uint32, swap.Status, error) {
	return r.chain.acquire(r.slots.slots[slot].imageAcquired)
}

func (r *Renderer) Prepare(image uint32) error {
	state := r.camera.transforms(float32(time.Since(r.start).Seconds()), r.chain.extent())
	return r.alloc.Write(r.targets.uniforms[image], state.bytes())
}

func (r *Renderer) Submit(slot int, image uint32) error {
	s := r.slots.slots[slot]
	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{s.imageAcquired},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{r.targets.commands[image]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{s.renderFinished},
	}
	return vkerr.Check(vulkan.QueueSubmit(r.ctx.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, s.inFlight), "queue submit")
}

func (r *Renderer) Present(slot int, image uint32) (swap.Status, error) {
	return r.chain.present(r.ctx.presentQueue, image, r.slots.slots[slot].renderFinished)
}

// Rebuild blocks while the window is minimized.
func (r *Renderer) Rebuild() (int, error) {
	width, height := swap.AwaitDrawable(r.ctx)
	if err := r.ctx.waitIdle(); err != nil {
		return 0, err
	}
	r.teardownChain()
	if err := r.build(width, height); err != nil {
		return 0, err
	}
	return r.ImageCount(), nil
}

func (r *Renderer) Destroy() {
	if r.ctx == nil {
		return
	}
	if err := r.ctx.waitIdle(); err != nil {
		log.Printf("device did not go idle before teardown: %v", err)
	}
	r.teardownChain()
	r.slots.destroy()
	r.slots = nil
	r.scene.destroy(r.ctx.device)
	r.ctx.Destroy()
	r.ctx = nil
}
