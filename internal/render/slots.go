package render

import (
	"fmt"

	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/vkerr"
)

// frameSlot is the GPU side of one frame in flight.
type frameSlot struct {
	imageAcquired  vulkan.Semaphore
	renderFinished vulkan.Semaphore
	inFlight       vulkan.Fence
}

type slotSet struct {
	device vulkan.Device
	slots  []frameSlot
}

// Fences start signaled.
func newSlotSet(device vulkan.Device, n int) (*slotSet, error) {
	s := &slotSet{device: device, slots: make([]frameSlot, n)}
	semInfo := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
		Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
	}
	for i := range s.slots {
		slot := &s.slots[i]
		if err := vkerr.Check(vulkan.CreateSemaphore(device, &semInfo, nil, &slot.imageAcquired), fmt.Sprintf("create image-acquired semaphore %d", i)); err != nil {
			s.destroy()
			return nil, err
		}
		if err := vkerr.Check(vulkan.CreateSemaphore(device, &semInfo, nil, &slot.renderFinished), fmt.Sprintf("create render-finished semaphore %d", i)); err != nil {
			s.destroy()
			return nil, err
		}
		if err := vkerr.Check(vulkan.CreateFence(device, &fenceInfo, nil, &slot.inFlight), fmt.Sprintf("create in-flight fence %d", i)); err != nil {
			s.destroy()
			return nil, err
		}
	}
	return s, nil
}

func (s *slotSet) Wait(slot int) error {
	fences := []vulkan.Fence{s.slots[slot].inFlight}
	return vkerr.Check(vulkan.WaitForFences(s.device, 1, fences, vulkan.True, vulkan.MaxUint64), "wait for in-flight fence")
}

func (s *slotSet) Reset(slot int) error {
	fences := []vulkan.Fence{s.slots[slot].inFlight}
	return vkerr.Check(vulkan.ResetFences(s.device, 1, fences), "reset in-flight fence")
}

func (s *slotSet) destroy() {
	if s == nil {
		return
	}
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.imageAcquired != vulkan.Semaphore(vulkan.NullHandle) {
			vulkan.DestroySemaphore(s.device, slot.imageAcquired, nil)
		}
		if slot.renderFinished != vulkan.Semaphore(vulkan.NullHandle) {
			vulkan.DestroySemaphore(s.device, slot.renderFinished, nil)
		}
		if slot.inFlight != vulkan.Fence(vulkan.NullHandle) {
			vulkan.DestroyFence(s.device, slot.inFlight, nil)
		}
	}
	s.slots = nil
}
