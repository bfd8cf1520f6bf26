// Package frame bounds how many frames the GPU works on at once and keeps
// two frames from rendering into the same presentable image.
package frame

import (
	"github.com/cockroachdb/errors"
)

// SlotState is the lifecycle of one FrameSlot:
// Idle -> Submitted -> Complete -> Idle.
type SlotState int

const (
	Idle SlotState = iota
	Submitted
	Complete
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitted:
		return "submitted"
	case Complete:
		return "complete"
	default:
		return "invalid"
	}
}

// Fences is the device side of the slots' frame-complete fences. Fences are
// manual-reset and start out signaled.
type Fences interface {
	// Wait blocks until the slot's fence is signaled.
	Wait(slot int) error
	// Reset unsignals the slot's fence ahead of a new submission.
	Reset(slot int) error
}

type slot struct {
	state SlotState
	image uint32
}

const noOwner = -1

// Synchronizer coordinates N FrameSlots, selected round-robin, and the
// in-flight map from presentable image to the slot rendering into it.
type Synchronizer struct {
	fences  Fences
	slots   []slot
	owners  []int
	current int
}

func New(slots, images int, fences Fences) (*Synchronizer, error) {
	if slots < 1 {
		return nil, errors.Newf("frames in flight must be positive, got %d", slots)
	}
	s := &Synchronizer{
		fences: fences,
		slots:  make([]slot, slots),
	}
	s.Reset(images)
	return s, nil
}

func (s *Synchronizer) Slots() int { return len(s.slots) }

// Current is the active slot for this tick.
func (s *Synchronizer) Current() int { return s.current }

func (s *Synchronizer) State(k int) SlotState { return s.slots[k].state }

// Owner returns the slot last recorded as rendering into image.
func (s *Synchronizer) Owner(image uint32) (int, bool) {
	if int(image) >= len(s.owners) || s.owners[image] == noOwner {
		return 0, false
	}
	return s.owners[image], true
}

// InFlight counts slots whose submission has not been observed complete.
func (s *Synchronizer) InFlight() int {
	n := 0
	for _, sl := range s.slots {
		if sl.state == Submitted {
			n++
		}
	}
	return n
}

// Begin waits out the active slot's previous use. After it returns at most
// N-1 other frames are executing.
func (s *Synchronizer) Begin() (int, error) {
	if err := s.await(s.current); err != nil {
		return s.current, err
	}
	s.slots[s.current].state = Idle
	return s.current, nil
}

// Claim makes image safe to render into from the active slot, waiting on the
// fence of whichever other slot is still rendering into it.
func (s *Synchronizer) Claim(image uint32) error {
	if int(image) >= len(s.owners) {
		return errors.Newf("image index %d out of range (%d images)", image, len(s.owners))
	}
	// A reused owner slot was already waited on in Begin, so only its
	// current submission can still be writing the image.
	if owner := s.owners[image]; owner != noOwner && owner != s.current && s.slots[owner].image == image {
		if err := s.await(owner); err != nil {
			return err
		}
	}
	s.owners[image] = s.current
	return nil
}

// Arm resets the active slot's fence so the coming submission can signal it.
func (s *Synchronizer) Arm() error {
	if err := s.fences.Reset(s.current); err != nil {
		return errors.Wrapf(err, "reset fence of slot %d", s.current)
	}
	return nil
}

// MarkSubmitted records that the active slot's fence now guards a GPU
// submission rendering into image.
func (s *Synchronizer) MarkSubmitted(image uint32) {
	s.slots[s.current] = slot{state: Submitted, image: image}
}

// Advance moves to the next slot.
func (s *Synchronizer) Advance() {
	s.current = (s.current + 1) % len(s.slots)
}

// Reset forgets every image owner and resizes the map for a rebuilt chain.
// The caller must have waited for the device to go idle, so every slot is
// complete.
func (s *Synchronizer) Reset(images int) {
	for i := range s.slots {
		if s.slots[i].state == Submitted {
			s.slots[i].state = Complete
		}
	}
	s.owners = make([]int, images)
	for i := range s.owners {
		s.owners[i] = noOwner
	}
}

func (s *Synchronizer) await(k int) error {
	if s.slots[k].state != Submitted {
		return nil
	}
	if err := s.fences.Wait(k); err != nil {
		return errors.Wrapf(err, "wait for fence of slot %d", k)
	}
	s.slots[k].state = Complete
	return nil
}
