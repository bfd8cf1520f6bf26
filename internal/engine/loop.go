// Package engine drives one frame per tick: acquire a presentable image,
// gate on the frame slots, submit, present, and rebuild the chain when the
// presentation engine or the window asks for it.
package engine

import (
	"github.com/cockroachdb/errors"

	"kuberoom/internal/frame"
	"kuberoom/internal/swap"
)

// Target is the GPU side of a frame.
type Target interface {
	// ImageCount is the number of presentable images in the current chain.
	ImageCount() int
	// Acquire asks for the next presentable image, signaling the slot's
	// image-acquired semaphore when it is ready.
	Acquire(slot int) (uint32, swap.Status, error)
	// Prepare refreshes the per-image uniform state.
	Prepare(image uint32) error
	// Submit queues the image's prerecorded commands, waiting on the slot's
	// image-acquired semaphore and signaling render-finished and the slot
	// fence.
	Submit(slot int, image uint32) error
	// Present hands the image back, waiting on the slot's render-finished
	// semaphore.
	Present(slot int, image uint32) (swap.Status, error)
	// Rebuild recreates the chain and everything sized by it.
	Rebuild() (images int, err error)
}

type TickResult int

const (
	// Presented means a frame was submitted and handed to the display.
	Presented TickResult = iota
	// Skipped means the chain was stale and got rebuilt instead of drawn.
	Skipped
)

type Loop struct {
	target  Target
	sync    *frame.Synchronizer
	resized bool
	stale   bool
	stats   *Stats
}

func New(target Target, sync *frame.Synchronizer, stats *Stats) *Loop {
	return &Loop{
		target: target,
		sync:   sync,
		stats:  stats,
	}
}

// RequestRebuild latches a window resize; it is acted on next tick.
func (l *Loop) RequestRebuild() {
	l.resized = true
}

// Pending reports whether a rebuild is scheduled for the next tick.
func (l *Loop) Pending() bool {
	return l.resized || l.stale
}

func (l *Loop) Tick() (TickResult, error) {
	slot, err := l.sync.Begin()
	if err != nil {
		return Skipped, err
	}

	if l.Pending() {
		if err := l.rebuild(); err != nil {
			return Skipped, err
		}
	}

	image, status, err := l.target.Acquire(slot)
	if err != nil {
		return Skipped, errors.Wrap(err, "acquire next image")
	}
	if status == swap.Stale {
		return Skipped, l.rebuild()
	}
	// A suboptimal image is still usable; present will report it again.

	if err := l.sync.Claim(image); err != nil {
		return Skipped, err
	}
	if err := l.target.Prepare(image); err != nil {
		return Skipped, err
	}
	if err := l.sync.Arm(); err != nil {
		return Skipped, err
	}
	if err := l.target.Submit(slot, image); err != nil {
		return Skipped, errors.Wrap(err, "submit draw")
	}
	l.sync.MarkSubmitted(image)

	status, err = l.target.Present(slot, image)
	if err != nil {
		return Presented, errors.Wrap(err, "present")
	}
	if status.NeedsRebuild() {
		l.stale = true
	}
	l.sync.Advance()
	if l.stats != nil {
		l.stats.Frame()
	}
	return Presented, nil
}

func (l *Loop) rebuild() error {
	images, err := l.target.Rebuild()
	if err != nil {
		return errors.Wrap(err, "rebuild presentation chain")
	}
	l.sync.Reset(images)
	l.resized = false
	l.stale = false
	return nil
}
