package swap

import (
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/vkerr"
)

// Status is the presentation engine's verdict on the chain. Neither
// Suboptimal nor Stale is an error: both are absorbed by a rebuild.
type Status int

const (
	Ready Status = iota
	// Suboptimal chains still work but should be rebuilt soon.
	Suboptimal
	// Stale chains can no longer be presented to.
	Stale
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Suboptimal:
		return "suboptimal"
	case Stale:
		return "stale"
	default:
		return "invalid"
	}
}

// NeedsRebuild reports whether the chain should be recreated.
func (s Status) NeedsRebuild() bool {
	return s != Ready
}

// Classify splits an acquire or present result into a status or a fatal
// error.
func Classify(res vulkan.Result, what string) (Status, error) {
	switch res {
	case vulkan.Success:
		return Ready, nil
	case vulkan.Suboptimal:
		return Suboptimal, nil
	case vulkan.ErrorOutOfDate:
		return Stale, nil
	default:
		return Ready, vkerr.Check(res, what)
	}
}
