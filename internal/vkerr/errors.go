// Package vkerr classifies the failures a renderer run can hit.
//
// Setup, resource and precondition failures are fatal for the run and unwind
// to process exit. Presentation staleness is not an error at all and never
// reaches this package; see swap.Status.
package vkerr

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

type Kind int

const (
	KindNone Kind = iota
	KindSetup
	KindResource
	KindPrecondition
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSetup:
		return "setup"
	case KindResource:
		return "resource"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

var (
	// ErrSetup marks missing devices, extensions, layers or formats.
	ErrSetup = errors.New("setup failure")
	// ErrResource marks allocation, pipeline and shader module failures.
	ErrResource = errors.New("resource creation failure")
	// ErrPrecondition marks programming or configuration errors such as an
	// unsupported blit format or layout transition.
	ErrPrecondition = errors.New("precondition violation")
)

func Setupf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrSetup)
}

func Resourcef(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrResource)
}

func Preconditionf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrPrecondition)
}

// Check turns a non-success result into a resource error naming the call.
func Check(res vulkan.Result, what string) error {
	if res == vulkan.Success {
		return nil
	}
	return errors.Mark(errors.WrapWithDepthf(1, resultError(res), "%s", what), ErrResource)
}

// Setup is Check for calls whose failure means the machine cannot run us.
func Setup(res vulkan.Result, what string) error {
	if res == vulkan.Success {
		return nil
	}
	return errors.Mark(errors.WrapWithDepthf(1, resultError(res), "%s", what), ErrSetup)
}

func resultError(res vulkan.Result) error {
	if err := vulkan.Error(res); err != nil {
		return err
	}
	return errors.Newf("vulkan result %d", res)
}

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrSetup):
		return KindSetup
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrResource):
		return KindResource
	default:
		return KindUnknown
	}
}
