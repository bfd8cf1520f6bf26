package swap

// SizeSource reports the platform framebuffer size and can block for window
// events.
type SizeSource interface {
	FramebufferSize() (width, height int)
	WaitEvents()
}

// AwaitDrawable blocks until the framebuffer has a non-zero area. A
// minimized window cannot be presented to.
func AwaitDrawable(src SizeSource) (width, height int) {
	width, height = src.FramebufferSize()
	for width == 0 || height == 0 {
		src.WaitEvents()
		width, height = src.FramebufferSize()
	}
	return width, height
}
