package render

import (
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

// uniformState is the per-image transform block the vertex shader reads at
// binding 0.
type uniformState struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

const uniformSize = vulkan.DeviceSize(unsafe.Sizeof(uniformState{}))

// Camera places the viewer and how fast the model turns about Z.
type Camera struct {
	Eye  mgl32.Vec3
	Spin float32 // degrees per second
}

func DefaultCamera() Camera {
	return Camera{Eye: mgl32.Vec3{2, 2, 2}}
}

func (c Camera) transforms(elapsed float32, extent vulkan.Extent2D) uniformState {
	angle := elapsed * mgl32.DegToRad(c.Spin)
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 10.0)
	proj[5] *= -1 // Vulkan clip space has Y pointing down
	return uniformState{
		Model: mgl32.HomogRotate3D(angle, mgl32.Vec3{0, 0, 1}),
		View: mgl32.LookAtV(
			c.Eye,
			mgl32.Vec3{0, 0, 0},
			mgl32.Vec3{0, 0, 1},
		),
		Proj: proj,
	}
}

func (u *uniformState) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), uniformSize)
}
