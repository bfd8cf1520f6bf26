package mesh

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

var white = mgl32.Vec3{1, 1, 1}

// Cube is a unit-2 textured cube, drawn when no model file is configured.
func Cube() Mesh {
	corners := [8]mgl32.Vec3{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	faces := [6][4]int{
		{3, 2, 1, 0}, // back
		{4, 5, 6, 7}, // front
		{0, 1, 5, 4}, // bottom
		{7, 6, 2, 3}, // top
		{0, 4, 7, 3}, // left
		{5, 1, 2, 6}, // right
	}
	uv := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	b := NewBuilder()
	for _, f := range faces {
		quad := [4]Vertex{}
		for i, c := range f {
			quad[i] = Vertex{Pos: corners[c], Color: white, TexCoord: uv[i]}
		}
		for _, i := range []int{0, 1, 2, 2, 3, 0} {
			b.Add(quad[i])
		}
	}
	return b.Mesh()
}
