// Package mesh builds the deduplicated vertex and index arrays the renderer
// uploads.
package mesh

import (
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Vertex is laid out exactly as the vertex shader reads it.
type Vertex struct {
	Pos      mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// VertexSize is the stride of one Vertex in the vertex buffer.
const VertexSize = uint32(unsafe.Sizeof(Vertex{}))

var (
	PosOffset      = uint32(unsafe.Offsetof(Vertex{}.Pos))
	ColorOffset    = uint32(unsafe.Offsetof(Vertex{}.Color))
	TexCoordOffset = uint32(unsafe.Offsetof(Vertex{}.TexCoord))
)

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Builder deduplicates vertices by exact value equality.
type Builder struct {
	mesh   Mesh
	unique map[Vertex]uint32
}

func NewBuilder() *Builder {
	return &Builder{unique: make(map[Vertex]uint32)}
}

// Add appends an index for v, storing v only the first time it is seen.
func (b *Builder) Add(v Vertex) uint32 {
	idx, ok := b.unique[v]
	if !ok {
		idx = uint32(len(b.mesh.Vertices))
		b.unique[v] = idx
		b.mesh.Vertices = append(b.mesh.Vertices, v)
	}
	b.mesh.Indices = append(b.mesh.Indices, idx)
	return idx
}

func (b *Builder) Mesh() Mesh {
	return b.mesh
}

// Build dedups a flat corner list addressed by index triples.
func Build(corners []Vertex, faces [][3]uint32) Mesh {
	b := NewBuilder()
	for _, f := range faces {
		for _, c := range f {
			b.Add(corners[c])
		}
	}
	return b.Mesh()
}

func (m Mesh) VertexBytes() []byte {
	if len(m.Vertices) == 0 {
		return nil
	}
	size := len(m.Vertices) * int(VertexSize)
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&m.Vertices[0])), size))
	return out
}

func (m Mesh) IndexBytes() []byte {
	if len(m.Indices) == 0 {
		return nil
	}
	size := len(m.Indices) * 4
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&m.Indices[0])), size))
	return out
}
