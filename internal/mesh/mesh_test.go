package mesh

import (
	"strings"
	"testing"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDedupsIdenticalVertices(t *testing.T) {
	v := Vertex{Pos: mgl32.Vec3{1, 2, 3}, Color: white, TexCoord: mgl32.Vec2{0.5, 0.25}}
	b := NewBuilder()
	b.Add(v)
	b.Add(v)
	m := b.Mesh()

	assert.Len(t, m.Vertices, 1)
	assert.Equal(t, []uint32{0, 0}, m.Indices)
}

func TestBuilderKeepsDistinctVertices(t *testing.T) {
	a := Vertex{Pos: mgl32.Vec3{0, 0, 0}, Color: white}
	b := a
	b.TexCoord = mgl32.Vec2{0, 1}
	c := a
	c.Color = mgl32.Vec3{1, 0, 0}

	bld := NewBuilder()
	for _, v := range []Vertex{a, b, a, c, b} {
		bld.Add(v)
	}
	m := bld.Mesh()
	assert.Equal(t, []Vertex{a, b, c}, m.Vertices)
	assert.Equal(t, []uint32{0, 1, 0, 2, 1}, m.Indices)
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(32), VertexSize)
	assert.Equal(t, uint32(0), PosOffset)
	assert.Equal(t, uint32(12), ColorOffset)
	assert.Equal(t, uint32(24), TexCoordOffset)
}

func TestBytes(t *testing.T) {
	m := Mesh{
		Vertices: []Vertex{{}, {}},
		Indices:  []uint32{0, 1, 1},
	}
	assert.Len(t, m.VertexBytes(), 64)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}, m.IndexBytes())
	assert.Nil(t, Mesh{}.VertexBytes())
}

func TestCubeIsDeduplicated(t *testing.T) {
	m := Cube()
	assert.Len(t, m.Indices, 36)
	assert.LessOrEqual(t, len(m.Vertices), 24)
	seen := make(map[Vertex]bool)
	for _, v := range m.Vertices {
		assert.False(t, seen[v], "duplicate vertex %v", v)
		seen[v] = true
	}
	for _, idx := range m.Indices {
		assert.Less(t, int(idx), len(m.Vertices))
	}
}

const quadOBJ = `# two triangles sharing an edge
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1
f 3/3/1 4/4/1 1/1/1
`

func TestParseOBJDedupsSharedCorners(t *testing.T) {
	model, err := ParseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)
	assert.Len(t, model.Corners, 6)
	assert.Len(t, model.Faces, 2)

	m := Build(model.Corners, model.Faces)
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, m.Indices)

	// v is flipped to a top-left origin.
	assert.Equal(t, mgl32.Vec2{0, 1}, m.Vertices[0].TexCoord)
	assert.Equal(t, mgl32.Vec2{1, 0}, m.Vertices[2].TexCoord)
	assert.Equal(t, white, m.Vertices[0].Color)
}

func TestParseOBJTriangulatesPolygons(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nv -1 0.5 0\nf 1 2 3 4 5\n"
	model, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, [][3]uint32{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}}, model.Faces)
}

func TestParseOBJRelativeIndices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nf -3//1 -2//1 -1//1\n"
	model, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, model.Corners[0].Pos)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, model.Corners[2].Pos)
}

func TestParseOBJErrors(t *testing.T) {
	for name, src := range map[string]string{
		"no faces":         "v 0 0 0\n",
		"bad index":        "v 0 0 0\nf 1 2 3\n",
		"short vertex":     "v 0 0\n",
		"degenerate face":  "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad texcoord ref": "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1/4 2/1 3/1\n",
	} {
		_, err := ParseOBJ(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}
