package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SPIR-V magic number, little endian.
var magic = []byte{0x03, 0x02, 0x23, 0x07}

func TestNewChecksSize(t *testing.T) {
	_, err := New("empty", nil)
	assert.Error(t, err)
	_, err = New("odd", []byte{1, 2, 3})
	assert.Error(t, err)

	b, err := New("ok", magic)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Size())
	assert.Len(t, b.Words(), 1)
}

func TestBytecodeIsImmutableCopy(t *testing.T) {
	src := append([]byte(nil), magic...)
	b, err := New("copy", src)
	require.NoError(t, err)
	src[0] = 0xff
	before := b.Words()[0]
	assert.Equal(t, before, b.Words()[0])
	assert.NotEqual(t, byte(0xff), b.code[0])
}

func TestLoadStages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VertexFile), append(magic, 0, 0, 0, 0), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FragmentFile), magic, 0o644))

	stages, err := LoadStages(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, stages.Vertex.Size())
	assert.Equal(t, "frag.spv", stages.Fragment.Name())
}

func TestLoadStagesMissingFile(t *testing.T) {
	_, err := LoadStages(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vertex stage")
}
