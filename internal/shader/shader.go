// Package shader loads precompiled SPIR-V blobs.
package shader

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const (
	VertexFile   = "vert.spv"
	FragmentFile = "frag.spv"
)

// Bytecode is an immutable SPIR-V blob. Nothing beyond its size is checked.
type Bytecode struct {
	name string
	code []byte
}

func New(name string, code []byte) (Bytecode, error) {
	if len(code) == 0 {
		return Bytecode{}, errors.Newf("shader %s is empty", name)
	}
	if len(code)%4 != 0 {
		return Bytecode{}, errors.Newf("shader %s is %d bytes, not a multiple of 4", name, len(code))
	}
	return Bytecode{name: name, code: append([]byte(nil), code...)}, nil
}

func Load(path string) (Bytecode, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Bytecode{}, errors.Wrap(err, "read shader")
	}
	return New(filepath.Base(path), code)
}

// Stages holds the vertex and fragment programs.
type Stages struct {
	Vertex   Bytecode
	Fragment Bytecode
}

// LoadStages reads vert.spv and frag.spv from dir.
func LoadStages(dir string) (Stages, error) {
	vert, err := Load(filepath.Join(dir, VertexFile))
	if err != nil {
		return Stages{}, errors.Wrap(err, "vertex stage")
	}
	frag, err := Load(filepath.Join(dir, FragmentFile))
	if err != nil {
		return Stages{}, errors.Wrap(err, "fragment stage")
	}
	return Stages{Vertex: vert, Fragment: frag}, nil
}

func (b Bytecode) Name() string { return b.name }

// Size is the length of the blob in bytes.
func (b Bytecode) Size() int { return len(b.code) }

// Words returns the blob as host-endian 32-bit words for module creation.
func (b Bytecode) Words() []uint32 {
	words := make([]uint32, len(b.code)/4)
	for i := range words {
		words[i] = binary.NativeEndian.Uint32(b.code[i*4:])
	}
	return words
}
