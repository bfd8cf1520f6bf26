package mesh

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Model is what the OBJ reader yields: every face corner as a full vertex,
// and faces as index triples into that list. Nothing is deduplicated yet.
type Model struct {
	Corners []Vertex
	Faces   [][3]uint32
}

// LoadOBJ reads and deduplicates the model at path.
func LoadOBJ(path string) (Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "open model")
	}
	defer f.Close()

	model, err := ParseOBJ(f)
	if err != nil {
		return Mesh{}, errors.Wrapf(err, "parse %s", path)
	}
	return Build(model.Corners, model.Faces), nil
}

// ParseOBJ understands v, vt and f statements. Polygons are triangulated as
// fans, texture v is flipped to top-left origin and every vertex is white.
func ParseOBJ(r io.Reader) (*Model, error) {
	var (
		positions []mgl32.Vec3
		texCoords []mgl32.Vec2
		model     Model
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v":
			vals, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			positions = append(positions, mgl32.Vec3{vals[0], vals[1], vals[2]})
		case "vt":
			vals, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			texCoords = append(texCoords, mgl32.Vec2{vals[0], 1 - vals[1]})
		case "f":
			if len(fields) < 4 {
				return nil, errors.Newf("line %d: face needs at least 3 corners", line)
			}
			first := uint32(len(model.Corners))
			for _, ref := range fields[1:] {
				v, err := corner(ref, positions, texCoords)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", line)
				}
				model.Corners = append(model.Corners, v)
			}
			n := uint32(len(fields) - 1)
			for i := uint32(1); i+1 < n; i++ {
				model.Faces = append(model.Faces, [3]uint32{first, first + i, first + i + 1})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	if len(model.Faces) == 0 {
		return nil, errors.New("model has no faces")
	}
	return &model, nil
}

func corner(ref string, positions []mgl32.Vec3, texCoords []mgl32.Vec2) (Vertex, error) {
	parts := strings.Split(ref, "/")
	pi, err := resolve(parts[0], len(positions))
	if err != nil {
		return Vertex{}, errors.Wrapf(err, "position of %q", ref)
	}
	v := Vertex{Pos: positions[pi], Color: white}
	if len(parts) > 1 && parts[1] != "" {
		ti, err := resolve(parts[1], len(texCoords))
		if err != nil {
			return Vertex{}, errors.Wrapf(err, "texture coordinate of %q", ref)
		}
		v.TexCoord = texCoords[ti]
	}
	return v, nil
}

// resolve turns a 1-based or negative relative OBJ index into a slice index.
func resolve(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	default:
		return 0, errors.Newf("index %d out of range (%d defined)", i, n)
	}
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, errors.Newf("want %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
