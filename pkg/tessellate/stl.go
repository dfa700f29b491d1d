package tessellate

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

const stlHeaderSize = 80

// WriteSTLFile writes meshes to path as one binary STL.
func WriteSTLFile(path string, meshes []*kernel.Mesh) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tessellate: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("tessellate: close %s: %w", path, cerr)
		}
	}()
	return WriteSTL(f, meshes)
}

// WriteSTL writes the triangles of all meshes as a single binary STL
// solid. Facet normals are computed from the winding of each triangle.
func WriteSTL(w io.Writer, meshes []*kernel.Mesh) error {
	var count uint64
	for _, m := range meshes {
		if m == nil {
			continue
		}
		if len(m.Indices)%3 != 0 {
			return fmt.Errorf("tessellate: mesh %q has %d indices: %w", m.PartName, len(m.Indices), mlerr.ErrInternal)
		}
		for _, idx := range m.Indices {
			if int(idx) >= m.VertexCount() {
				return fmt.Errorf("tessellate: mesh %q index %d out of range: %w", m.PartName, idx, mlerr.ErrInternal)
			}
		}
		count += uint64(m.TriangleCount())
	}
	if count > math.MaxUint32 {
		return fmt.Errorf("tessellate: %d triangles exceed STL limit: %w", count, mlerr.ErrDomain)
	}

	bw := bufio.NewWriter(w)
	var header [stlHeaderSize]byte
	copy(header[:], "meshlink")
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("tessellate: write stl header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(count)); err != nil {
		return fmt.Errorf("tessellate: write stl count: %w", err)
	}

	var facet [12]float32
	for _, m := range meshes {
		if m == nil {
			continue
		}
		for t := 0; t < m.TriangleCount(); t++ {
			a := vertex(m, m.Indices[3*t])
			b := vertex(m, m.Indices[3*t+1])
			c := vertex(m, m.Indices[3*t+2])
			n := b.Sub(a).Cross(c.Sub(a))
			if l := n.Length(); l > 0 {
				n = n.MulScalar(1 / l)
			}
			for i, v := range []v3.Vec{n, a, b, c} {
				facet[3*i] = float32(v.X)
				facet[3*i+1] = float32(v.Y)
				facet[3*i+2] = float32(v.Z)
			}
			if err := binary.Write(bw, binary.LittleEndian, facet); err != nil {
				return fmt.Errorf("tessellate: write facet: %w", err)
			}
			if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
				return fmt.Errorf("tessellate: write facet: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("tessellate: flush stl: %w", err)
	}
	return nil
}

func vertex(m *kernel.Mesh, i uint32) v3.Vec {
	return v3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}
