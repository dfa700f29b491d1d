// Package sdfx tessellates analytic geometry entities with the
// github.com/deadsy/sdfx SDF library. Surfaces become solids whose
// boundary contains the surface; curves become thin tubes.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/geom"
	"github.com/chazu/meshlink/pkg/kernel"
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// tubeFraction is the tube or sheet thickness relative to entity size.
const tubeFraction = 0.02

// minThinCells is the least number of cells a tube or sheet spans, so
// coarse grids still sample its inside.
const minThinCells = 3

// arcSegment is the maximum angle covered by one tube segment of an arc.
const arcSegment = math.Pi / 16

// Mesher converts entities to triangle meshes.
type Mesher struct {
	cells int
}

// New returns a Mesher using cells marching-cube cells along the longest
// axis. Non-positive cells selects DefaultMeshCells.
func New(cells int) *Mesher {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &Mesher{cells: cells}
}

// Cells returns the marching cubes resolution.
func (m *Mesher) Cells() int { return m.cells }

// EntityMesh tessellates e. The mesh PartName is the entity name.
func (m *Mesher) EntityMesh(e geom.Entity) (*kernel.Mesh, error) {
	s, err := solid(e, math.Max(tubeFraction, minThinCells/float64(m.cells)))
	if err != nil {
		return nil, err
	}
	mesh := toMesh(s, m.cells)
	mesh.PartName = e.Name()
	return mesh, nil
}

// solid builds the SDF of e. Curves and planes get a thickness of frac
// times their size.
func solid(e geom.Entity, frac float64) (sdf.SDF3, error) {
	var (
		s   sdf.SDF3
		err error
	)
	switch ent := e.(type) {
	case *geom.Sphere:
		s, err = sdf.Sphere3D(ent.Radius())
		if err == nil {
			s = sdf.Transform3D(s, sdf.Translate3d(ent.Center()))
		}
	case *geom.Cylinder:
		s, err = cylinderAlong(ent.Base(), ent.Axis(), ent.Height(), ent.Radius())
	case *geom.Plane:
		s, err = planeSheet(ent, frac)
	case *geom.Line:
		length := ent.End().Sub(ent.Start()).Length()
		s, err = cylinderAlong(ent.Start(), ent.End().Sub(ent.Start()), length, length*frac)
	case *geom.Arc:
		s, err = arcTube(ent, frac)
	default:
		return nil, fmt.Errorf("sdfx: %s: unsupported entity %T", e.Name(), e)
	}
	if err != nil {
		return nil, fmt.Errorf("sdfx: %s: %w", e.Name(), err)
	}
	return s, nil
}

// alignZ returns the rotation taking +Z onto dir, followed by a spin of
// psi about +Z applied first.
func alignZ(dir v3.Vec, psi float64) sdf.M44 {
	d := dir.Normalize()
	theta := math.Acos(math.Max(-1, math.Min(1, d.Z)))
	phi := math.Atan2(d.Y, d.X)
	return sdf.RotateZ(phi).Mul(sdf.RotateY(theta)).Mul(sdf.RotateZ(psi))
}

// cylinderAlong builds a cylinder of the given radius from base along axis.
func cylinderAlong(base, axis v3.Vec, height, radius float64) (sdf.SDF3, error) {
	c, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, err
	}
	// Cylinder3D is centered on the origin along Z.
	mid := base.Add(axis.Normalize().MulScalar(height / 2))
	m := sdf.Translate3d(mid).Mul(alignZ(axis, 0))
	return sdf.Transform3D(c, m), nil
}

func planeSheet(p *geom.Plane, frac float64) (sdf.SDF3, error) {
	d := p.Domain()
	w, h := d.UMax-d.UMin, d.VMax-d.VMin
	box, err := sdf.Box3D(v3.Vec{X: w, Y: h, Z: math.Max(w, h) * frac}, 0)
	if err != nil {
		return nil, err
	}
	u, v := p.Axes()
	n := p.Normal()

	// Spin the box about its normal so local X lands on the plane's U axis.
	theta := math.Acos(math.Max(-1, math.Min(1, n.Z)))
	phi := math.Atan2(n.Y, n.X)
	ex := v3.Vec{X: math.Cos(theta) * math.Cos(phi), Y: math.Cos(theta) * math.Sin(phi), Z: -math.Sin(theta)}
	ey := v3.Vec{X: -math.Sin(phi), Y: math.Cos(phi)}
	psi := math.Atan2(u.Dot(ey), u.Dot(ex))

	center := p.Origin().
		Add(u.MulScalar((d.UMin + d.UMax) / 2)).
		Add(v.MulScalar((d.VMin + d.VMax) / 2))
	m := sdf.Translate3d(center).Mul(alignZ(n, psi))
	return sdf.Transform3D(box, m), nil
}

// arcTube approximates an arc by a union of straight tube segments.
func arcTube(a *geom.Arc, frac float64) (sdf.SDF3, error) {
	n := int(math.Ceil(a.Sweep() / arcSegment))
	radius := a.Radius() * frac
	parts := make([]sdf.SDF3, 0, n)
	for i := 0; i < n; i++ {
		u0 := a.Sweep() * float64(i) / float64(n)
		u1 := a.Sweep() * float64(i+1) / float64(n)
		p0, err := a.Eval(kernel.UV{U: u0})
		if err != nil {
			return nil, err
		}
		p1, err := a.Eval(kernel.UV{U: u1})
		if err != nil {
			return nil, err
		}
		seg, err := cylinderAlong(p0, p1.Sub(p0), p1.Sub(p0).Length(), radius)
		if err != nil {
			return nil, err
		}
		parts = append(parts, seg)
	}
	return sdf.Union3D(parts...), nil
}

// toMesh converts a solid to a triangle mesh using marching cubes.
func toMesh(s sdf.SDF3, cells int) *kernel.Mesh {
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s, renderer)

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}
}
