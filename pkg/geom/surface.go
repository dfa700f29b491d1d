package geom

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

// Plane is a bounded planar rectangle: origin + u*U + v*V.
type Plane struct {
	name   string
	origin v3.Vec
	u, v   v3.Vec
	normal v3.Vec
	domain Domain
}

// NewPlane creates a rectangle in the plane through origin with the given
// normal. ref fixes the U direction.
func NewPlane(name string, origin, normal, ref v3.Vec, d Domain) (*Plane, error) {
	if d.UMax <= d.UMin || d.VMax <= d.VMin {
		return nil, fmt.Errorf("geom: plane %q: empty domain: %w", name, mlerr.ErrDegenerateGeometry)
	}
	x, y, z, err := frame(normal, ref)
	if err != nil {
		return nil, fmt.Errorf("geom: plane %q: %w", name, err)
	}
	return &Plane{name: name, origin: origin, u: x, v: y, normal: z, domain: d}, nil
}

func (p *Plane) Name() string            { return p.name }
func (p *Plane) Type() kernel.EntityType { return kernel.EntitySurface }
func (p *Plane) Domain() Domain          { return p.domain }
func (p *Plane) Origin() v3.Vec          { return p.origin }
func (p *Plane) Normal() v3.Vec          { return p.normal }
func (p *Plane) Axes() (u, v v3.Vec)     { return p.u, p.v }

func (p *Plane) Eval(uv kernel.UV) (v3.Vec, error) {
	if err := checkDomain(p, uv); err != nil {
		return v3.Vec{}, err
	}
	return p.at(uv), nil
}

func (p *Plane) at(uv kernel.UV) v3.Vec {
	return p.origin.Add(p.u.MulScalar(uv.U)).Add(p.v.MulScalar(uv.V))
}

func (p *Plane) Project(pt v3.Vec) (kernel.UV, v3.Vec) {
	q := pt.Sub(p.origin)
	uv := kernel.UV{
		U: clamp(q.Dot(p.u), p.domain.UMin, p.domain.UMax),
		V: clamp(q.Dot(p.v), p.domain.VMin, p.domain.VMax),
	}
	return uv, p.at(uv)
}

func (p *Plane) SurfaceCurvature(uv kernel.UV) (kernel.SurfaceCurvature, error) {
	xyz, err := p.Eval(uv)
	if err != nil {
		return kernel.SurfaceCurvature{}, err
	}
	return kernel.SurfaceCurvature{
		XYZ:        xyz,
		DU:         p.u,
		DV:         p.v,
		Normal:     p.normal,
		PrincipalV: p.u,
	}, nil
}

// Sphere is parameterized by longitude U in [0, 2π] and latitude V in
// [-π/2, π/2]. The normal points outward, so curvature is -1/r.
type Sphere struct {
	name   string
	center v3.Vec
	radius float64
}

// NewSphere creates a sphere.
func NewSphere(name string, center v3.Vec, radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("geom: sphere %q: radius %g must be positive: %w", name, radius, mlerr.ErrDegenerateGeometry)
	}
	return &Sphere{name: name, center: center, radius: radius}, nil
}

func (s *Sphere) Name() string            { return s.name }
func (s *Sphere) Type() kernel.EntityType { return kernel.EntitySurface }
func (s *Sphere) Center() v3.Vec          { return s.center }
func (s *Sphere) Radius() float64         { return s.radius }

func (s *Sphere) Domain() Domain {
	return Domain{UMin: 0, UMax: 2 * math.Pi, VMin: -math.Pi / 2, VMax: math.Pi / 2}
}

func (s *Sphere) Eval(uv kernel.UV) (v3.Vec, error) {
	if err := checkDomain(s, uv); err != nil {
		return v3.Vec{}, err
	}
	return s.at(uv), nil
}

func (s *Sphere) at(uv kernel.UV) v3.Vec {
	cu, su := math.Cos(uv.U), math.Sin(uv.U)
	cv, sv := math.Cos(uv.V), math.Sin(uv.V)
	return s.center.Add(v3.Vec{X: cv * cu, Y: cv * su, Z: sv}.MulScalar(s.radius))
}

func (s *Sphere) Project(p v3.Vec) (kernel.UV, v3.Vec) {
	q := p.Sub(s.center)
	r := q.Length()
	if r == 0 {
		uv := kernel.UV{}
		return uv, s.at(uv)
	}
	uv := kernel.UV{U: angleIn(q.X, q.Y), V: math.Asin(clamp(q.Z/r, -1, 1))}
	return uv, s.at(uv)
}

func (s *Sphere) SurfaceCurvature(uv kernel.UV) (kernel.SurfaceCurvature, error) {
	xyz, err := s.Eval(uv)
	if err != nil {
		return kernel.SurfaceCurvature{}, err
	}
	r := s.radius
	cu, su := math.Cos(uv.U), math.Sin(uv.U)
	cv, sv := math.Cos(uv.V), math.Sin(uv.V)
	dv := v3.Vec{X: -sv * cu, Y: -sv * su, Z: cv}.MulScalar(r)
	k := -1 / r
	return kernel.SurfaceCurvature{
		XYZ:        xyz,
		DU:         v3.Vec{X: -cv * su, Y: cv * cu}.MulScalar(r),
		DV:         dv,
		DUU:        v3.Vec{X: -cv * cu, Y: -cv * su}.MulScalar(r),
		DUV:        v3.Vec{X: sv * su, Y: -sv * cu}.MulScalar(r),
		DVV:        v3.Vec{X: -cv * cu, Y: -cv * su, Z: -sv}.MulScalar(r),
		Normal:     xyz.Sub(s.center).Normalize(),
		PrincipalV: dv.Normalize(),
		Min:        k,
		Max:        k,
		Avg:        k,
		Gauss:      k * k,
	}, nil
}

// Cylinder is parameterized by angle U in [0, 2π] about the axis and
// height V in [0, h] along it.
type Cylinder struct {
	name   string
	base   v3.Vec
	x, y   v3.Vec
	axis   v3.Vec
	radius float64
	height float64
}

// NewCylinder creates a cylinder standing on base along axis. ref fixes
// where U is zero.
func NewCylinder(name string, base, axis, ref v3.Vec, radius, height float64) (*Cylinder, error) {
	if radius <= 0 || height <= 0 {
		return nil, fmt.Errorf("geom: cylinder %q: radius and height must be positive: %w", name, mlerr.ErrDegenerateGeometry)
	}
	x, y, z, err := frame(axis, ref)
	if err != nil {
		return nil, fmt.Errorf("geom: cylinder %q: %w", name, err)
	}
	return &Cylinder{name: name, base: base, x: x, y: y, axis: z, radius: radius, height: height}, nil
}

func (c *Cylinder) Name() string            { return c.name }
func (c *Cylinder) Type() kernel.EntityType { return kernel.EntitySurface }
func (c *Cylinder) Domain() Domain          { return Domain{UMin: 0, UMax: 2 * math.Pi, VMax: c.height} }
func (c *Cylinder) Base() v3.Vec            { return c.base }
func (c *Cylinder) Axis() v3.Vec            { return c.axis }
func (c *Cylinder) Radius() float64         { return c.radius }
func (c *Cylinder) Height() float64         { return c.height }

func (c *Cylinder) Eval(uv kernel.UV) (v3.Vec, error) {
	if err := checkDomain(c, uv); err != nil {
		return v3.Vec{}, err
	}
	return c.at(uv), nil
}

func (c *Cylinder) radial(u float64) v3.Vec {
	return c.x.MulScalar(math.Cos(u)).Add(c.y.MulScalar(math.Sin(u)))
}

func (c *Cylinder) at(uv kernel.UV) v3.Vec {
	return c.base.Add(c.radial(uv.U).MulScalar(c.radius)).Add(c.axis.MulScalar(uv.V))
}

func (c *Cylinder) Project(p v3.Vec) (kernel.UV, v3.Vec) {
	q := p.Sub(c.base)
	qx, qy := q.Dot(c.x), q.Dot(c.y)
	uv := kernel.UV{V: clamp(q.Dot(c.axis), 0, c.height)}
	if qx != 0 || qy != 0 {
		uv.U = angleIn(qx, qy)
	}
	return uv, c.at(uv)
}

func (c *Cylinder) SurfaceCurvature(uv kernel.UV) (kernel.SurfaceCurvature, error) {
	xyz, err := c.Eval(uv)
	if err != nil {
		return kernel.SurfaceCurvature{}, err
	}
	du := c.x.MulScalar(-math.Sin(uv.U)).Add(c.y.MulScalar(math.Cos(uv.U))).MulScalar(c.radius)
	k := -1 / c.radius
	return kernel.SurfaceCurvature{
		XYZ:        xyz,
		DU:         du,
		DV:         c.axis,
		DUU:        c.radial(uv.U).MulScalar(-c.radius),
		Normal:     c.radial(uv.U),
		PrincipalV: du.Normalize(),
		Min:        k,
		Max:        0,
		Avg:        k / 2,
		Gauss:      0,
	}, nil
}
