package geom

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

// Line is a straight segment parameterized by arc length from Start.
type Line struct {
	name       string
	start, end v3.Vec
	dir        v3.Vec
	length     float64
}

// NewLine creates a segment from start to end.
func NewLine(name string, start, end v3.Vec) (*Line, error) {
	d := end.Sub(start)
	if d.Length() == 0 {
		return nil, fmt.Errorf("geom: line %q: zero length: %w", name, mlerr.ErrDegenerateGeometry)
	}
	return &Line{name: name, start: start, end: end, dir: d.Normalize(), length: d.Length()}, nil
}

func (l *Line) Name() string            { return l.name }
func (l *Line) Type() kernel.EntityType { return kernel.EntityCurve }
func (l *Line) Domain() Domain          { return Domain{UMin: 0, UMax: l.length} }
func (l *Line) Start() v3.Vec           { return l.start }
func (l *Line) End() v3.Vec             { return l.end }

func (l *Line) Eval(uv kernel.UV) (v3.Vec, error) {
	if err := checkDomain(l, uv); err != nil {
		return v3.Vec{}, err
	}
	return l.at(uv.U), nil
}

func (l *Line) at(u float64) v3.Vec { return l.start.Add(l.dir.MulScalar(u)) }

func (l *Line) Project(p v3.Vec) (kernel.UV, v3.Vec) {
	u := clamp(p.Sub(l.start).Dot(l.dir), 0, l.length)
	return kernel.UV{U: u}, l.at(u)
}

func (l *Line) CurveCurvature(uv kernel.UV) (kernel.CurveCurvature, error) {
	xyz, err := l.Eval(uv)
	if err != nil {
		return kernel.CurveCurvature{}, err
	}
	return kernel.CurveCurvature{XYZ: xyz, Tangent: l.dir, Linear: true}, nil
}

// Arc is a circular arc. U is the angle in radians from the reference
// direction, counterclockwise about the normal, in [0, sweep].
type Arc struct {
	name   string
	center v3.Vec
	x, y   v3.Vec
	normal v3.Vec
	radius float64
	sweep  float64
}

// NewArc creates an arc around center in the plane normal to normal. ref
// fixes where U is zero.
func NewArc(name string, center, normal, ref v3.Vec, radius, sweep float64) (*Arc, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("geom: arc %q: radius %g must be positive: %w", name, radius, mlerr.ErrDegenerateGeometry)
	}
	if sweep <= 0 || sweep > 2*math.Pi+DomainTolerance {
		return nil, fmt.Errorf("geom: arc %q: sweep %g must be in (0, 2π]: %w", name, sweep, mlerr.ErrDegenerateGeometry)
	}
	x, y, z, err := frame(normal, ref)
	if err != nil {
		return nil, fmt.Errorf("geom: arc %q: %w", name, err)
	}
	return &Arc{name: name, center: center, x: x, y: y, normal: z, radius: radius, sweep: sweep}, nil
}

// NewCircle creates a full circle.
func NewCircle(name string, center, normal, ref v3.Vec, radius float64) (*Arc, error) {
	return NewArc(name, center, normal, ref, radius, 2*math.Pi)
}

func (a *Arc) Name() string            { return a.name }
func (a *Arc) Type() kernel.EntityType { return kernel.EntityCurve }
func (a *Arc) Domain() Domain          { return Domain{UMin: 0, UMax: a.sweep} }
func (a *Arc) Center() v3.Vec          { return a.center }
func (a *Arc) Normal() v3.Vec          { return a.normal }
func (a *Arc) Radius() float64         { return a.radius }
func (a *Arc) Sweep() float64          { return a.sweep }

func (a *Arc) Eval(uv kernel.UV) (v3.Vec, error) {
	if err := checkDomain(a, uv); err != nil {
		return v3.Vec{}, err
	}
	return a.at(uv.U), nil
}

func (a *Arc) at(u float64) v3.Vec {
	return a.center.Add(a.radial(u).MulScalar(a.radius))
}

func (a *Arc) radial(u float64) v3.Vec {
	return a.x.MulScalar(math.Cos(u)).Add(a.y.MulScalar(math.Sin(u)))
}

func (a *Arc) Project(p v3.Vec) (kernel.UV, v3.Vec) {
	q := p.Sub(a.center)
	qx, qy := q.Dot(a.x), q.Dot(a.y)
	u := 0.0
	if qx != 0 || qy != 0 {
		u = angleIn(qx, qy)
	}
	if u > a.sweep {
		// Outside the sweep, the nearer endpoint wins.
		start, end := a.at(0), a.at(a.sweep)
		if p.Sub(end).Length() < p.Sub(start).Length() {
			u = a.sweep
		} else {
			u = 0
		}
	}
	return kernel.UV{U: u}, a.at(u)
}

func (a *Arc) CurveCurvature(uv kernel.UV) (kernel.CurveCurvature, error) {
	xyz, err := a.Eval(uv)
	if err != nil {
		return kernel.CurveCurvature{}, err
	}
	t := a.x.MulScalar(-math.Sin(uv.U)).Add(a.y.MulScalar(math.Cos(uv.U)))
	n := a.radial(uv.U).MulScalar(-1)
	return kernel.CurveCurvature{
		XYZ:             xyz,
		Tangent:         t,
		PrincipalNormal: n,
		Binormal:        t.Cross(n),
		Curvature:       1 / a.radius,
	}, nil
}
