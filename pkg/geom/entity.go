// Package geom implements analytic geometric entities: curves and
// surfaces with closed-form evaluation, projection and curvature.
// Curves are parameterized by U alone; V is ignored.
package geom

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

// DomainTolerance is the slack allowed outside a parametric domain.
const DomainTolerance = 1e-9

// MinCurvature is the curvature below which geometry is treated as flat.
const MinCurvature = 1e-9

// Domain is a parametric rectangle. Curves leave V at zero.
type Domain struct {
	UMin, UMax float64
	VMin, VMax float64
}

// Contains reports whether uv lies inside d, boundary included.
func (d Domain) Contains(uv kernel.UV, curve bool) bool {
	if math.IsNaN(uv.U) || uv.U < d.UMin-DomainTolerance || uv.U > d.UMax+DomainTolerance {
		return false
	}
	if curve {
		return true
	}
	return !math.IsNaN(uv.V) && uv.V >= d.VMin-DomainTolerance && uv.V <= d.VMax+DomainTolerance
}

// Entity is a named curve or surface.
type Entity interface {
	Name() string
	Type() kernel.EntityType
	Domain() Domain

	// Eval returns the position at uv, or ErrDomain if uv is outside the domain.
	Eval(uv kernel.UV) (v3.Vec, error)

	// Project returns the closest point on the entity to p and its
	// parametric coordinates. The result always lies inside the domain.
	Project(p v3.Vec) (kernel.UV, v3.Vec)
}

// Curve is an entity with curve curvature.
type Curve interface {
	Entity
	CurveCurvature(uv kernel.UV) (kernel.CurveCurvature, error)
}

// Surface is an entity with surface curvature.
type Surface interface {
	Entity
	SurfaceCurvature(uv kernel.UV) (kernel.SurfaceCurvature, error)
}

// RadiusOfCurvature returns the minimum radius of curvature of e at uv.
// Flat geometry has no finite radius and yields ErrDegenerateGeometry.
func RadiusOfCurvature(e Entity, uv kernel.UV) (float64, error) {
	var k float64
	switch ent := e.(type) {
	case Curve:
		cc, err := ent.CurveCurvature(uv)
		if err != nil {
			return 0, err
		}
		if cc.Linear {
			return 0, fmt.Errorf("geom: %s: linear curve: %w", e.Name(), mlerr.ErrDegenerateGeometry)
		}
		k = math.Abs(cc.Curvature)
	case Surface:
		sc, err := ent.SurfaceCurvature(uv)
		if err != nil {
			return 0, err
		}
		k = math.Max(math.Abs(sc.Min), math.Abs(sc.Max))
	default:
		return 0, fmt.Errorf("geom: %s: entity has no curvature: %w", e.Name(), mlerr.ErrInternal)
	}
	if k < MinCurvature {
		return 0, fmt.Errorf("geom: %s: flat at (%g, %g): %w", e.Name(), uv.U, uv.V, mlerr.ErrDegenerateGeometry)
	}
	return 1 / k, nil
}

func checkDomain(e Entity, uv kernel.UV) error {
	if !e.Domain().Contains(uv, e.Type() == kernel.EntityCurve) {
		d := e.Domain()
		return fmt.Errorf("geom: %s: uv (%g, %g) outside [%g, %g]x[%g, %g]: %w",
			e.Name(), uv.U, uv.V, d.UMin, d.UMax, d.VMin, d.VMax, mlerr.ErrDomain)
	}
	return nil
}

// frame builds an orthonormal basis (x, y) in the plane normal to n, with x
// along the component of ref perpendicular to n.
func frame(n, ref v3.Vec) (x, y, z v3.Vec, err error) {
	if n.Length() == 0 {
		return x, y, z, fmt.Errorf("geom: zero normal: %w", mlerr.ErrDegenerateGeometry)
	}
	z = n.Normalize()
	perp := ref.Sub(z.MulScalar(ref.Dot(z)))
	if perp.Length() < 1e-12 {
		return x, y, z, fmt.Errorf("geom: reference direction parallel to normal: %w", mlerr.ErrDegenerateGeometry)
	}
	x = perp.Normalize()
	y = z.Cross(x)
	return x, y, z, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// angleIn returns the angle of (a, b) in [0, 2π).
func angleIn(a, b float64) float64 {
	ang := math.Atan2(b, a)
	if ang < 0 {
		ang += 2 * math.Pi
	}
	return ang
}
