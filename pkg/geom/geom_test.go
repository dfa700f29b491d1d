package geom

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

const eps = 1e-9

func near(a, b v3.Vec) bool { return a.Sub(b).Length() < 1e-9 }

func mustArc(t *testing.T, sweep float64) *Arc {
	t.Helper()
	a, err := NewArc("arc", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, 0.5, sweep)
	if err != nil {
		t.Fatalf("NewArc: %v", err)
	}
	return a
}

func TestConstructorsRejectDegenerate(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"zero line", func() error { _, err := NewLine("l", v3.Vec{X: 1}, v3.Vec{X: 1}); return err }},
		{"zero radius arc", func() error {
			_, err := NewArc("a", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, 0, 1)
			return err
		}},
		{"zero sweep arc", func() error {
			_, err := NewArc("a", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, 1, 0)
			return err
		}},
		{"ref parallel to normal", func() error {
			_, err := NewArc("a", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{Z: 2}, 1, 1)
			return err
		}},
		{"empty plane", func() error {
			_, err := NewPlane("p", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, Domain{UMax: 1})
			return err
		}},
		{"negative sphere", func() error { _, err := NewSphere("s", v3.Vec{}, -1); return err }},
		{"flat cylinder", func() error {
			_, err := NewCylinder("c", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, 1, 0)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, mlerr.ErrDegenerateGeometry) {
				t.Fatalf("expected ErrDegenerateGeometry, got %v", err)
			}
		})
	}
}

func TestLineEvalAndProject(t *testing.T) {
	l, err := NewLine("l", v3.Vec{}, v3.Vec{X: 2})
	if err != nil {
		t.Fatal(err)
	}
	p, err := l.Eval(kernel.UV{U: 1.5})
	if err != nil || !near(p, v3.Vec{X: 1.5}) {
		t.Fatalf("Eval = %v, %v", p, err)
	}

	tests := []struct {
		name  string
		in    v3.Vec
		wantU float64
	}{
		{"interior", v3.Vec{X: 0.5, Y: 3}, 0.5},
		{"before start", v3.Vec{X: -4}, 0},
		{"past end", v3.Vec{X: 9, Z: 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uv, xyz := l.Project(tt.in)
			if math.Abs(uv.U-tt.wantU) > eps {
				t.Errorf("u = %g, want %g", uv.U, tt.wantU)
			}
			if !near(xyz, v3.Vec{X: tt.wantU}) {
				t.Errorf("xyz = %v", xyz)
			}
		})
	}

	if _, err := RadiusOfCurvature(l, kernel.UV{U: 1}); !errors.Is(err, mlerr.ErrDegenerateGeometry) {
		t.Errorf("line radius: expected ErrDegenerateGeometry, got %v", err)
	}
}

func TestArcEval(t *testing.T) {
	a := mustArc(t, math.Pi)
	tests := []struct {
		u    float64
		want v3.Vec
	}{
		{0, v3.Vec{X: 0.5}},
		{math.Pi / 2, v3.Vec{Y: 0.5}},
		{math.Pi, v3.Vec{X: -0.5}},
	}
	for _, tt := range tests {
		got, err := a.Eval(kernel.UV{U: tt.u})
		if err != nil {
			t.Fatalf("Eval(%g): %v", tt.u, err)
		}
		if !near(got, tt.want) {
			t.Errorf("Eval(%g) = %v, want %v", tt.u, got, tt.want)
		}
	}

	if _, err := a.Eval(kernel.UV{U: math.Pi + 0.1}); !errors.Is(err, mlerr.ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
	if _, err := a.Eval(kernel.UV{U: math.NaN()}); !errors.Is(err, mlerr.ErrDomain) {
		t.Errorf("NaN: expected ErrDomain, got %v", err)
	}
}

func TestArcProject(t *testing.T) {
	a := mustArc(t, math.Pi)

	// Chord midpoint between u=0 and u=0.6 projects radially to u=0.3.
	p0, _ := a.Eval(kernel.UV{U: 0})
	p1, _ := a.Eval(kernel.UV{U: 0.6})
	mid := p0.Add(p1).MulScalar(0.5)
	uv, xyz := a.Project(mid)
	if math.Abs(uv.U-0.3) > eps {
		t.Errorf("u = %g, want 0.3", uv.U)
	}
	if math.Abs(xyz.Length()-0.5) > eps {
		t.Errorf("|xyz| = %g, want 0.5", xyz.Length())
	}

	// Below the x axis is outside the sweep; the nearer endpoint wins.
	uv, _ = a.Project(v3.Vec{X: -1, Y: -0.01})
	if math.Abs(uv.U-math.Pi) > eps {
		t.Errorf("clamped u = %g, want π", uv.U)
	}
	uv, _ = a.Project(v3.Vec{X: 1, Y: -0.01})
	if uv.U != 0 {
		t.Errorf("clamped u = %g, want 0", uv.U)
	}
}

func TestArcProjectIdempotent(t *testing.T) {
	a := mustArc(t, 1.5)
	for _, u := range []float64{0, 0.2, 0.75, 1.5} {
		p, err := a.Eval(kernel.UV{U: u})
		if err != nil {
			t.Fatal(err)
		}
		uv, xyz := a.Project(p)
		if math.Abs(uv.U-u) > eps || !near(xyz, p) {
			t.Errorf("Project(Eval(%g)) = %g, %v", u, uv.U, xyz)
		}
	}
}

func TestArcCurvature(t *testing.T) {
	a := mustArc(t, math.Pi)
	cc, err := a.CurveCurvature(kernel.UV{U: math.Pi / 2})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cc.Curvature-2) > eps {
		t.Errorf("curvature = %g, want 2", cc.Curvature)
	}
	if !near(cc.Tangent, v3.Vec{X: -1}) {
		t.Errorf("tangent = %v", cc.Tangent)
	}
	if !near(cc.PrincipalNormal, v3.Vec{Y: -1}) {
		t.Errorf("normal = %v", cc.PrincipalNormal)
	}
	if !near(cc.Binormal, v3.Vec{Z: 1}) {
		t.Errorf("binormal = %v", cc.Binormal)
	}
	r, err := RadiusOfCurvature(a, kernel.UV{U: 0.4})
	if err != nil || math.Abs(r-0.5) > eps {
		t.Errorf("radius = %g, %v", r, err)
	}
}

func TestPlane(t *testing.T) {
	p, err := NewPlane("p", v3.Vec{Z: 1}, v3.Vec{Z: 1}, v3.Vec{X: 1}, Domain{UMin: -1, UMax: 1, VMin: -1, VMax: 1})
	if err != nil {
		t.Fatal(err)
	}
	uv, xyz := p.Project(v3.Vec{X: 0.25, Y: 5, Z: 3})
	if uv.U != 0.25 || uv.V != 1 {
		t.Errorf("uv = %+v", uv)
	}
	if !near(xyz, v3.Vec{X: 0.25, Y: 1, Z: 1}) {
		t.Errorf("xyz = %v", xyz)
	}
	if _, err := p.Eval(kernel.UV{U: 0, V: 2}); !errors.Is(err, mlerr.ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
	if _, err := RadiusOfCurvature(p, kernel.UV{}); !errors.Is(err, mlerr.ErrDegenerateGeometry) {
		t.Errorf("expected ErrDegenerateGeometry, got %v", err)
	}
}

func TestSphere(t *testing.T) {
	s, err := NewSphere("s", v3.Vec{X: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		in   v3.Vec
		want v3.Vec
	}{
		{"outside +x", v3.Vec{X: 10}, v3.Vec{X: 3}},
		{"inside +y", v3.Vec{X: 1, Y: 0.5}, v3.Vec{X: 1, Y: 2}},
		{"pole", v3.Vec{X: 1, Z: 7}, v3.Vec{X: 1, Z: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uv, xyz := s.Project(tt.in)
			if !near(xyz, tt.want) {
				t.Errorf("xyz = %v, want %v", xyz, tt.want)
			}
			back, err := s.Eval(uv)
			if err != nil || !near(back, xyz) {
				t.Errorf("Eval(%+v) = %v, %v", uv, back, err)
			}
		})
	}

	sc, err := s.SurfaceCurvature(kernel.UV{U: 1, V: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sc.Gauss-0.25) > eps || math.Abs(sc.Min+0.5) > eps {
		t.Errorf("curvature = %+v", sc)
	}
	if math.Abs(sc.Normal.Dot(sc.DU)) > eps || math.Abs(sc.Normal.Dot(sc.DV)) > eps {
		t.Errorf("normal not perpendicular to partials")
	}
	r, err := RadiusOfCurvature(s, kernel.UV{U: 1, V: 0.3})
	if err != nil || math.Abs(r-2) > eps {
		t.Errorf("radius = %g, %v", r, err)
	}
}

func TestCylinder(t *testing.T) {
	c, err := NewCylinder("c", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	uv, xyz := c.Project(v3.Vec{Y: 5, Z: 4})
	if math.Abs(uv.U-math.Pi/2) > eps || uv.V != 3 {
		t.Errorf("uv = %+v", uv)
	}
	if !near(xyz, v3.Vec{Y: 1, Z: 3}) {
		t.Errorf("xyz = %v", xyz)
	}
	r, err := RadiusOfCurvature(c, kernel.UV{U: 2, V: 1})
	if err != nil || math.Abs(r-1) > eps {
		t.Errorf("radius = %g, %v", r, err)
	}
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	s, _ := NewSphere("s", v3.Vec{}, 1)
	a := mustArc(t, 1)
	if err := lib.Add(s); err != nil {
		t.Fatal(err)
	}
	if err := lib.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := lib.Add(s); !errors.Is(err, mlerr.ErrGeometryLoad) {
		t.Errorf("duplicate: expected ErrGeometryLoad, got %v", err)
	}
	names := lib.Names()
	if len(names) != 2 || names[0] != "s" || names[1] != "arc" {
		t.Errorf("names = %v", names)
	}
	if lib.Get("arc") != Entity(a) || lib.Get("missing") != nil {
		t.Errorf("Get mismatch")
	}

	other := NewLibrary()
	s2, _ := NewSphere("s2", v3.Vec{}, 1)
	other.Add(s2)
	if err := lib.Merge(other); err != nil || lib.Len() != 3 {
		t.Errorf("Merge: %v, len %d", err, lib.Len())
	}
}
