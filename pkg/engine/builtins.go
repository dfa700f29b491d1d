package engine

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshlink/pkg/geom"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpEntity is returned by every geometry builtin.
type sexpEntity struct {
	ent geom.Entity
}

func (e *sexpEntity) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", e.ent.Type(), e.ent.Name())
}
func (e *sexpEntity) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW returns the keyword name if s is a preprocessed keyword.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// float returns the numeric keyword key, or def when absent.
func (a kwArgs) float(key string, def float64) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// requiredFloat is float without a default.
func (a kwArgs) requiredFloat(key string) (float64, error) {
	if _, ok := a.kw[key]; !ok {
		return 0, fmt.Errorf("missing :%s", key)
	}
	return a.float(key, 0)
}

func (a kwArgs) vec(key string, def v3.Vec) (v3.Vec, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return v3.Vec{}, fmt.Errorf("%s: %w", key, err)
	}
	return vec, nil
}

// name returns the entity name from a leading string argument or :name,
// generating one when neither is given.
func (a kwArgs) name(kind string) (string, error) {
	if v, ok := a.kw["name"]; ok {
		s, err := toString(v)
		if err != nil {
			return "", fmt.Errorf("name: %w", err)
		}
		return s, nil
	}
	if len(a.positional) > 0 {
		s, err := toString(a.positional[0])
		if err != nil {
			return "", fmt.Errorf("name: %w", err)
		}
		return s, nil
	}
	return kind + nextEntitySuffix(), nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil || len(items) != 3 {
		return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
	}
	var c [3]float64
	for i, item := range items {
		if c[i], err = toFloat64(item); err != nil {
			return v3.Vec{}, fmt.Errorf("vec3 component %d: %w", i, err)
		}
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// entityCounter provides unique suffixes for anonymous entities.
var entityCounter uint64

func nextEntitySuffix() string {
	n := atomic.AddUint64(&entityCounter, 1)
	return fmt.Sprintf("_anon_%d", n)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

var (
	originVec = v3.Vec{}
	xAxis     = v3.Vec{X: 1}
	zAxis     = v3.Vec{Z: 1}
)

// entityBuiltin adapts a constructor to a zygomys function that adds the
// new entity to lib.
func entityBuiltin(lib *geom.Library, kind string, build func(name string, pa kwArgs) (geom.Entity, error)) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
	return func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		name, err := pa.name(kind)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		ent, err := build(name, pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		if err := lib.Add(ent); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		return &sexpEntity{ent: ent}, nil
	}
}

// registerBuiltins installs the geometry builtins into env. Each entity
// builtin appends to lib.
//
// Source must be run through preprocessSource first so that :keyword
// tokens arrive as recognizable strings.
func registerBuiltins(env *zygo.Zlisp, lib *geom.Library) {

	// (pi), (deg 90)
	env.AddFunction("pi", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpFloat{Val: math.Pi}, nil
	})
	env.AddFunction("deg", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("deg requires exactly 1 argument, got %d", len(args))
		}
		d, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("deg: %w", err)
		}
		return &zygo.SexpFloat{Val: d * math.Pi / 180}, nil
	})

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (line "edge" :from (vec3 0 0 0) :to (vec3 1 0 0))
	env.AddFunction("line", entityBuiltin(lib, "line", func(name string, pa kwArgs) (geom.Entity, error) {
		from, err := pa.vec("from", originVec)
		if err != nil {
			return nil, err
		}
		to, err := pa.vec("to", xAxis)
		if err != nil {
			return nil, err
		}
		return geom.NewLine(name, from, to)
	}))

	// (arc "rim" :center (vec3 0 0 0) :normal (vec3 0 0 1) :ref-dir (vec3 1 0 0)
	//      :radius 0.5 :sweep (pi))
	env.AddFunction("arc", entityBuiltin(lib, "arc", func(name string, pa kwArgs) (geom.Entity, error) {
		center, normal, ref, radius, err := circleArgs(pa)
		if err != nil {
			return nil, err
		}
		sweep, err := pa.requiredFloat("sweep")
		if err != nil {
			return nil, err
		}
		return geom.NewArc(name, center, normal, ref, radius, sweep)
	}))

	// (circle "rim" :radius 0.5)
	env.AddFunction("circle", entityBuiltin(lib, "circle", func(name string, pa kwArgs) (geom.Entity, error) {
		center, normal, ref, radius, err := circleArgs(pa)
		if err != nil {
			return nil, err
		}
		return geom.NewCircle(name, center, normal, ref, radius)
	}))

	// (plane "floor" :origin (vec3 0 0 0) :normal (vec3 0 0 1)
	//        :umin -1 :umax 1 :vmin -1 :vmax 1)
	env.AddFunction("plane", entityBuiltin(lib, "plane", func(name string, pa kwArgs) (geom.Entity, error) {
		origin, err := pa.vec("origin", originVec)
		if err != nil {
			return nil, err
		}
		normal, err := pa.vec("normal", zAxis)
		if err != nil {
			return nil, err
		}
		ref, err := pa.vec("ref-dir", xAxis)
		if err != nil {
			return nil, err
		}
		var d geom.Domain
		for _, b := range []struct {
			key string
			def float64
			dst *float64
		}{
			{"umin", -1, &d.UMin}, {"umax", 1, &d.UMax},
			{"vmin", -1, &d.VMin}, {"vmax", 1, &d.VMax},
		} {
			if *b.dst, err = pa.float(b.key, b.def); err != nil {
				return nil, err
			}
		}
		return geom.NewPlane(name, origin, normal, ref, d)
	}))

	// (sphere "ball" :center (vec3 0 0 0) :radius 0.5)
	env.AddFunction("sphere", entityBuiltin(lib, "sphere", func(name string, pa kwArgs) (geom.Entity, error) {
		center, err := pa.vec("center", originVec)
		if err != nil {
			return nil, err
		}
		radius, err := pa.requiredFloat("radius")
		if err != nil {
			return nil, err
		}
		return geom.NewSphere(name, center, radius)
	}))

	// (cylinder "post" :base (vec3 0 0 0) :axis (vec3 0 0 1) :radius 1 :height 2)
	env.AddFunction("cylinder", entityBuiltin(lib, "cylinder", func(name string, pa kwArgs) (geom.Entity, error) {
		base, err := pa.vec("base", originVec)
		if err != nil {
			return nil, err
		}
		axis, err := pa.vec("axis", zAxis)
		if err != nil {
			return nil, err
		}
		ref, err := pa.vec("ref-dir", xAxis)
		if err != nil {
			return nil, err
		}
		radius, err := pa.requiredFloat("radius")
		if err != nil {
			return nil, err
		}
		height, err := pa.requiredFloat("height")
		if err != nil {
			return nil, err
		}
		return geom.NewCylinder(name, base, axis, ref, radius, height)
	}))
}

func circleArgs(pa kwArgs) (center, normal, ref v3.Vec, radius float64, err error) {
	if center, err = pa.vec("center", originVec); err != nil {
		return
	}
	if normal, err = pa.vec("normal", zAxis); err != nil {
		return
	}
	if ref, err = pa.vec("ref-dir", xAxis); err != nil {
		return
	}
	radius, err = pa.requiredFloat("radius")
	return
}
