package topo

import "fmt"

// NoRef marks an absent gref, mid or aref.
const NoRef = -1

// ParamVertex binds a mesh vertex reference to parametric coordinates on an
// associated geometric entity. It is immutable after construction.
type ParamVertex struct {
	vref string
	gref int
	mid  int
	dim  int
	u, v float64
}

// NewParamVertex returns a surface parametric vertex (dimension 2).
func NewParamVertex(vref string, gref, mid int, u, v float64) *ParamVertex {
	return &ParamVertex{vref: vref, gref: gref, mid: mid, dim: 2, u: u, v: v}
}

// NewCurveParamVertex returns a curve parametric vertex. Only u is meaningful.
func NewCurveParamVertex(vref string, gref, mid int, u float64) *ParamVertex {
	return &ParamVertex{vref: vref, gref: gref, mid: mid, dim: 1, u: u}
}

func (pv *ParamVertex) Vref() string { return pv.vref }
func (pv *ParamVertex) Gref() int    { return pv.gref }
func (pv *ParamVertex) ID() int      { return pv.mid }

// Dim is 1 for a vertex on a curve and 2 for a vertex on a surface.
func (pv *ParamVertex) Dim() int { return pv.dim }

// UV returns the parametric coordinates.
func (pv *ParamVertex) UV() (u, v float64) { return pv.u, pv.v }

func (pv *ParamVertex) String() string {
	return fmt.Sprintf("pv(%s gref=%d uv=%g,%g)", pv.vref, pv.gref, pv.u, pv.v)
}
