package topo

import (
	"fmt"

	"github.com/chazu/meshlink/pkg/mlerr"
)

// Point is a mesh vertex associated with geometry through exactly one
// parametric vertex.
type Point struct {
	Topo
	index    int
	hasIndex bool
}

// NewPoint creates a point identified by its mesh index.
func NewPoint(index int, info Info, pvs ...*ParamVertex) (*Point, error) {
	p, err := newPoint(info, pvs)
	if err != nil {
		return nil, err
	}
	p.index = index
	p.hasIndex = true
	return p, nil
}

// NewPointRef creates a point identified by reference only.
func NewPointRef(info Info, pvs ...*ParamVertex) (*Point, error) {
	return newPoint(info, pvs)
}

func newPoint(info Info, pvs []*ParamVertex) (*Point, error) {
	if len(pvs) != 1 || pvs[0] == nil {
		return nil, fmt.Errorf("topo: point %q: need exactly one parametric vertex, got %d: %w",
			info.Ref, countNonNil(pvs), mlerr.ErrLoad)
	}
	p := &Point{Topo: newTopo(info)}
	p.addParamVertex(pvs[0])
	return p, nil
}

func (p *Point) Kind() Kind { return KindPoint }

// Index returns the mesh index and whether the point was created by index.
func (p *Point) Index() (int, bool) { return p.index, p.hasIndex }

// ParamVert returns the point's single parametric vertex.
func (p *Point) ParamVert() *ParamVertex { return p.pvs[0] }

// Edge is a mesh edge carrying two or more parametric vertices in
// definition order.
type Edge struct {
	Topo
	indices []int
}

// NewEdge creates an edge between point indices. pvs are kept in the order
// given, which becomes the edge's canonical order.
func NewEdge(indices []int, info Info, pvs ...*ParamVertex) (*Edge, error) {
	if len(indices) < 2 {
		return nil, fmt.Errorf("topo: edge %q: need at least two indices: %w", info.Ref, mlerr.ErrLoad)
	}
	return newEdge(indices, info, pvs)
}

// NewEdgeRef creates an edge identified by reference only. Reference edges
// may carry no parametric vertices at all.
func NewEdgeRef(info Info, pvs ...*ParamVertex) (*Edge, error) {
	if len(pvs) == 0 {
		return &Edge{Topo: newTopo(info)}, nil
	}
	return newEdge(nil, info, pvs)
}

func newEdge(indices []int, info Info, pvs []*ParamVertex) (*Edge, error) {
	if countNonNil(pvs) < 2 || countNonNil(pvs) != len(pvs) {
		return nil, fmt.Errorf("topo: edge %q: need at least two parametric vertices, got %d: %w",
			info.Ref, countNonNil(pvs), mlerr.ErrLoad)
	}
	e := &Edge{Topo: newTopo(info), indices: append([]int(nil), indices...)}
	for _, pv := range pvs {
		e.addParamVertex(pv)
	}
	// A repeated vref collapses into one vertex.
	if len(e.pvs) < 2 {
		return nil, fmt.Errorf("topo: edge %q: parametric vertices must be distinct: %w", info.Ref, mlerr.ErrLoad)
	}
	return e, nil
}

func (e *Edge) Kind() Kind { return KindEdge }

// Indices returns the point indices in definition order.
func (e *Edge) Indices() []int { return append([]int(nil), e.indices...) }

func (e *Edge) key() string { return indexKey(e.indices...) }

// Face is a triangle or quadrilateral mesh face.
type Face struct {
	Topo
	indices []int
}

// NewFace creates a face over 3 or 4 point indices. Vertices that have no
// parametric association may be passed as nil and are skipped.
func NewFace(indices []int, info Info, pvs ...*ParamVertex) (*Face, error) {
	if len(indices) != 3 && len(indices) != 4 {
		return nil, fmt.Errorf("topo: face %q: need 3 or 4 indices, got %d: %w", info.Ref, len(indices), mlerr.ErrLoad)
	}
	f := &Face{Topo: newTopo(info), indices: append([]int(nil), indices...)}
	for _, pv := range pvs {
		f.addParamVertex(pv)
	}
	return f, nil
}

// NewFaceRef creates a face identified by reference only.
func NewFaceRef(info Info, pvs ...*ParamVertex) *Face {
	f := &Face{Topo: newTopo(info)}
	for _, pv := range pvs {
		f.addParamVertex(pv)
	}
	return f
}

func (f *Face) Kind() Kind { return KindFace }

// Indices returns the point indices in definition order.
func (f *Face) Indices() []int { return append([]int(nil), f.indices...) }

func (f *Face) key() string { return indexKey(f.indices...) }

func countNonNil(pvs []*ParamVertex) int {
	n := 0
	for _, pv := range pvs {
		if pv != nil {
			n++
		}
	}
	return n
}
