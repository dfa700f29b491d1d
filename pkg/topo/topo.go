// Package topo defines the mesh topology entities of an associativity
// model: points, edges and faces, the strings and sheets that group them,
// and the model that owns them all. Every entity composes Topo for the
// fields they share.
package topo

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates topology entity variants.
type Kind int

const (
	KindPoint Kind = iota
	KindEdge
	KindFace
	KindString
	KindSheet
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindEdge:
		return "edge"
	case KindFace:
		return "face"
	case KindString:
		return "string"
	case KindSheet:
		return "sheet"
	case KindModel:
		return "model"
	default:
		return "unknown"
	}
}

// Info carries the identifying fields of a new entity. Use NoRef for an
// absent Mid, Aref or Gref. An empty Name defaults to Ref, and then to a
// generated unique name.
type Info struct {
	Ref  string
	Name string
	Mid  int
	Aref int
	Gref int
}

// Entity is implemented by every topology variant.
type Entity interface {
	Kind() Kind
	Ref() string
	Name() string
	Gref() int
	HasGref() bool
	ID() int
	Aref() int
	ParamVerts() []*ParamVertex
	Attributes() map[string]string
}

// Topo holds the fields shared by all topology entities.
type Topo struct {
	ref  string
	name string
	mid  int
	aref int
	gref int

	pvs      []*ParamVertex
	pvByVref map[string]*ParamVertex

	attrs map[string]string
}

func newTopo(info Info) Topo {
	t := Topo{
		ref:      info.Ref,
		name:     info.Name,
		mid:      info.Mid,
		aref:     info.Aref,
		gref:     info.Gref,
		pvByVref: make(map[string]*ParamVertex),
	}
	if t.name == "" {
		t.name = t.ref
	}
	return t
}

func (t *Topo) Ref() string  { return t.ref }
func (t *Topo) Name() string { return t.name }
func (t *Topo) Gref() int    { return t.gref }
func (t *Topo) ID() int      { return t.mid }
func (t *Topo) Aref() int    { return t.aref }

// HasGref reports whether the entity references a geometry group.
func (t *Topo) HasGref() bool { return t.gref != NoRef }

// ParamVerts returns the parametric vertices in definition order.
func (t *Topo) ParamVerts() []*ParamVertex {
	out := make([]*ParamVertex, len(t.pvs))
	copy(out, t.pvs)
	return out
}

func (t *Topo) NumParamVerts() int { return len(t.pvs) }

// ParamVertByVref returns the vertex with the given vref, or nil.
func (t *Topo) ParamVertByVref(vref string) *ParamVertex { return t.pvByVref[vref] }

// Attributes returns a copy of the resolved attribute name/value pairs.
func (t *Topo) Attributes() map[string]string {
	if t.attrs == nil {
		return map[string]string{}
	}
	return maps.Clone(t.attrs)
}

// SetAttributes replaces the resolved attributes. The container calls it
// once while loading; entities are read-only afterwards.
func (t *Topo) SetAttributes(attrs map[string]string) {
	t.attrs = maps.Clone(attrs)
}

// addParamVertex appends pv. A vertex whose vref is already present
// replaces the earlier mapping but keeps its position.
func (t *Topo) addParamVertex(pv *ParamVertex) {
	if pv == nil {
		return
	}
	if old, ok := t.pvByVref[pv.vref]; ok {
		for i, p := range t.pvs {
			if p == old {
				t.pvs[i] = pv
			}
		}
	} else {
		t.pvs = append(t.pvs, pv)
	}
	t.pvByVref[pv.vref] = pv
}

// indexKey builds an order-independent lookup key from point indices.
func indexKey(indices ...int) string {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// namer issues unique names for entities created without one.
type namer struct {
	counters map[Kind]uint64
}

var baseNames = map[Kind]string{
	KindPoint:  "ml_point-",
	KindEdge:   "ml_edge-",
	KindFace:   "ml_face-",
	KindString: "ml_string-",
	KindSheet:  "ml_sheet-",
	KindModel:  "ml_model-",
}

func (n *namer) next(k Kind) string {
	if n.counters == nil {
		n.counters = make(map[Kind]uint64)
	}
	n.counters[k]++
	return fmt.Sprintf("%s%d", baseNames[k], n.counters[k])
}
