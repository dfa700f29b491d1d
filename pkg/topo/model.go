package topo

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/chazu/meshlink/pkg/mlerr"
)

// modelCounter provides unique suffixes for models created without a name.
var modelCounter uint64

// ParamVertexSource is anything that resolves parametric vertices by vref.
type ParamVertexSource interface {
	ParamVertByVref(vref string) *ParamVertex
}

// Model is the top-level topology entity. It owns every point, edge and
// face of one mesh model, the strings and sheets grouping them, and the
// model-level parametric vertices.
type Model struct {
	Topo
	names namer

	points       map[string]*Point
	pointOrder   []*Point
	pointsByName map[string]*Point
	pointsByRef  map[string]*Point
	pointsByID   map[int]*Point

	edgePoints     map[int]*Point
	edgePointOrder []*Point
	faceEdgePoints map[int]*Point
	faceEdgeOrder  []*Point

	edges       map[string]*Edge
	edgeOrder   []*Edge
	edgesByName map[string]*Edge
	edgesByRef  map[string]*Edge
	edgesByID   map[int]*Edge

	faceEdges     map[string]*Edge
	faceEdgeList  []*Edge
	faces         map[string]*Face
	faceOrder     []*Face
	facesByName   map[string]*Face
	facesByRef    map[string]*Face
	facesByID     map[int]*Face
	stringList    []*String
	stringsByName map[string]*String
	stringsByRef  map[string]*String
	stringsByID   map[int]*String
	sheetList     []*Sheet
	sheetsByName  map[string]*Sheet
	sheetsByRef   map[string]*Sheet
	sheetsByID    map[int]*Sheet
}

// NewModel creates an empty model.
func NewModel(info Info) *Model {
	m := &Model{
		Topo:           newTopo(info),
		points:         make(map[string]*Point),
		pointsByName:   make(map[string]*Point),
		pointsByRef:    make(map[string]*Point),
		pointsByID:     make(map[int]*Point),
		edgePoints:     make(map[int]*Point),
		faceEdgePoints: make(map[int]*Point),
		edges:          make(map[string]*Edge),
		edgesByName:    make(map[string]*Edge),
		edgesByRef:     make(map[string]*Edge),
		edgesByID:      make(map[int]*Edge),
		faceEdges:      make(map[string]*Edge),
		faces:          make(map[string]*Face),
		facesByName:    make(map[string]*Face),
		facesByRef:     make(map[string]*Face),
		facesByID:      make(map[int]*Face),
		stringsByName:  make(map[string]*String),
		stringsByRef:   make(map[string]*String),
		stringsByID:    make(map[int]*String),
		sheetsByName:   make(map[string]*Sheet),
		sheetsByRef:    make(map[string]*Sheet),
		sheetsByID:     make(map[int]*Sheet),
	}
	if m.name == "" {
		n := atomic.AddUint64(&modelCounter, 1)
		m.name = fmt.Sprintf("%s%d", baseNames[KindModel], n)
	}
	return m
}

func (m *Model) Kind() Kind { return KindModel }

// AddParamVertex records a model-level parametric vertex.
func (m *Model) AddParamVertex(pv *ParamVertex) { m.addParamVertex(pv) }

// ParamVertexFor resolves vref in parent first and then at model level.
func (m *Model) ParamVertexFor(parent ParamVertexSource, vref string) *ParamVertex {
	if parent != nil {
		if pv := parent.ParamVertByVref(vref); pv != nil {
			return pv
		}
	}
	return m.ParamVertByVref(vref)
}

func (m *Model) fillName(info *Info, k Kind) {
	if info.Name == "" && info.Ref == "" {
		info.Name = m.names.next(k)
	}
}

// ---------------------------------------------------------------------------
// Strings and sheets
// ---------------------------------------------------------------------------

// AddString creates a string in the model. A name collision is an error.
func (m *Model) AddString(info Info) (*String, error) {
	m.fillName(&info, KindString)
	s := newString(info)
	if _, ok := m.stringsByName[s.name]; ok {
		return nil, fmt.Errorf("topo: model %q: duplicate string name %q: %w", m.name, s.name, mlerr.ErrLoad)
	}
	m.stringList = append(m.stringList, s)
	m.stringsByName[s.name] = s
	if s.ref != "" {
		m.stringsByRef[s.ref] = s
	}
	if s.mid != NoRef {
		m.stringsByID[s.mid] = s
	}
	return s, nil
}

// AddSheet creates a sheet in the model. A name collision is an error.
func (m *Model) AddSheet(info Info) (*Sheet, error) {
	m.fillName(&info, KindSheet)
	s := newSheet(info)
	if _, ok := m.sheetsByName[s.name]; ok {
		return nil, fmt.Errorf("topo: model %q: duplicate sheet name %q: %w", m.name, s.name, mlerr.ErrLoad)
	}
	m.sheetList = append(m.sheetList, s)
	m.sheetsByName[s.name] = s
	if s.ref != "" {
		m.sheetsByRef[s.ref] = s
	}
	if s.mid != NoRef {
		m.sheetsByID[s.mid] = s
	}
	return s, nil
}

func (m *Model) Strings() []*String { return append([]*String(nil), m.stringList...) }
func (m *Model) Sheets() []*Sheet   { return append([]*Sheet(nil), m.sheetList...) }

func (m *Model) StringByName(name string) *String { return m.stringsByName[name] }
func (m *Model) StringByRef(ref string) *String   { return m.stringsByRef[ref] }
func (m *Model) StringByID(mid int) *String       { return m.stringsByID[mid] }
func (m *Model) SheetByName(name string) *Sheet   { return m.sheetsByName[name] }
func (m *Model) SheetByRef(ref string) *Sheet     { return m.sheetsByRef[ref] }
func (m *Model) SheetByID(mid int) *Sheet         { return m.sheetsByID[mid] }

// ---------------------------------------------------------------------------
// Points
// ---------------------------------------------------------------------------

// AddPoint adds a model-level point by mesh index. Adding an index that is
// already present is a no-op.
func (m *Model) AddPoint(index int, info Info, pv *ParamVertex) error {
	key := indexKey(index)
	if _, ok := m.points[key]; ok {
		return nil
	}
	m.fillName(&info, KindPoint)
	p, err := NewPoint(index, info, pv)
	if err != nil {
		return err
	}
	if err := m.storePoint(p); err != nil {
		return err
	}
	m.points[key] = p
	return nil
}

// AddPointRef adds a model-level point identified by reference.
func (m *Model) AddPointRef(info Info, pv *ParamVertex) error {
	m.fillName(&info, KindPoint)
	p, err := NewPointRef(info, pv)
	if err != nil {
		return err
	}
	return m.storePoint(p)
}

func (m *Model) storePoint(p *Point) error {
	if _, ok := m.pointsByName[p.name]; ok {
		return fmt.Errorf("topo: model %q: duplicate point name %q: %w", m.name, p.name, mlerr.ErrLoad)
	}
	m.pointOrder = append(m.pointOrder, p)
	m.pointsByName[p.name] = p
	if p.ref != "" {
		m.pointsByRef[p.ref] = p
	}
	if p.mid != NoRef {
		m.pointsByID[p.mid] = p
	}
	return nil
}

// addDerivedPoint records an edge-point or face-edge-point. Vertices with no
// parametric association do not become points.
func (m *Model) addDerivedPoint(into map[int]*Point, order *[]*Point, index int, info Info, pv *ParamVertex) {
	if pv == nil {
		return
	}
	if _, ok := into[index]; ok {
		return
	}
	info.Ref = ""
	info.Name = m.names.next(KindPoint)
	p, err := NewPoint(index, info, pv)
	if err != nil {
		return
	}
	into[index] = p
	*order = append(*order, p)
}

// Points returns the model-level points in insertion order.
func (m *Model) Points() []*Point { return append([]*Point(nil), m.pointOrder...) }

// EdgePoints returns the points derived from string edges.
func (m *Model) EdgePoints() []*Point { return append([]*Point(nil), m.edgePointOrder...) }

// FaceEdgePoints returns the points derived from sheet faces.
func (m *Model) FaceEdgePoints() []*Point { return append([]*Point(nil), m.faceEdgeOrder...) }

func (m *Model) PointByName(name string) *Point { return m.pointsByName[name] }
func (m *Model) PointByRef(ref string) *Point   { return m.pointsByRef[ref] }
func (m *Model) PointByID(mid int) *Point       { return m.pointsByID[mid] }

// FindPointByIndex searches model-level points. Points are usually stored
// by reference, so the decimal index is also tried as a ref.
func (m *Model) FindPointByIndex(index int) *Point {
	if p, ok := m.points[indexKey(index)]; ok {
		return p
	}
	return m.pointsByRef[strconv.Itoa(index)]
}

func (m *Model) FindEdgePointByIndex(index int) *Point     { return m.edgePoints[index] }
func (m *Model) FindFaceEdgePointByIndex(index int) *Point { return m.faceEdgePoints[index] }

// FindLowestTopoPointByIndex prefers the most specific definition of a
// point: string edge-points, then sheet face-edge-points, then model level.
func (m *Model) FindLowestTopoPointByIndex(index int) *Point {
	if p := m.FindEdgePointByIndex(index); p != nil {
		return p
	}
	if p := m.FindFaceEdgePointByIndex(index); p != nil {
		return p
	}
	return m.FindPointByIndex(index)
}

// FindHighestTopoPointByIndex prefers the model-level definition, then
// face-edge-points, then edge-points.
func (m *Model) FindHighestTopoPointByIndex(index int) *Point {
	if p := m.FindPointByIndex(index); p != nil {
		return p
	}
	if p := m.FindFaceEdgePointByIndex(index); p != nil {
		return p
	}
	return m.FindEdgePointByIndex(index)
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

// AddStringEdge adds the edge (i1, i2) to s and to the model. Parametric
// vertices are resolved by index in s and then at model level. The edge's
// endpoints also become edge-points.
func (m *Model) AddStringEdge(s *String, i1, i2 int, info Info) error {
	var src ParamVertexSource
	if s != nil {
		src = s
	}
	pv1 := m.ParamVertexFor(src, strconv.Itoa(i1))
	pv2 := m.ParamVertexFor(src, strconv.Itoa(i2))

	pointInfo := Info{Mid: info.Mid, Aref: info.Aref, Gref: info.Gref}
	m.addDerivedPoint(m.edgePoints, &m.edgePointOrder, i1, pointInfo, pv1)
	m.addDerivedPoint(m.edgePoints, &m.edgePointOrder, i2, pointInfo, pv2)

	key := indexKey(i1, i2)
	if e, ok := m.edges[key]; ok {
		if s != nil && s.FindEdgeByIndices(i1, i2) == nil {
			s.add(e)
		}
		return nil
	}

	m.fillName(&info, KindEdge)
	e, err := NewEdge([]int{i1, i2}, info, pv1, pv2)
	if err != nil {
		return err
	}
	if err := m.storeEdge(e); err != nil {
		return err
	}
	m.edges[key] = e
	if s != nil {
		s.add(e)
	}
	return nil
}

// AddStringEdgeRef adds a reference-only edge to s and to the model.
func (m *Model) AddStringEdgeRef(s *String, info Info) error {
	m.fillName(&info, KindEdge)
	e, err := NewEdgeRef(info)
	if err != nil {
		return err
	}
	if err := m.storeEdge(e); err != nil {
		return err
	}
	if s != nil {
		s.add(e)
	}
	return nil
}

func (m *Model) storeEdge(e *Edge) error {
	if _, ok := m.edgesByName[e.name]; ok {
		return fmt.Errorf("topo: model %q: duplicate edge name %q: %w", m.name, e.name, mlerr.ErrLoad)
	}
	m.edgeOrder = append(m.edgeOrder, e)
	m.edgesByName[e.name] = e
	if e.ref != "" {
		m.edgesByRef[e.ref] = e
	}
	if e.mid != NoRef {
		m.edgesByID[e.mid] = e
	}
	return nil
}

// addFaceEdge records an edge derived from a face. Face edges whose vertices
// lack parametric association are skipped.
func (m *Model) addFaceEdge(s *Sheet, i1, i2 int, info Info, pv1, pv2 *ParamVertex) {
	key := indexKey(i1, i2)
	e, ok := m.faceEdges[key]
	if !ok {
		if pv1 == nil || pv2 == nil {
			return
		}
		info.Ref = ""
		info.Name = m.names.next(KindEdge)
		var err error
		e, err = NewEdge([]int{i1, i2}, info, pv1, pv2)
		if err != nil {
			return
		}
		m.faceEdges[key] = e
		m.faceEdgeList = append(m.faceEdgeList, e)
	}
	if s != nil {
		s.addFaceEdge(e)
	}
}

// Edges returns the string edges in insertion order.
func (m *Model) Edges() []*Edge { return append([]*Edge(nil), m.edgeOrder...) }

// FaceEdges returns the face-derived edges in insertion order.
func (m *Model) FaceEdges() []*Edge { return append([]*Edge(nil), m.faceEdgeList...) }

func (m *Model) NumEdges() int { return len(m.edgeOrder) }

func (m *Model) EdgeByName(name string) *Edge { return m.edgesByName[name] }
func (m *Model) EdgeByRef(ref string) *Edge   { return m.edgesByRef[ref] }
func (m *Model) EdgeByID(mid int) *Edge       { return m.edgesByID[mid] }

// FindEdgeByIndices matches a string edge regardless of index order.
func (m *Model) FindEdgeByIndices(indices ...int) *Edge { return m.edges[indexKey(indices...)] }

// FindFaceEdgeByIndices matches a face-derived edge regardless of index order.
func (m *Model) FindFaceEdgeByIndices(indices ...int) *Edge {
	return m.faceEdges[indexKey(indices...)]
}

// FindLowestTopoEdgeByIndices searches string edges first and then face
// edges. The returned edge keeps its own vertex order.
func (m *Model) FindLowestTopoEdgeByIndices(indices ...int) *Edge {
	if e := m.FindEdgeByIndices(indices...); e != nil {
		return e
	}
	return m.FindFaceEdgeByIndices(indices...)
}

// ---------------------------------------------------------------------------
// Faces
// ---------------------------------------------------------------------------

// AddSheetFace adds a Tri3 or Quad4 face to s and to the model, along with
// its face edges and face-edge-points.
func (m *Model) AddSheetFace(s *Sheet, indices []int, info Info) error {
	if len(indices) != 3 && len(indices) != 4 {
		return fmt.Errorf("topo: model %q: face needs 3 or 4 indices, got %d: %w", m.name, len(indices), mlerr.ErrLoad)
	}
	var src ParamVertexSource
	if s != nil {
		src = s
	}
	pvs := make([]*ParamVertex, len(indices))
	for i, idx := range indices {
		pvs[i] = m.ParamVertexFor(src, strconv.Itoa(idx))
	}

	derived := Info{Mid: info.Mid, Aref: info.Aref, Gref: info.Gref}
	for i := range indices {
		j := (i + 1) % len(indices)
		m.addFaceEdge(s, indices[i], indices[j], derived, pvs[i], pvs[j])
	}
	for i, idx := range indices {
		m.addDerivedPoint(m.faceEdgePoints, &m.faceEdgeOrder, idx, derived, pvs[i])
	}

	key := indexKey(indices...)
	if f, ok := m.faces[key]; ok {
		if s != nil && s.FindFaceByIndices(indices...) == nil {
			s.add(f)
		}
		return nil
	}
	m.fillName(&info, KindFace)
	f, err := NewFace(indices, info, pvs...)
	if err != nil {
		return err
	}
	if err := m.storeFace(f); err != nil {
		return err
	}
	m.faces[key] = f
	if s != nil {
		s.add(f)
	}
	return nil
}

// AddSheetFaceRef adds a reference-only face to s and to the model.
func (m *Model) AddSheetFaceRef(s *Sheet, info Info) error {
	m.fillName(&info, KindFace)
	f := NewFaceRef(info)
	if err := m.storeFace(f); err != nil {
		return err
	}
	if s != nil {
		s.add(f)
	}
	return nil
}

func (m *Model) storeFace(f *Face) error {
	if _, ok := m.facesByName[f.name]; ok {
		return fmt.Errorf("topo: model %q: duplicate face name %q: %w", m.name, f.name, mlerr.ErrLoad)
	}
	m.faceOrder = append(m.faceOrder, f)
	m.facesByName[f.name] = f
	if f.ref != "" {
		m.facesByRef[f.ref] = f
	}
	if f.mid != NoRef {
		m.facesByID[f.mid] = f
	}
	return nil
}

// Faces returns the model's faces in insertion order.
func (m *Model) Faces() []*Face { return append([]*Face(nil), m.faceOrder...) }

func (m *Model) NumFaces() int { return len(m.faceOrder) }

func (m *Model) FaceByName(name string) *Face { return m.facesByName[name] }
func (m *Model) FaceByRef(ref string) *Face   { return m.facesByRef[ref] }
func (m *Model) FaceByID(mid int) *Face       { return m.facesByID[mid] }

// FindFaceByIndices matches a face regardless of index order.
func (m *Model) FindFaceByIndices(indices ...int) *Face { return m.faces[indexKey(indices...)] }

// FindLowestTopoFaceByIndices is FindFaceByIndices; faces exist only at
// sheet level.
func (m *Model) FindLowestTopoFaceByIndices(indices ...int) *Face {
	return m.FindFaceByIndices(indices...)
}

// ---------------------------------------------------------------------------
// Enumeration
// ---------------------------------------------------------------------------

// Entities returns the model and every entity it owns, each exactly once.
func (m *Model) Entities() []Entity {
	out := []Entity{m}
	for _, s := range m.stringList {
		out = append(out, s)
	}
	for _, s := range m.sheetList {
		out = append(out, s)
	}
	for _, p := range m.pointOrder {
		out = append(out, p)
	}
	for _, p := range m.edgePointOrder {
		out = append(out, p)
	}
	for _, p := range m.faceEdgeOrder {
		out = append(out, p)
	}
	for _, e := range m.edgeOrder {
		out = append(out, e)
	}
	for _, e := range m.faceEdgeList {
		out = append(out, e)
	}
	for _, f := range m.faceOrder {
		out = append(out, f)
	}
	return out
}
