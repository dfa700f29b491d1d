package topo

// String groups mesh edges that lie on one curve.
type String struct {
	Topo
	edges     []*Edge
	edgeByKey map[string]*Edge
	byName    map[string]*Edge
	byRef     map[string]*Edge
}

func newString(info Info) *String {
	return &String{
		Topo:      newTopo(info),
		edgeByKey: make(map[string]*Edge),
		byName:    make(map[string]*Edge),
		byRef:     make(map[string]*Edge),
	}
}

func (s *String) Kind() Kind { return KindString }

// AddParamVertex records a parametric vertex that edges of this string
// resolve by vref.
func (s *String) AddParamVertex(pv *ParamVertex) { s.addParamVertex(pv) }

// Edges returns the string's edges in insertion order.
func (s *String) Edges() []*Edge { return append([]*Edge(nil), s.edges...) }

func (s *String) NumEdges() int { return len(s.edges) }

// FindEdgeByIndices matches an edge regardless of index order.
func (s *String) FindEdgeByIndices(indices ...int) *Edge { return s.edgeByKey[indexKey(indices...)] }

func (s *String) EdgeByName(name string) *Edge { return s.byName[name] }
func (s *String) EdgeByRef(ref string) *Edge   { return s.byRef[ref] }

func (s *String) add(e *Edge) {
	s.edges = append(s.edges, e)
	if len(e.indices) > 0 {
		s.edgeByKey[e.key()] = e
	}
	s.byName[e.name] = e
	if e.ref != "" {
		s.byRef[e.ref] = e
	}
}

// Sheet groups mesh faces that lie on one surface, along with the edges
// derived from those faces.
type Sheet struct {
	Topo
	faces         []*Face
	faceByKey     map[string]*Face
	byName        map[string]*Face
	byRef         map[string]*Face
	faceEdges     []*Edge
	faceEdgeByKey map[string]*Edge
}

func newSheet(info Info) *Sheet {
	return &Sheet{
		Topo:          newTopo(info),
		faceByKey:     make(map[string]*Face),
		byName:        make(map[string]*Face),
		byRef:         make(map[string]*Face),
		faceEdgeByKey: make(map[string]*Edge),
	}
}

func (s *Sheet) Kind() Kind { return KindSheet }

// AddParamVertex records a parametric vertex that faces of this sheet
// resolve by vref.
func (s *Sheet) AddParamVertex(pv *ParamVertex) { s.addParamVertex(pv) }

// Faces returns the sheet's faces in insertion order.
func (s *Sheet) Faces() []*Face { return append([]*Face(nil), s.faces...) }

// FaceEdges returns the edges derived from the sheet's faces in insertion order.
func (s *Sheet) FaceEdges() []*Edge { return append([]*Edge(nil), s.faceEdges...) }

func (s *Sheet) NumFaces() int     { return len(s.faces) }
func (s *Sheet) NumFaceEdges() int { return len(s.faceEdges) }

func (s *Sheet) FindFaceByIndices(indices ...int) *Face { return s.faceByKey[indexKey(indices...)] }

func (s *Sheet) FindFaceEdgeByIndices(indices ...int) *Edge {
	return s.faceEdgeByKey[indexKey(indices...)]
}

func (s *Sheet) FaceByName(name string) *Face { return s.byName[name] }
func (s *Sheet) FaceByRef(ref string) *Face   { return s.byRef[ref] }

func (s *Sheet) add(f *Face) {
	s.faces = append(s.faces, f)
	if len(f.indices) > 0 {
		s.faceByKey[f.key()] = f
	}
	s.byName[f.name] = f
	if f.ref != "" {
		s.byRef[f.ref] = f
	}
}

func (s *Sheet) addFaceEdge(e *Edge) {
	if _, ok := s.faceEdgeByKey[e.key()]; ok {
		return
	}
	s.faceEdges = append(s.faceEdges, e)
	s.faceEdgeByKey[e.key()] = e
}
