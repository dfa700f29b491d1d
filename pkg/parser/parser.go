// Package parser reads and writes MeshLink XML documents.
//
// Read produces an assoc.LoadData for a Container; Write serializes a
// loaded Container back to the same element layout.
package parser

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/meshlink/pkg/assoc"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

// maxCount bounds the count attribute of element runs.
const maxCount = 1_000_000_000_000

// ReadFile parses the MeshLink document at path. Relative geometry and
// mesh file names resolve against the document's directory.
func ReadFile(path string) (assoc.LoadData, error) {
	f, err := os.Open(path)
	if err != nil {
		return assoc.LoadData{}, errors.Wrapf(mlerr.ErrLoad, "open %s: %v", path, err)
	}
	defer f.Close()
	data, err := Read(f)
	if err != nil {
		return assoc.LoadData{}, errors.Wrapf(err, "%s", path)
	}
	data.BaseDir = filepath.Dir(path)
	return data, nil
}

// Read parses a MeshLink document. Any malformed content fails the whole
// document with an error wrapping mlerr.ErrLoad.
func Read(r io.Reader) (assoc.LoadData, error) {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return assoc.LoadData{}, errors.Wrapf(mlerr.ErrLoad, "decode MeshLink: %v", err)
	}
	p := &reader{}
	p.attributes(doc.Attributes, false)
	p.attributes(doc.AttrGroups, true)
	for _, gf := range doc.GeometryFiles {
		p.geometryFile(gf)
	}
	for _, g := range doc.GeometryGroups {
		p.geometryGroup(g)
	}
	for _, mf := range doc.MeshFiles {
		p.meshFile(mf)
	}
	if p.err != nil {
		return assoc.LoadData{}, p.err
	}
	return p.data, nil
}

// reader accumulates LoadData and keeps the first error.
type reader struct {
	data assoc.LoadData
	err  error
}

func (p *reader) fail(format string, args ...any) {
	if p.err == nil {
		p.err = errors.Wrapf(mlerr.ErrLoad, format, args...)
	}
}

// optInt parses an optional integer attribute.
func (p *reader) optInt(elem, attr, s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail("%s: bad %s %q", elem, attr, s)
		return def
	}
	return n
}

func (p *reader) reqInt(elem, attr, s string) int {
	if strings.TrimSpace(s) == "" {
		p.fail("%s: missing %s", elem, attr)
		return topo.NoRef
	}
	return p.optInt(elem, attr, s, topo.NoRef)
}

func (p *reader) attributes(list []xmlAttribute, group bool) {
	elem := "Attribute"
	if group {
		elem = "AttributeGroup"
	}
	for _, a := range list {
		id := p.reqInt(elem, "attid", a.AttID)
		if a.Name == "" {
			p.fail("%s %d: missing name", elem, id)
		}
		p.data.Attributes = append(p.data.Attributes, assoc.Attribute{
			ID:    id,
			Name:  a.Name,
			Value: strings.TrimSpace(a.Value),
			Group: group,
		})
	}
}

func (p *reader) geometryFile(gf xmlGeometryFile) {
	if gf.Filename == "" {
		p.fail("GeometryFile: missing filename")
	}
	f := assoc.FileRef{Filename: gf.Filename, Aref: p.optInt("GeometryFile", "aref", gf.Aref, topo.NoRef)}
	for _, r := range gf.References {
		gid := p.reqInt("GeometryReference", "gid", r.GID)
		if r.Ref == "" {
			p.fail("GeometryReference %d: missing ref", gid)
		}
		name := r.Name
		if name == "" {
			name = r.Ref
		}
		p.data.Groups = append(p.data.Groups, assoc.GroupRecord{
			ID:       gid,
			Name:     name,
			Aref:     p.optInt("GeometryReference", "aref", r.Aref, topo.NoRef),
			Entities: []string{r.Ref},
		})
		f.GroupIDs = append(f.GroupIDs, gid)
	}
	for _, g := range gf.Groups {
		p.geometryGroup(g)
	}
	p.data.GeometryFiles = append(p.data.GeometryFiles, f)
}

func (p *reader) geometryGroup(g xmlGeometryGroup) {
	gid := p.reqInt("GeometryGroup", "gid", g.GID)
	fields := strings.Fields(g.Members)
	if len(fields) == 0 {
		p.fail("GeometryGroup %d: missing content", gid)
	}
	members := make([]int, 0, len(fields))
	for _, s := range fields {
		members = append(members, p.reqInt("GeometryGroup", "member gid", s))
	}
	p.data.Groups = append(p.data.Groups, assoc.GroupRecord{
		ID:      gid,
		Name:    g.Name,
		Aref:    p.optInt("GeometryGroup", "aref", g.Aref, topo.NoRef),
		Members: members,
	})
}

func (p *reader) meshFile(mf xmlMeshFile) {
	if mf.Filename == "" {
		p.fail("MeshFile: missing filename")
	}
	f := assoc.FileRef{Filename: mf.Filename, Aref: p.optInt("MeshFile", "aref", mf.Aref, topo.NoRef)}
	for _, xm := range mf.Models {
		if xm.Ref == "" {
			p.fail("MeshModelReference: missing ref")
			continue
		}
		if m := p.model(xm); m != nil {
			p.data.Models = append(p.data.Models, m)
			f.ModelRefs = append(f.ModelRefs, xm.Ref)
		}
	}
	p.data.MeshFiles = append(p.data.MeshFiles, f)
}

// info converts the common attributes, defaulting gref to the parent's.
func (p *reader) info(elem string, t xmlTopo, parentGref int) topo.Info {
	return topo.Info{
		Ref:  t.Ref,
		Name: t.Name,
		Mid:  p.optInt(elem, "mid", t.Mid, topo.NoRef),
		Aref: p.optInt(elem, "aref", t.Aref, topo.NoRef),
		Gref: p.optInt(elem, "gref", t.Gref, parentGref),
	}
}

func (p *reader) model(xm xmlModel) *topo.Model {
	elem := "MeshModelReference " + xm.Ref
	m := topo.NewModel(p.info(elem, xm.xmlTopo, topo.NoRef))

	// Model-level vertices first so nested elements can fall back to them.
	for _, xpv := range xm.ParamVerts {
		if pv := p.paramVertex(elem, xpv); pv != nil {
			m.AddParamVertex(pv)
		}
	}
	for _, xs := range append(xm.Sheets, xm.SheetRefs...) {
		p.meshSheet(m, xs)
	}
	for _, xs := range append(xm.Strings, xm.StringRefs...) {
		p.meshString(m, xs)
	}
	for _, xe := range xm.PointRefs {
		p.pointRefs(m, xe)
	}
	if p.err != nil {
		return nil
	}
	return m
}

func (p *reader) paramVertex(parent string, x xmlParamVertex) *topo.ParamVertex {
	elem := parent + ": ParamVertex"
	if x.Vref == "" {
		p.fail("%s: missing vref", elem)
		return nil
	}
	elem += " " + x.Vref
	gref := p.reqInt(elem, "gref", x.Gref)
	mid := p.optInt(elem, "mid", x.Mid, topo.NoRef)
	dim := p.reqInt(elem, "dim", x.Dim)
	if p.err != nil {
		return nil
	}
	if dim != 1 && dim != 2 {
		p.fail("%s: bad dim %d", elem, dim)
		return nil
	}
	fields := strings.Fields(x.Value)
	if len(fields) != dim {
		p.fail("%s: want %d parametric values, got %d", elem, dim, len(fields))
		return nil
	}
	uv := make([]float64, dim)
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			p.fail("%s: bad parametric value %q", elem, s)
			return nil
		}
		uv[i] = v
	}
	if dim == 1 {
		return topo.NewCurveParamVertex(x.Vref, gref, mid, uv[0])
	}
	return topo.NewParamVertex(x.Vref, gref, mid, uv[0], uv[1])
}

func (p *reader) meshSheet(m *topo.Model, xs xmlSheet) {
	elem := "MeshSheet"
	if xs.Name != "" {
		elem += " " + xs.Name
	}
	s, err := m.AddSheet(p.info(elem, xs.xmlTopo, m.Gref()))
	if err != nil {
		p.keep(err, elem)
		return
	}
	for _, xpv := range xs.ParamVerts {
		if pv := p.paramVertex(elem, xpv); pv != nil {
			s.AddParamVertex(pv)
		}
	}
	if len(xs.Faces) == 0 && len(xs.FaceRefs) == 0 {
		p.fail("%s: missing content", elem)
	}
	for _, xe := range xs.Faces {
		r := p.elems(elem+": MeshFace", xe, s.Gref())
		n := 0
		switch xe.Etype {
		case "Tri3":
			n = 3
		case "Quad4":
			n = 4
		default:
			p.fail("%s: MeshFace: bad etype %q", elem, xe.Etype)
			continue
		}
		indices := p.indices(elem+": MeshFace", r, n)
		for i := 0; i+n <= len(indices); i += n {
			p.keep(m.AddSheetFace(s, indices[i:i+n], r.info), elem)
		}
	}
	for _, xe := range xs.FaceRefs {
		r := p.elems(elem+": MeshFaceReference", xe, s.Gref())
		for _, ref := range p.refs(elem+": MeshFaceReference", r) {
			info := r.info
			info.Ref = ref
			p.keep(m.AddSheetFaceRef(s, info), elem)
		}
	}
}

func (p *reader) meshString(m *topo.Model, xs xmlString) {
	elem := "MeshString"
	if xs.Name != "" {
		elem += " " + xs.Name
	}
	s, err := m.AddString(p.info(elem, xs.xmlTopo, m.Gref()))
	if err != nil {
		p.keep(err, elem)
		return
	}
	for _, xpv := range xs.ParamVerts {
		if pv := p.paramVertex(elem, xpv); pv != nil {
			s.AddParamVertex(pv)
		}
	}
	if len(xs.Edges) == 0 && len(xs.EdgeRefs) == 0 {
		p.fail("%s: missing content", elem)
	}
	for _, xe := range xs.Edges {
		if xe.Etype != "" && xe.Etype != "Edge2" {
			p.fail("%s: MeshEdge: bad etype %q", elem, xe.Etype)
			continue
		}
		r := p.elems(elem+": MeshEdge", xe, s.Gref())
		indices := p.indices(elem+": MeshEdge", r, 2)
		for i := 0; i+2 <= len(indices); i += 2 {
			p.keep(m.AddStringEdge(s, indices[i], indices[i+1], r.info), elem)
		}
	}
	for _, xe := range xs.EdgeRefs {
		r := p.elems(elem+": MeshEdgeReference", xe, s.Gref())
		for _, ref := range p.refs(elem+": MeshEdgeReference", r) {
			info := r.info
			info.Ref = ref
			p.keep(m.AddStringEdgeRef(s, info), elem)
		}
	}
}

func (p *reader) pointRefs(m *topo.Model, xe xmlElems) {
	elem := "MeshPointReference"
	r := p.elems(elem, xe, m.Gref())
	for _, ref := range p.refs(elem, r) {
		info := r.info
		info.Ref = ref
		p.keep(m.AddPointRef(info, m.ParamVertByVref(ref)), elem+" "+ref)
	}
}

// keep records a topology error with its element context.
func (p *reader) keep(err error, elem string) {
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(err, "%s", elem)
	}
}

// run is a validated element run: count elements sharing one info.
type run struct {
	info   topo.Info
	count  int
	fields []string
}

func (p *reader) elems(elem string, xe xmlElems, parentGref int) run {
	if xe.Format != "" && xe.Format != "text" {
		p.fail("%s: unsupported format %q", elem, xe.Format)
	}
	count := p.optInt(elem, "count", xe.Count, 1)
	if count <= 0 || count > maxCount {
		p.fail("%s: bad count %d", elem, count)
		count = 0
	}
	if xe.Name != "" && count > 1 {
		p.fail("%s: name %q cannot be used with count %d", elem, xe.Name, count)
	}
	fields := strings.Fields(xe.Value)
	if len(fields) == 0 {
		p.fail("%s: missing content", elem)
	}
	return run{
		info: topo.Info{
			Name: xe.Name,
			Mid:  p.optInt(elem, "mid", xe.Mid, topo.NoRef),
			Aref: p.optInt(elem, "aref", xe.Aref, topo.NoRef),
			Gref: p.optInt(elem, "gref", xe.Gref, parentGref),
		},
		count:  count,
		fields: fields,
	}
}

// indices returns count groups of n mesh indices.
func (p *reader) indices(elem string, r run, n int) []int {
	if len(r.fields) < r.count*n {
		p.fail("%s: want %d indices, got %d", elem, r.count*n, len(r.fields))
		return nil
	}
	out := make([]int, r.count*n)
	for i := range out {
		v, err := strconv.Atoi(r.fields[i])
		if err != nil {
			p.fail("%s: bad index %q", elem, r.fields[i])
			return nil
		}
		out[i] = v
	}
	return out
}

// refs returns count mesh references.
func (p *reader) refs(elem string, r run) []string {
	if len(r.fields) < r.count {
		p.fail("%s: want %d refs, got %d", elem, r.count, len(r.fields))
		return nil
	}
	return r.fields[:r.count]
}
