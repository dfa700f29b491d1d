package parser

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/meshlink/pkg/assoc"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

// Namespace is written on the MeshLink root element.
const Namespace = "http://www.pointwise.com/MeshLink"

// orphanMeshFile names the mesh file that holds models no mesh file lists.
const orphanMeshFile = "meshlink_models"

// WriteFile serializes c to path.
func WriteFile(path string, c *assoc.Container) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return Write(f, c)
}

// Write serializes the contents of c as a MeshLink document. Reading the
// result back yields the same attributes, groups, files and topology.
func Write(w io.Writer, c *assoc.Container) error {
	if c == nil {
		return errors.Wrap(mlerr.ErrInvalidHandle, "write: nil container")
	}
	if c.Released() {
		return errors.Wrap(mlerr.ErrInvalidState, "write: container released")
	}
	doc, err := document(c)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode MeshLink")
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return errors.Wrap(err, "write trailer")
	}
	return nil
}

func document(c *assoc.Container) (*xmlDoc, error) {
	doc := &xmlDoc{Version: "1.0", Xmlns: Namespace}
	for _, a := range c.Attributes() {
		xa := xmlAttribute{AttID: strconv.Itoa(a.ID), Name: a.Name, Value: a.Value}
		if a.Group {
			doc.AttrGroups = append(doc.AttrGroups, xa)
		} else {
			doc.Attributes = append(doc.Attributes, xa)
		}
	}

	files := c.GeometryFiles()
	placed := make(map[int]bool)
	for _, f := range files {
		xf := xmlGeometryFile{Filename: f.Filename, Aref: optRef(f.Aref)}
		for _, gid := range f.GroupIDs {
			if g := c.GeometryGroupByID(gid); g != nil {
				xf.References = append(xf.References, geometryRef(g))
				placed[gid] = true
			}
		}
		doc.GeometryFiles = append(doc.GeometryFiles, xf)
	}
	for _, g := range c.GeometryGroups() {
		if len(g.Members()) > 0 {
			doc.GeometryGroups = append(doc.GeometryGroups, geometryGroup(g))
			continue
		}
		if placed[g.ID()] {
			continue
		}
		if len(doc.GeometryFiles) == 0 {
			return nil, errors.Wrapf(mlerr.ErrInvalidState, "write: geometry reference %d has no geometry file", g.ID())
		}
		doc.GeometryFiles[0].References = append(doc.GeometryFiles[0].References, geometryRef(g))
	}

	written := make(map[string]bool)
	for _, f := range c.MeshFiles() {
		xf := xmlMeshFile{Filename: f.Filename, Aref: optRef(f.Aref)}
		for _, ref := range f.ModelRefs {
			if m := c.ModelByRef(ref); m != nil && !written[ref] {
				xf.Models = append(xf.Models, model(m))
				written[ref] = true
			}
		}
		doc.MeshFiles = append(doc.MeshFiles, xf)
	}
	var orphans []xmlModel
	for _, m := range c.Models() {
		if !written[m.Ref()] {
			orphans = append(orphans, model(m))
		}
	}
	if len(orphans) > 0 {
		if len(doc.MeshFiles) == 0 {
			doc.MeshFiles = append(doc.MeshFiles, xmlMeshFile{Filename: orphanMeshFile})
		}
		last := &doc.MeshFiles[len(doc.MeshFiles)-1]
		last.Models = append(last.Models, orphans...)
	}
	return doc, nil
}

func optRef(v int) string {
	if v == topo.NoRef {
		return ""
	}
	return strconv.Itoa(v)
}

func geometryRef(g *assoc.GeometryGroup) xmlGeometryRef {
	names, _ := g.EntityNames()
	r := xmlGeometryRef{GID: strconv.Itoa(g.ID()), Aref: optRef(g.Aref())}
	if len(names) > 0 {
		r.Ref = names[0]
	}
	if g.Name() != r.Ref {
		r.Name = g.Name()
	}
	return r
}

func geometryGroup(g *assoc.GeometryGroup) xmlGeometryGroup {
	ids := make([]string, 0, len(g.Members()))
	for _, id := range g.Members() {
		ids = append(ids, strconv.Itoa(id))
	}
	return xmlGeometryGroup{
		GID:     strconv.Itoa(g.ID()),
		Name:    g.Name(),
		Aref:    optRef(g.Aref()),
		Members: strings.Join(ids, " "),
	}
}

func topoAttrs(e topo.Entity) xmlTopo {
	return xmlTopo{
		Ref:  e.Ref(),
		Name: e.Name(),
		Mid:  optRef(e.ID()),
		Aref: optRef(e.Aref()),
		Gref: optRef(e.Gref()),
	}
}

func paramVerts(pvs []*topo.ParamVertex) []xmlParamVertex {
	out := make([]xmlParamVertex, 0, len(pvs))
	for _, pv := range pvs {
		u, v := pv.UV()
		vals := []string{formatFloat(u)}
		if pv.Dim() == 2 {
			vals = append(vals, formatFloat(v))
		}
		out = append(out, xmlParamVertex{
			Vref:  pv.Vref(),
			Gref:  strconv.Itoa(pv.Gref()),
			Mid:   optRef(pv.ID()),
			Dim:   strconv.Itoa(pv.Dim()),
			Value: strings.Join(vals, " "),
		})
	}
	return out
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// elem writes one element or reference. Elements carry their own gref so
// the document does not depend on parent defaults.
func elem(e topo.Entity, etype string, indices []int) xmlElems {
	x := xmlElems{
		Etype: etype,
		Mid:   optRef(e.ID()),
		Aref:  optRef(e.Aref()),
		Gref:  optRef(e.Gref()),
		Name:  e.Name(),
	}
	if len(indices) == 0 {
		x.Value = e.Ref()
		return x
	}
	s := make([]string, len(indices))
	for i, idx := range indices {
		s[i] = strconv.Itoa(idx)
	}
	x.Value = strings.Join(s, " ")
	return x
}

func model(m *topo.Model) xmlModel {
	xm := xmlModel{xmlTopo: topoAttrs(m), ParamVerts: paramVerts(m.ParamVerts())}
	for _, p := range m.Points() {
		x := elem(p, "", nil)
		if x.Value == "" {
			if idx, ok := p.Index(); ok {
				x.Value = strconv.Itoa(idx)
			}
		}
		xm.PointRefs = append(xm.PointRefs, x)
	}
	for _, s := range m.Sheets() {
		xs := xmlSheet{xmlTopo: topoAttrs(s), ParamVerts: paramVerts(s.ParamVerts())}
		for _, f := range s.Faces() {
			idx := f.Indices()
			switch len(idx) {
			case 0:
				xs.FaceRefs = append(xs.FaceRefs, elem(f, "", nil))
			case 3:
				xs.Faces = append(xs.Faces, elem(f, "Tri3", idx))
			default:
				xs.Faces = append(xs.Faces, elem(f, "Quad4", idx))
			}
		}
		xm.Sheets = append(xm.Sheets, xs)
	}
	for _, s := range m.Strings() {
		xs := xmlString{xmlTopo: topoAttrs(s), ParamVerts: paramVerts(s.ParamVerts())}
		for _, e := range s.Edges() {
			if idx := e.Indices(); len(idx) > 0 {
				xs.Edges = append(xs.Edges, elem(e, "Edge2", idx))
			} else {
				xs.EdgeRefs = append(xs.EdgeRefs, elem(e, "", nil))
			}
		}
		xm.Strings = append(xm.Strings, xs)
	}
	return xm
}
