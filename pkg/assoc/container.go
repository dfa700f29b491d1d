// Package assoc implements the mesh associativity container. It owns the
// topology models, attributes, geometry groups and file lists of one
// MeshLink description and links topology to geometry through a
// registered geometry kernel.
//
// The container follows a single-writer, many-reader discipline: Load,
// Release and kernel registration take the write lock, queries take the
// read lock.
package assoc

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

// state is everything one successful load produced. Load builds a new
// state from the accumulated records and swaps it in whole.
type state struct {
	attrRecords  []Attribute
	groupRecords []GroupRecord

	attrs  *attrStore
	groups *groupIndex

	models       []*topo.Model
	modelsByName map[string]*topo.Model

	geometryFiles []FileRef
	meshFiles     []FileRef
}

func emptyState() *state {
	return &state{
		attrs:        &attrStore{byID: map[int]Attribute{}, expanded: map[int][]int{}},
		groups:       &groupIndex{byID: map[int]*GeometryGroup{}, byName: map[string]*GeometryGroup{}},
		modelsByName: map[string]*topo.Model{},
	}
}

// Container is the mesh associativity container.
type Container struct {
	mu       sync.RWMutex
	st       *state
	released bool

	kernels     map[string]kernel.Kernel
	kernelOrder []string
	active      string

	logger *slog.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// New returns an empty container.
func New(opts ...Option) *Container {
	c := &Container{st: emptyState(), kernels: make(map[string]kernel.Kernel)}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Load adds data to the container. The merged result is validated as a
// whole; on any issue a *LoadError is returned and the container is left
// exactly as it was.
func (c *Container) Load(data LoadData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("assoc: load: container released: %w", mlerr.ErrInvalidState)
	}

	next, is := build(c.st, data)
	if len(is) > 0 {
		c.logger.Warn("load rejected", "issues", len(is))
		return &LoadError{Issues: is}
	}
	for _, m := range next.models {
		for _, e := range m.Entities() {
			next.attrs.apply(e)
		}
	}
	c.st = next
	c.logger.Info("loaded",
		"models", len(next.models),
		"attributes", len(next.attrs.order),
		"groups", len(next.groups.order),
		"geometry_files", len(next.geometryFiles))
	return nil
}

func build(prev *state, data LoadData) (*state, issues) {
	var is issues
	next := &state{
		attrRecords:   append(slices.Clone(prev.attrRecords), data.Attributes...),
		groupRecords:  append(slices.Clone(prev.groupRecords), data.Groups...),
		models:        slices.Clone(prev.models),
		modelsByName:  make(map[string]*topo.Model, len(prev.models)+len(data.Models)),
		geometryFiles: slices.Clone(prev.geometryFiles),
		meshFiles:     slices.Clone(prev.meshFiles),
	}
	next.attrs = buildAttributes(next.attrRecords, &is)
	next.groups = buildGroups(next.groupRecords, next.attrs, &is)

	for _, m := range prev.models {
		next.modelsByName[m.Name()] = m
	}
	for _, m := range data.Models {
		if m == nil {
			is.add(IssueNilModel, "", "nil model")
			continue
		}
		if _, dup := next.modelsByName[m.Name()]; dup {
			is.add(IssueDuplicateModel, m.Name(), "model name defined twice")
			continue
		}
		next.modelsByName[m.Name()] = m
		next.models = append(next.models, m)
	}
	for _, m := range next.models {
		checkModel(m, next, &is)
	}

	for _, files := range []struct {
		in  []FileRef
		out *[]FileRef
	}{{data.GeometryFiles, &next.geometryFiles}, {data.MeshFiles, &next.meshFiles}} {
		for _, f := range files.in {
			if f.Aref != topo.NoRef && !next.attrs.has(f.Aref) {
				is.add(IssueUnknownAref, f.Filename, "file: unknown aref %d", f.Aref)
			}
			f.Path = resolvePath(data.BaseDir, f.Filename)
			f.GroupIDs = slices.Clone(f.GroupIDs)
			f.ModelRefs = slices.Clone(f.ModelRefs)
			*files.out = append(*files.out, f)
		}
	}
	checkFiles(next, &is)
	return next, is
}

// checkFiles verifies the groups and models each file lists.
func checkFiles(st *state, is *issues) {
	refs := make(map[string]bool, len(st.models))
	for _, m := range st.models {
		refs[m.Ref()] = true
	}
	for _, f := range st.geometryFiles {
		for _, gid := range f.GroupIDs {
			if st.groups.byID[gid] == nil {
				is.add(IssueUnknownGref, f.Filename, "geometry file lists unknown group %d", gid)
			}
		}
	}
	for _, f := range st.meshFiles {
		for _, ref := range f.ModelRefs {
			if !refs[ref] {
				is.add(IssueUnknownModelRef, f.Filename, "mesh file lists unknown model %q", ref)
			}
		}
	}
}

func resolvePath(base, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	p := filepath.Join(base, name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// checkModel verifies every gref and aref in m resolves.
func checkModel(m *topo.Model, st *state, is *issues) {
	for _, e := range m.Entities() {
		label := fmt.Sprintf("%s %s/%s", e.Kind(), m.Name(), e.Name())
		if e.HasGref() && st.groups.byID[e.Gref()] == nil {
			is.add(IssueUnknownGref, label, "unknown gref %d", e.Gref())
		}
		if a := e.Aref(); a != topo.NoRef && !st.attrs.has(a) {
			is.add(IssueUnknownAref, label, "unknown aref %d", a)
		}
		for _, pv := range e.ParamVerts() {
			if g := pv.Gref(); g != topo.NoRef && st.groups.byID[g] == nil {
				is.add(IssueUnknownGref, label, "parametric vertex %s: unknown gref %d", pv.Vref(), g)
			}
		}
	}
}

// Release drops all owned data. Registered kernels are not released; they
// belong to the caller.
func (c *Container) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("assoc: release: already released: %w", mlerr.ErrInvalidState)
	}
	c.released = true
	c.st = emptyState()
	for _, k := range c.kernels {
		unhold(k)
	}
	c.kernels = map[string]kernel.Kernel{}
	c.kernelOrder = nil
	c.active = ""
	return nil
}

// Released reports whether Release has been called.
func (c *Container) Released() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.released
}

// read returns the current state under the read lock.
func (c *Container) read() *state {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st
}

// ---------------------------------------------------------------------------
// Models and topology
// ---------------------------------------------------------------------------

// FindModelByName returns the named model, or nil.
func (c *Container) FindModelByName(name string) *topo.Model {
	return c.read().modelsByName[name]
}

// ModelByID returns the model with the given mid, or nil.
func (c *Container) ModelByID(mid int) *topo.Model {
	for _, m := range c.read().models {
		if m.ID() == mid && mid != topo.NoRef {
			return m
		}
	}
	return nil
}

// ModelByRef returns the model with the given ref, or nil.
func (c *Container) ModelByRef(ref string) *topo.Model {
	for _, m := range c.read().models {
		if m.Ref() == ref && ref != "" {
			return m
		}
	}
	return nil
}

// Models returns the models in load order.
func (c *Container) Models() []*topo.Model {
	return slices.Clone(c.read().models)
}

// FindLowestTopoPointByIndex searches string edge-points, then sheet
// face-edge-points, then model points.
func (c *Container) FindLowestTopoPointByIndex(m *topo.Model, index int) *topo.Point {
	if m == nil || c.Released() {
		return nil
	}
	return m.FindLowestTopoPointByIndex(index)
}

// FindHighestTopoPointByIndex searches model points, then face-edge-points,
// then edge-points.
func (c *Container) FindHighestTopoPointByIndex(m *topo.Model, index int) *topo.Point {
	if m == nil || c.Released() {
		return nil
	}
	return m.FindHighestTopoPointByIndex(index)
}

// FindLowestTopoEdgeByIndices matches string edges, then sheet face-edges,
// regardless of index order.
func (c *Container) FindLowestTopoEdgeByIndices(m *topo.Model, indices ...int) *topo.Edge {
	if m == nil || c.Released() {
		return nil
	}
	return m.FindLowestTopoEdgeByIndices(indices...)
}

// FindLowestTopoFaceByIndices matches sheet faces regardless of index order.
func (c *Container) FindLowestTopoFaceByIndices(m *topo.Model, indices ...int) *topo.Face {
	if m == nil || c.Released() {
		return nil
	}
	return m.FindLowestTopoFaceByIndices(indices...)
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

// GetAttribute returns the name and value of attribute id.
func (c *Container) GetAttribute(id int) (name, value string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.released {
		return "", "", fmt.Errorf("assoc: attribute %d: container released: %w", id, mlerr.ErrInvalidState)
	}
	a, ok := c.st.attrs.byID[id]
	if !ok {
		return "", "", fmt.Errorf("assoc: attribute %d: %w", id, mlerr.ErrNotFound)
	}
	if a.Group {
		return "", "", fmt.Errorf("assoc: attribute %d is a group: %w", id, mlerr.ErrNotFound)
	}
	return a.Name, a.Value, nil
}

// AttributeIDs returns the non-group attribute ids aref stands for,
// expanding groups. Unknown arefs yield nil.
func (c *Container) AttributeIDs(aref int) []int {
	return c.read().attrs.ids(aref)
}

// EntityAttributes resolves the attributes of any topology entity.
func (c *Container) EntityAttributes(e topo.Entity) map[string]string {
	if e == nil {
		return nil
	}
	return c.read().attrs.resolve(e.Aref())
}

// Attributes returns all attribute records in load order.
func (c *Container) Attributes() []Attribute {
	st := c.read()
	out := make([]Attribute, len(st.attrs.order))
	for i, id := range st.attrs.order {
		out[i] = st.attrs.byID[id]
	}
	return out
}

// ---------------------------------------------------------------------------
// Geometry groups and files
// ---------------------------------------------------------------------------

// GeometryGroupByID returns the group, or nil.
func (c *Container) GeometryGroupByID(gid int) *GeometryGroup {
	return c.read().groups.byID[gid]
}

// GeometryGroupByName returns the group, or nil.
func (c *Container) GeometryGroupByName(name string) *GeometryGroup {
	return c.read().groups.byName[name]
}

// GeometryGroups returns the groups in load order.
func (c *Container) GeometryGroups() []*GeometryGroup {
	return slices.Clone(c.read().groups.order)
}

// EntityNames returns the entity names of g.
func (c *Container) EntityNames(g *GeometryGroup) ([]string, error) {
	if c.Released() {
		return nil, fmt.Errorf("assoc: entity names: container released: %w", mlerr.ErrInvalidState)
	}
	return g.EntityNames()
}

// GeometryFiles returns the geometry files in load order.
func (c *Container) GeometryFiles() []FileRef { return slices.Clone(c.read().geometryFiles) }

// MeshFiles returns the mesh files in load order.
func (c *Container) MeshFiles() []FileRef { return slices.Clone(c.read().meshFiles) }

// groupFor resolves the gref of e.
func (c *Container) groupFor(e topo.Entity) (*GeometryGroup, error) {
	if e == nil {
		return nil, fmt.Errorf("assoc: nil entity: %w", mlerr.ErrInvalidHandle)
	}
	if !e.HasGref() {
		return nil, fmt.Errorf("assoc: %s %q has no gref: %w", e.Kind(), e.Name(), mlerr.ErrMissingAssociation)
	}
	g := c.GeometryGroupByID(e.Gref())
	if g == nil {
		return nil, fmt.Errorf("assoc: %s %q: gref %d unresolved: %w",
			e.Kind(), e.Name(), e.Gref(), mlerr.ErrMissingAssociation)
	}
	return g, nil
}
