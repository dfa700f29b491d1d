// Package tessellate produces triangle meshes for the geometry a mesh
// model is associated with. One mesh is produced per geometric entity.
package tessellate

import (
	"fmt"

	"github.com/chazu/meshlink/pkg/assoc"
	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

// GroupResolver maps a gref to its geometry group. *assoc.Container
// implements it.
type GroupResolver interface {
	GeometryGroupByID(gid int) *assoc.GeometryGroup
}

// visited tracks grefs and entity names already collected so shared
// geometry is meshed once.
type visited struct {
	grefs map[int]bool
	names map[string]bool
	order []string
}

func newVisited() *visited {
	return &visited{grefs: make(map[int]bool), names: make(map[string]bool)}
}

func (v *visited) addGroup(r GroupResolver, gref int) error {
	if gref == topo.NoRef || v.grefs[gref] {
		return nil
	}
	v.grefs[gref] = true
	g := r.GeometryGroupByID(gref)
	if g == nil {
		return fmt.Errorf("gref %d unresolved: %w", gref, mlerr.ErrMissingAssociation)
	}
	names, err := g.EntityNames()
	if err != nil {
		return err
	}
	for _, n := range names {
		if !v.names[n] {
			v.names[n] = true
			v.order = append(v.order, n)
		}
	}
	return nil
}

// EntityNames returns the geometric entities m is associated with: those
// of the model, then of each sheet, then of each string, in order and
// without repeats.
func EntityNames(m *topo.Model, r GroupResolver) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	v := newVisited()
	if err := v.addGroup(r, m.Gref()); err != nil {
		return nil, fmt.Errorf("tessellate: model %q: %w", m.Name(), err)
	}
	for _, s := range m.Sheets() {
		if err := v.addGroup(r, s.Gref()); err != nil {
			return nil, fmt.Errorf("tessellate: sheet %q: %w", s.Name(), err)
		}
	}
	for _, s := range m.Strings() {
		if err := v.addGroup(r, s.Gref()); err != nil {
			return nil, fmt.Errorf("tessellate: string %q: %w", s.Name(), err)
		}
	}
	return v.order, nil
}

// Tessellate meshes every geometric entity m is associated with through
// t. The model is only read.
func Tessellate(m *topo.Model, r GroupResolver, t kernel.Tessellator) ([]*kernel.Mesh, error) {
	if t == nil {
		return nil, fmt.Errorf("tessellate: kernel cannot tessellate: %w", mlerr.ErrConfig)
	}
	names, err := EntityNames(m, r)
	if err != nil {
		return nil, err
	}
	meshes := make([]*kernel.Mesh, 0, len(names))
	for _, n := range names {
		mesh, err := t.EntityMesh(n)
		if err != nil {
			return nil, fmt.Errorf("tessellate: entity %q: %w", n, err)
		}
		if mesh.PartName == "" {
			mesh.PartName = n
		}
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// ActiveKernel meshes m through the active kernel of c, which must
// implement kernel.Tessellator.
func ActiveKernel(c *assoc.Container, m *topo.Model) ([]*kernel.Mesh, error) {
	k, err := c.ActiveKernel()
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	t, ok := k.(kernel.Tessellator)
	if !ok {
		return nil, fmt.Errorf("tessellate: kernel %q cannot tessellate: %w", k.Name(), mlerr.ErrConfig)
	}
	return Tessellate(m, c, t)
}
