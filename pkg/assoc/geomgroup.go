package assoc

import (
	"fmt"
	"slices"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

var _ kernel.Group = (*GeometryGroup)(nil)

// GeometryGroup is a named, ordered set of geometric entity names.
type GeometryGroup struct {
	id      int
	name    string
	aref    int
	names   []string
	members []int
}

// NewGeometryGroup creates a group over entity names. An empty name
// defaults to geom_group_<id>.
func NewGeometryGroup(id int, name string, aref int, entities ...string) *GeometryGroup {
	if name == "" {
		name = fmt.Sprintf("geom_group_%d", id)
	}
	return &GeometryGroup{id: id, name: name, aref: aref, names: slices.Clone(entities)}
}

// ID returns the group id, or topo.NoRef for a nil group.
func (g *GeometryGroup) ID() int {
	if g == nil {
		return topo.NoRef
	}
	return g.id
}

func (g *GeometryGroup) Name() string { return g.name }
func (g *GeometryGroup) Aref() int    { return g.aref }

// Members returns the ids of the groups this group was composed from.
func (g *GeometryGroup) Members() []int { return slices.Clone(g.members) }

// EntityNames returns the entity names in enumeration order.
func (g *GeometryGroup) EntityNames() ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("assoc: nil geometry group: %w", mlerr.ErrInvalidHandle)
	}
	for _, n := range g.names {
		if n == "" {
			return nil, fmt.Errorf("assoc: geometry group %d has an empty entity name: %w", g.id, mlerr.ErrInternal)
		}
	}
	return slices.Clone(g.names), nil
}

func (g *GeometryGroup) addName(n string) {
	if !slices.Contains(g.names, n) {
		g.names = append(g.names, n)
	}
}

// groupIndex holds the groups of one container state.
type groupIndex struct {
	byID   map[int]*GeometryGroup
	byName map[string]*GeometryGroup
	order  []*GeometryGroup
}

func buildGroups(records []GroupRecord, attrs *attrStore, is *issues) *groupIndex {
	gi := &groupIndex{byID: make(map[int]*GeometryGroup), byName: make(map[string]*GeometryGroup)}
	recs := make(map[int]GroupRecord)
	for _, r := range records {
		g := NewGeometryGroup(r.ID, r.Name, r.Aref)
		if _, dup := gi.byID[r.ID]; dup {
			is.add(IssueDuplicateGroupID, g.name, "geometry group id %d defined twice", r.ID)
			continue
		}
		if _, dup := gi.byName[g.name]; dup {
			is.add(IssueDuplicateGroupName, g.name, "geometry group name %q defined twice", g.name)
			continue
		}
		if r.Aref != topo.NoRef && !attrs.has(r.Aref) {
			is.add(IssueUnknownAref, g.name, "geometry group %d: unknown aref %d", r.ID, r.Aref)
		}
		if r.Members == nil && len(r.Entities) == 0 {
			is.add(IssueEmptyEntityName, g.name, "geometry reference %d names no entity", r.ID)
		}
		for _, e := range r.Entities {
			if e == "" {
				is.add(IssueEmptyEntityName, g.name, "geometry group %d has an empty entity name", r.ID)
			}
		}
		recs[r.ID] = r
		gi.byID[r.ID] = g
		gi.byName[g.name] = g
		gi.order = append(gi.order, g)
	}

	done := make(map[int]bool)
	var fill func(id int, visiting map[int]bool)
	fill = func(id int, visiting map[int]bool) {
		if done[id] {
			return
		}
		g, r := gi.byID[id], recs[id]
		if visiting[id] {
			is.add(IssueGroupCycle, g.name, "geometry group %d contains itself", id)
			return
		}
		visiting[id] = true
		defer delete(visiting, id)
		for _, e := range r.Entities {
			g.addName(e)
		}
		for _, mid := range r.Members {
			m, ok := gi.byID[mid]
			if !ok {
				is.add(IssueGroupMember, g.name, "geometry group %d: unknown member group %d", id, mid)
				continue
			}
			fill(mid, visiting)
			g.members = append(g.members, mid)
			for _, n := range m.names {
				g.addName(n)
			}
		}
		done[id] = true
	}
	for _, g := range gi.order {
		fill(g.id, map[int]bool{})
	}
	return gi
}
