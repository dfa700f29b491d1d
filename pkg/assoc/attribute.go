package assoc

import (
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/meshlink/pkg/topo"
)

// attrStore indexes attributes and holds group expansions.
type attrStore struct {
	byID     map[int]Attribute
	order    []int
	expanded map[int][]int // group id -> sorted non-group member ids
}

func buildAttributes(records []Attribute, is *issues) *attrStore {
	st := &attrStore{byID: make(map[int]Attribute), expanded: make(map[int][]int)}
	for _, a := range records {
		if _, dup := st.byID[a.ID]; dup {
			is.add(IssueDuplicateAttribute, a.Name, "attribute id %d defined twice", a.ID)
			continue
		}
		st.byID[a.ID] = a
		st.order = append(st.order, a.ID)
	}
	for _, id := range st.order {
		if st.byID[id].Group {
			st.expand(id, map[int]bool{}, is)
		}
	}
	return st
}

// expand resolves group id recursively, memoizing the result.
func (st *attrStore) expand(id int, visiting map[int]bool, is *issues) []int {
	if ids, ok := st.expanded[id]; ok {
		return ids
	}
	a := st.byID[id]
	if visiting[id] {
		is.add(IssueAttributeCycle, a.Name, "attribute group %d contains itself", id)
		return nil
	}
	visiting[id] = true
	defer delete(visiting, id)

	var ids []int
	for _, field := range strings.Fields(a.Value) {
		mid, err := strconv.Atoi(field)
		if err != nil {
			is.add(IssueAttributeMember, a.Name, "attribute group %d: invalid member %q", id, field)
			continue
		}
		m, ok := st.byID[mid]
		if !ok {
			is.add(IssueAttributeMember, a.Name, "attribute group %d: unknown member %d", id, mid)
			continue
		}
		if m.Group {
			ids = append(ids, st.expand(mid, visiting, is)...)
		} else {
			ids = append(ids, mid)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	st.expanded[id] = ids
	return ids
}

func (st *attrStore) has(id int) bool {
	_, ok := st.byID[id]
	return ok
}

// ids returns the non-group attribute ids aref stands for.
func (st *attrStore) ids(aref int) []int {
	a, ok := st.byID[aref]
	if !ok {
		return nil
	}
	if a.Group {
		return slices.Clone(st.expanded[aref])
	}
	return []int{aref}
}

// resolve maps aref to name/value pairs. Later ids win on name collisions.
func (st *attrStore) resolve(aref int) map[string]string {
	ids := st.ids(aref)
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		a := st.byID[id]
		out[a.Name] = a.Value
	}
	return out
}

// attributeSetter is implemented by every topology entity.
type attributeSetter interface {
	SetAttributes(map[string]string)
}

func (st *attrStore) apply(e topo.Entity) {
	if s, ok := e.(attributeSetter); ok && e.Aref() != topo.NoRef {
		s.SetAttributes(st.resolve(e.Aref()))
	}
}
