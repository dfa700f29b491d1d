package geom

import (
	"fmt"

	"github.com/chazu/meshlink/pkg/mlerr"
)

// Library is an ordered set of entities with unique names.
type Library struct {
	order  []Entity
	byName map[string]Entity
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{byName: make(map[string]Entity)}
}

// Add appends e. A duplicate name is an error.
func (l *Library) Add(e Entity) error {
	if e.Name() == "" {
		return fmt.Errorf("geom: entity has no name: %w", mlerr.ErrGeometryLoad)
	}
	if _, ok := l.byName[e.Name()]; ok {
		return fmt.Errorf("geom: duplicate entity %q: %w", e.Name(), mlerr.ErrGeometryLoad)
	}
	l.order = append(l.order, e)
	l.byName[e.Name()] = e
	return nil
}

// Merge adds every entity of other, stopping at the first duplicate.
func (l *Library) Merge(other *Library) error {
	for _, e := range other.order {
		if err := l.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the named entity, or nil.
func (l *Library) Get(name string) Entity { return l.byName[name] }

// Entities returns the entities in insertion order.
func (l *Library) Entities() []Entity { return append([]Entity(nil), l.order...) }

// Names returns entity names in insertion order.
func (l *Library) Names() []string {
	names := make([]string, len(l.order))
	for i, e := range l.order {
		names[i] = e.Name()
	}
	return names
}

func (l *Library) Len() int { return len(l.order) }
