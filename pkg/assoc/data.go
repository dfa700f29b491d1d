package assoc

import "github.com/chazu/meshlink/pkg/topo"

// Attribute is a named value. A group attribute's Value is a
// whitespace-separated list of other attribute IDs.
type Attribute struct {
	ID    int
	Name  string
	Value string
	Group bool
}

// GroupRecord defines a geometry group. A geometry reference lists its
// entity directly in Entities; a composite group lists other group IDs in
// Members and takes the union of their entity names.
type GroupRecord struct {
	ID       int
	Name     string
	Aref     int
	Entities []string
	Members  []int
}

// FileRef is a geometry or mesh file named by the associativity data.
// Path is Filename resolved against LoadData.BaseDir and is filled in by
// the container.
type FileRef struct {
	Filename string
	Aref     int
	Path     string

	// GroupIDs lists the geometry references defined in a geometry file.
	GroupIDs []int
	// ModelRefs lists the mesh models a mesh file holds, by ref.
	ModelRefs []string
}

// LoadData is one bulk load of associativity records.
type LoadData struct {
	// BaseDir resolves relative file names. Empty means the working directory.
	BaseDir string

	Attributes    []Attribute
	Groups        []GroupRecord
	GeometryFiles []FileRef
	MeshFiles     []FileRef
	Models        []*topo.Model
}
