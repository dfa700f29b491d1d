// Package kernel defines the abstract geometry kernel interface.
// Implementations evaluate named geometric entities (curves and surfaces):
// point projection, position and curvature at parametric coordinates.
// The container selects one registered kernel by name, so backends can be
// swapped without changing the rest of the system.
package kernel

import (
	"context"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// UV is a parametric coordinate pair. Curves use U only.
type UV struct {
	U, V float64
}

// EntityType classifies a geometric entity.
type EntityType int

const (
	EntityUnknown EntityType = iota
	EntityCurve
	EntitySurface
)

func (t EntityType) String() string {
	switch t {
	case EntityCurve:
		return "curve"
	case EntitySurface:
		return "surface"
	default:
		return "unknown"
	}
}

// Group is the view of a geometry group a kernel needs for projection.
type Group interface {
	ID() int
	EntityNames() ([]string, error)
}

// ProjectionResult is the outcome of projecting a point onto a group.
// Success is false when nothing in the group could be projected onto.
type ProjectionResult struct {
	Success       bool
	XYZ           v3.Vec
	UV            UV
	HitEntityName string
	Distance      float64
}

// CurveCurvature describes the local shape of a curve.
type CurveCurvature struct {
	XYZ             v3.Vec
	Tangent         v3.Vec
	PrincipalNormal v3.Vec // towards the center of curvature
	Binormal        v3.Vec // Tangent x PrincipalNormal
	Curvature       float64
	Linear          bool // no unique normal
}

// SurfaceCurvature describes the local shape of a surface. Positive
// curvature bends towards Normal.
type SurfaceCurvature struct {
	XYZ        v3.Vec
	DU, DV     v3.Vec
	DUU        v3.Vec
	DUV        v3.Vec
	DVV        v3.Vec
	Normal     v3.Vec
	PrincipalV v3.Vec // tangent direction of minimum curvature
	Min, Max   float64
	Avg, Gauss float64
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	Name() string

	// ImportGeometryFiles loads files as one unit. On failure the previous
	// state stays visible.
	ImportGeometryFiles(ctx context.Context, filenames []string) error

	// Evaluation
	ProjectPoint(ctx context.Context, g Group, p v3.Vec) (ProjectionResult, error)
	EvalXYZ(uv UV, entityName string) (v3.Vec, error)
	EvalRadiusOfCurvature(uv UV, entityName string) (float64, error)
	EvalCurvatureOnCurve(uv UV, entityName string) (CurveCurvature, error)
	EvalCurvatureOnSurface(uv UV, entityName string) (SurfaceCurvature, error)

	// Queries
	EntityType(entityName string) EntityType
	EntityExists(entityName string) bool

	Release() error
}

// Tessellator is implemented by kernels that can mesh their entities.
type Tessellator interface {
	EntityMesh(entityName string) (*Mesh, error)
}

// Holder is implemented by kernels that refuse Release while a container
// holds them. Containers call Hold on registration and Unhold when the
// kernel is unregistered or the container is released.
type Holder interface {
	Hold()
	Unhold()
}
