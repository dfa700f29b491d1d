// Package analytic implements kernel.Kernel over closed-form geometry
// loaded from .mlg geometry scripts.
package analytic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chazu/meshlink/pkg/engine"
	"github.com/chazu/meshlink/pkg/geom"
	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/kernel/sdfx"
	"github.com/chazu/meshlink/pkg/mlerr"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel      = (*Kernel)(nil)
	_ kernel.Tessellator = (*Kernel)(nil)
	_ kernel.Holder      = (*Kernel)(nil)
)

// Name is the default registry name of the analytic kernel.
const Name = "analytic"

// DefaultParallelThreshold is the group size at which projection fans out.
const DefaultParallelThreshold = 64

const tracerName = "pkg/kernel/analytic"

// Kernel evaluates analytic geometry entities.
type Kernel struct {
	mu       sync.RWMutex
	name     string
	lib      *geom.Library
	released bool
	holds    int

	parallelThreshold int
	mesher            *sdfx.Mesher
	logger            *slog.Logger
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithName sets the registry name. The default is Name.
func WithName(name string) Option {
	return func(k *Kernel) { k.name = name }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

// WithParallelThreshold sets the group size at which projection runs
// concurrently. Non-positive values disable concurrency.
func WithParallelThreshold(n int) Option {
	return func(k *Kernel) { k.parallelThreshold = n }
}

// WithMeshCells sets the marching cubes resolution used by EntityMesh.
func WithMeshCells(n int) Option {
	return func(k *Kernel) { k.mesher = sdfx.New(n) }
}

// New returns an empty kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		name:              Name,
		lib:               geom.NewLibrary(),
		parallelThreshold: DefaultParallelThreshold,
		mesher:            sdfx.New(0),
	}
	for _, o := range opts {
		o(k)
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	return k
}

// NewFromLibrary returns a kernel serving the entities of lib.
func NewFromLibrary(lib *geom.Library, opts ...Option) *Kernel {
	k := New(opts...)
	k.lib = lib
	return k
}

func (k *Kernel) Name() string { return k.name }

// ImportGeometryFiles evaluates each script and replaces the kernel's
// entities with their union. Nothing changes unless every file loads.
func (k *Kernel) ImportGeometryFiles(ctx context.Context, filenames []string) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analytic.ImportGeometryFiles")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	span.SetAttributes(attribute.Int("files", len(filenames)))

	if err := k.checkLive(); err != nil {
		return err
	}

	lib := geom.NewLibrary()
	for _, name := range filenames {
		if err := ctx.Err(); err != nil {
			return err
		}
		fileLib, err := loadScript(name)
		if err != nil {
			return err
		}
		if err := lib.Merge(fileLib); err != nil {
			return &mlerr.GeometryLoadError{Filename: name, Err: err}
		}
		k.logger.Debug("geometry file loaded", "file", name, "entities", fileLib.Len())
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return fmt.Errorf("analytic: import: kernel released: %w", mlerr.ErrInvalidState)
	}
	k.lib = lib
	k.logger.Info("geometry imported", "files", len(filenames), "entities", lib.Len())
	return nil
}

func loadScript(filename string) (*geom.Library, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, &mlerr.GeometryLoadError{Filename: filename, Err: err}
	}
	lib, evalErrs, err := engine.NewEngine().Evaluate(string(src))
	if err != nil {
		return nil, &mlerr.GeometryLoadError{Filename: filename, Err: err}
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = e
		}
		return nil, &mlerr.GeometryLoadError{Filename: filename, Err: errors.Join(errs...)}
	}
	return lib, nil
}

func (k *Kernel) checkLive() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.released {
		return fmt.Errorf("analytic: kernel released: %w", mlerr.ErrInvalidState)
	}
	return nil
}

// entity returns the named entity under the read lock.
func (k *Kernel) entity(name string) (geom.Entity, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.released {
		return nil, fmt.Errorf("analytic: kernel released: %w", mlerr.ErrInvalidState)
	}
	e := k.lib.Get(name)
	if e == nil {
		return nil, fmt.Errorf("analytic: entity %q: %w", name, mlerr.ErrNotFound)
	}
	return e, nil
}

func (k *Kernel) EvalXYZ(uv kernel.UV, entityName string) (v3.Vec, error) {
	e, err := k.entity(entityName)
	if err != nil {
		return v3.Vec{}, err
	}
	return e.Eval(uv)
}

func (k *Kernel) EvalRadiusOfCurvature(uv kernel.UV, entityName string) (float64, error) {
	e, err := k.entity(entityName)
	if err != nil {
		return 0, err
	}
	return geom.RadiusOfCurvature(e, uv)
}

func (k *Kernel) EvalCurvatureOnCurve(uv kernel.UV, entityName string) (kernel.CurveCurvature, error) {
	e, err := k.entity(entityName)
	if err != nil {
		return kernel.CurveCurvature{}, err
	}
	c, ok := e.(geom.Curve)
	if !ok {
		return kernel.CurveCurvature{}, fmt.Errorf("analytic: %q is a %s, not a curve: %w", entityName, e.Type(), mlerr.ErrInvalidHandle)
	}
	return c.CurveCurvature(uv)
}

func (k *Kernel) EvalCurvatureOnSurface(uv kernel.UV, entityName string) (kernel.SurfaceCurvature, error) {
	e, err := k.entity(entityName)
	if err != nil {
		return kernel.SurfaceCurvature{}, err
	}
	s, ok := e.(geom.Surface)
	if !ok {
		return kernel.SurfaceCurvature{}, fmt.Errorf("analytic: %q is a %s, not a surface: %w", entityName, e.Type(), mlerr.ErrInvalidHandle)
	}
	return s.SurfaceCurvature(uv)
}

func (k *Kernel) EntityType(entityName string) kernel.EntityType {
	e, err := k.entity(entityName)
	if err != nil {
		return kernel.EntityUnknown
	}
	return e.Type()
}

func (k *Kernel) EntityExists(entityName string) bool {
	_, err := k.entity(entityName)
	return err == nil
}

// EntityNames lists the loaded entities in load order.
func (k *Kernel) EntityNames() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.released {
		return nil
	}
	return k.lib.Names()
}

// EntityMesh tessellates the named entity.
func (k *Kernel) EntityMesh(entityName string) (*kernel.Mesh, error) {
	e, err := k.entity(entityName)
	if err != nil {
		return nil, err
	}
	return k.mesher.EntityMesh(e)
}

// Hold marks the kernel as registered with a container.
func (k *Kernel) Hold() {
	k.mu.Lock()
	k.holds++
	k.mu.Unlock()
}

// Unhold reverses one Hold.
func (k *Kernel) Unhold() {
	k.mu.Lock()
	if k.holds > 0 {
		k.holds--
	}
	k.mu.Unlock()
}

// Release drops the loaded entities. Releasing a kernel a container still
// holds, or releasing twice, is ErrInvalidState.
func (k *Kernel) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return fmt.Errorf("analytic: release %q: already released: %w", k.name, mlerr.ErrInvalidState)
	}
	if k.holds > 0 {
		return fmt.Errorf("analytic: release %q: held by %d container(s): %w", k.name, k.holds, mlerr.ErrInvalidState)
	}
	k.released = true
	k.lib = geom.NewLibrary()
	return nil
}
