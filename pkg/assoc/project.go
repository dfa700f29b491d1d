package assoc

import (
	"context"
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

// Evaluation is a projection together with the position and radius of
// curvature evaluated at the projected parameters.
type Evaluation struct {
	Projection kernel.ProjectionResult
	XYZ        v3.Vec
	Radius     float64
	// RadiusErr is set when the curvature is undefined at the hit, for
	// instance on a line or plane.
	RadiusErr error
}

// ProjectToTopoGeometry projects p onto the geometry group associated
// with e through the active kernel.
func (c *Container) ProjectToTopoGeometry(ctx context.Context, e topo.Entity, p v3.Vec) (res kernel.ProjectionResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "assoc.ProjectToTopoGeometry")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	res, _, err = c.project(ctx, e, p)
	return res, err
}

// project returns the projection together with the kernel that produced
// it, so evaluation uses the same kernel even if the active one changes.
func (c *Container) project(ctx context.Context, e topo.Entity, p v3.Vec) (kernel.ProjectionResult, kernel.Kernel, error) {
	var res kernel.ProjectionResult
	g, err := c.groupFor(e)
	if err != nil {
		return res, nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("entity", e.Name()), attribute.Int("gref", g.ID()))
	k, err := c.ActiveKernel()
	if err != nil {
		return res, nil, err
	}
	res, err = k.ProjectPoint(ctx, g, p)
	if err != nil {
		return res, nil, fmt.Errorf("assoc: project %s %q: %w", e.Kind(), e.Name(), err)
	}
	return res, k, nil
}

// TopoGeometryEval projects p like ProjectToTopoGeometry and evaluates
// the hit entity at the projected parameters. A projection without a hit
// is returned as is.
func (c *Container) TopoGeometryEval(ctx context.Context, e topo.Entity, p v3.Vec) (ev Evaluation, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "assoc.TopoGeometryEval")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	res, k, err := c.project(ctx, e, p)
	if err != nil {
		return Evaluation{}, err
	}
	ev = Evaluation{Projection: res}
	if !res.Success {
		return ev, nil
	}
	if ev.XYZ, err = k.EvalXYZ(res.UV, res.HitEntityName); err != nil {
		return ev, fmt.Errorf("assoc: eval %q: %w", res.HitEntityName, err)
	}
	ev.Radius, err = k.EvalRadiusOfCurvature(res.UV, res.HitEntityName)
	if err != nil {
		if !errors.Is(err, mlerr.ErrDegenerateGeometry) {
			return ev, fmt.Errorf("assoc: radius of curvature %q: %w", res.HitEntityName, err)
		}
		ev.RadiusErr = err
	}
	return ev, nil
}
