package analytic

import (
	"context"
	"fmt"
	"runtime"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/meshlink/pkg/geom"
	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

// hit is one entity's projection candidate.
type hit struct {
	ok   bool
	name string
	uv   kernel.UV
	xyz  v3.Vec
	dist float64
}

// better reports whether h beats best. Equal distances keep best, so the
// earlier entity wins ties.
func (h hit) better(best hit) bool {
	return h.ok && (!best.ok || h.dist < best.dist)
}

// ProjectPoint finds the closest point to p over the group's entities.
func (k *Kernel) ProjectPoint(ctx context.Context, g kernel.Group, p v3.Vec) (res kernel.ProjectionResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analytic.ProjectPoint")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if g == nil {
		return res, fmt.Errorf("analytic: project: nil group: %w", mlerr.ErrInvalidHandle)
	}
	names, err := g.EntityNames()
	if err != nil {
		// A group that cannot list its entities is a bad handle; the cause
		// stays wrapped alongside.
		return res, fmt.Errorf("analytic: project: malformed group %d: %w: %w", g.ID(), mlerr.ErrInvalidHandle, err)
	}
	span.SetAttributes(attribute.Int("group", g.ID()), attribute.Int("entities", len(names)))

	k.mu.RLock()
	if k.released {
		k.mu.RUnlock()
		return res, fmt.Errorf("analytic: project: kernel released: %w", mlerr.ErrInvalidState)
	}
	lib := k.lib
	k.mu.RUnlock()

	var best hit
	if k.parallelThreshold > 0 && len(names) >= k.parallelThreshold {
		best, err = projectParallel(ctx, lib, names, p)
		if err != nil {
			return res, err
		}
	} else {
		for _, name := range names {
			if h := projectOne(lib, name, p); h.better(best) {
				best = h
			}
		}
	}

	if !best.ok {
		k.logger.Debug("projection found no entity", "group", g.ID())
		return res, nil
	}
	return kernel.ProjectionResult{
		Success:       true,
		XYZ:           best.xyz,
		UV:            best.uv,
		HitEntityName: best.name,
		Distance:      best.dist,
	}, nil
}

func projectOne(lib *geom.Library, name string, p v3.Vec) hit {
	e := lib.Get(name)
	if e == nil {
		return hit{}
	}
	uv, xyz := e.Project(p)
	return hit{ok: true, name: name, uv: uv, xyz: xyz, dist: xyz.Sub(p).Length()}
}

// projectParallel projects onto every entity concurrently, then reduces
// in enumeration order so the winner matches the sequential search.
func projectParallel(ctx context.Context, lib *geom.Library, names []string, p v3.Vec) (hit, error) {
	hits := make([]hit, len(names))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hits[i] = projectOne(lib, name, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return hit{}, err
	}
	var best hit
	for _, h := range hits {
		if h.better(best) {
			best = h
		}
	}
	return best, nil
}
