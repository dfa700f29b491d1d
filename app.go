package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/assoc"
	"github.com/chazu/meshlink/pkg/config"
	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/kernel/analytic"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/parser"
	"github.com/chazu/meshlink/pkg/tessellate"
	"github.com/chazu/meshlink/pkg/topo"
)

// App ties a container to the analytic kernel for the command line.
type App struct {
	logger    *slog.Logger
	container *assoc.Container
	kernel    *analytic.Kernel
}

// Selector picks one topology entity of a model. The first set field wins,
// in the order Point, Edge, Face, String, Sheet. Point is a pointer so that
// index 0 can be selected.
type Selector struct {
	Point  *int
	Edge   []int
	Face   []int
	String string
	Sheet  string
}

// describe names the entity kind sel asks for.
func describe(s Selector) string {
	switch {
	case s.Point != nil:
		return fmt.Sprintf("point %d", *s.Point)
	case len(s.Edge) > 0:
		return fmt.Sprintf("edge %v", s.Edge)
	case len(s.Face) > 0:
		return fmt.Sprintf("face %v", s.Face)
	case s.String != "":
		return fmt.Sprintf("string %q", s.String)
	case s.Sheet != "":
		return fmt.Sprintf("sheet %q", s.Sheet)
	}
	return "model"
}

// Info summarizes a loaded container.
type Info struct {
	Models        []ModelInfo
	Groups        []GroupInfo
	GeometryFiles []string
	MeshFiles     []string
	Entities      []string
}

type ModelInfo struct {
	Name    string
	Strings int
	Sheets  int
	Points  int
	Edges   int
	Faces   int
}

type GroupInfo struct {
	ID       int
	Name     string
	Entities []string
}

// NewApp creates an App whose kernel is configured from cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger:    logger,
		container: assoc.New(assoc.WithLogger(logger)),
		kernel:    cfg.NewKernel(logger),
	}
}

// Load reads a MeshLink document and imports the geometry files it names.
func (a *App) Load(ctx context.Context, path string) error {
	data, err := parser.ReadFile(path)
	if err != nil {
		return err
	}
	if err := a.container.Load(data); err != nil {
		return err
	}
	if err := a.container.RegisterKernel(a.kernel); err != nil {
		return err
	}
	if len(a.container.GeometryFiles()) == 0 {
		a.logger.Warn("no geometry files", "path", path)
		return nil
	}
	return a.container.ImportGeometry(ctx)
}

// Close releases the container and the kernel.
func (a *App) Close() error {
	return errors.Join(a.container.Release(), a.kernel.Release())
}

// Model returns the named model. An empty name selects the only model.
func (a *App) Model(name string) (*topo.Model, error) {
	if name == "" {
		models := a.container.Models()
		if len(models) != 1 {
			return nil, fmt.Errorf("model name required, %d models loaded: %w", len(models), mlerr.ErrConfig)
		}
		return models[0], nil
	}
	m := a.container.FindModelByName(name)
	if m == nil {
		return nil, fmt.Errorf("model %q: %w", name, mlerr.ErrNotFound)
	}
	return m, nil
}

// Point returns the lowest or highest topology point with index.
func (a *App) Point(model string, index int, highest bool) (*topo.Point, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, err
	}
	var p *topo.Point
	if highest {
		p = a.container.FindHighestTopoPointByIndex(m, index)
	} else {
		p = a.container.FindLowestTopoPointByIndex(m, index)
	}
	if p == nil {
		return nil, fmt.Errorf("point %d: %w", index, mlerr.ErrNotFound)
	}
	return p, nil
}

// Edge returns the lowest topology edge with the two indices.
func (a *App) Edge(model string, i1, i2 int) (*topo.Edge, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, err
	}
	e := a.container.FindLowestTopoEdgeByIndices(m, i1, i2)
	if e == nil {
		return nil, fmt.Errorf("edge %d-%d: %w", i1, i2, mlerr.ErrNotFound)
	}
	return e, nil
}

// Select resolves sel within the named model.
func (a *App) Select(model string, sel Selector) (topo.Entity, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, err
	}
	var (
		e     topo.Entity
		found bool
	)
	switch {
	case sel.Point != nil:
		p := a.container.FindLowestTopoPointByIndex(m, *sel.Point)
		e, found = p, p != nil
	case len(sel.Edge) > 0:
		ed := a.container.FindLowestTopoEdgeByIndices(m, sel.Edge...)
		e, found = ed, ed != nil
	case len(sel.Face) > 0:
		f := a.container.FindLowestTopoFaceByIndices(m, sel.Face...)
		e, found = f, f != nil
	case sel.String != "":
		s := m.StringByName(sel.String)
		e, found = s, s != nil
	case sel.Sheet != "":
		s := m.SheetByName(sel.Sheet)
		e, found = s, s != nil
	default:
		return m, nil
	}
	if !found {
		return nil, fmt.Errorf("no entity matches %s: %w", describe(sel), mlerr.ErrNotFound)
	}
	return e, nil
}

// Project projects p onto the geometry of the selected entity.
func (a *App) Project(ctx context.Context, model string, sel Selector, p v3.Vec) (kernel.ProjectionResult, error) {
	e, err := a.Select(model, sel)
	if err != nil {
		return kernel.ProjectionResult{}, err
	}
	return a.container.ProjectToTopoGeometry(ctx, e, p)
}

// Eval projects p and evaluates the hit entity at the projected parameters.
func (a *App) Eval(ctx context.Context, model string, sel Selector, p v3.Vec) (assoc.Evaluation, error) {
	e, err := a.Select(model, sel)
	if err != nil {
		return assoc.Evaluation{}, err
	}
	return a.container.TopoGeometryEval(ctx, e, p)
}

// Tessellate meshes the geometry the named model is associated with.
func (a *App) Tessellate(model string) ([]*kernel.Mesh, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, err
	}
	meshes, err := tessellate.ActiveKernel(a.container, m)
	if err != nil {
		return nil, err
	}
	a.logger.Info("tessellated", "model", m.Name(), "meshes", len(meshes))
	return meshes, nil
}

// Write serializes the container to path.
func (a *App) Write(path string) error {
	return parser.WriteFile(path, a.container)
}

// Info summarizes the loaded container.
func (a *App) Info() Info {
	var info Info
	for _, m := range a.container.Models() {
		info.Models = append(info.Models, ModelInfo{
			Name:    m.Name(),
			Strings: len(m.Strings()),
			Sheets:  len(m.Sheets()),
			Points:  len(m.Points()),
			Edges:   m.NumEdges(),
			Faces:   m.NumFaces(),
		})
	}
	for _, g := range a.container.GeometryGroups() {
		names, _ := g.EntityNames()
		info.Groups = append(info.Groups, GroupInfo{ID: g.ID(), Name: g.Name(), Entities: names})
	}
	for _, f := range a.container.GeometryFiles() {
		info.GeometryFiles = append(info.GeometryFiles, f.Filename)
	}
	for _, f := range a.container.MeshFiles() {
		info.MeshFiles = append(info.MeshFiles, f.Filename)
	}
	info.Entities = a.kernel.EntityNames()
	return info
}
