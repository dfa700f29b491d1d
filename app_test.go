package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshlink/pkg/config"
	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/parser"
	"github.com/chazu/meshlink/pkg/topo"
)

const sphereXML = "examples/sphere_ml.xml"

// newSphereApp loads the sphere example: a half circle bottom_con_1 of
// radius 0.5 and the sphere sphere_1 of radius 0.5.
func newSphereApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Kernel.MeshCells = 24
	app := NewApp(cfg, nil)
	require.NoError(t, app.Load(context.Background(), sphereXML))
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestE2ELoad(t *testing.T) {
	app := newSphereApp(t)
	info := app.Info()

	require.Len(t, info.Models, 1)
	assert.Equal(t, ModelInfo{Name: "/Base/sphere", Strings: 1, Sheets: 1, Points: 1, Edges: 2, Faces: 2}, info.Models[0])
	assert.Len(t, info.Groups, 3)
	assert.Equal(t, []string{"sphere.mlg"}, info.GeometryFiles)
	assert.Equal(t, []string{"sphere.cgns"}, info.MeshFiles)
	assert.ElementsMatch(t, []string{"bottom_con_1", "sphere_1"}, info.Entities)
}

func TestE2EPointLowestHighest(t *testing.T) {
	app := newSphereApp(t)

	low, err := app.Point("", 17, false)
	require.NoError(t, err)
	u, _ := low.ParamVert().UV()
	assert.Equal(t, 0.625156631213186, u)
	assert.Equal(t, 15, low.Gref())

	high, err := app.Point("/Base/sphere", 17, true)
	require.NoError(t, err)
	u, _ = high.ParamVert().UV()
	assert.Equal(t, 0.1234, u)

	_, err = app.Point("", 99, false)
	assert.ErrorIs(t, err, mlerr.ErrNotFound)
	_, err = app.Point("nope", 17, false)
	assert.ErrorIs(t, err, mlerr.ErrNotFound)
}

func TestE2EEdgeParamVerts(t *testing.T) {
	app := newSphereApp(t)
	e, err := app.Edge("", 18, 17)
	require.NoError(t, err)
	pvs := e.ParamVerts()
	require.Len(t, pvs, 2)
	u0, _ := pvs[0].UV()
	u1, _ := pvs[1].UV()
	assert.Equal(t, 0.0, u0)
	assert.Equal(t, 0.625156631213186, u1)

	names, err := app.container.EntityNames(app.container.GeometryGroupByID(e.Gref()))
	require.NoError(t, err)
	assert.Equal(t, []string{"bottom_con_1"}, names)
}

func TestE2EProjectionIdempotent(t *testing.T) {
	app := newSphereApp(t)
	ctx := context.Background()
	sel := Selector{Sheet: "sphere_sheet"}

	first, err := app.Project(ctx, "", sel, v3.Vec{X: 0.3, Y: 0.2, Z: 0.4})
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.Equal(t, "sphere_1", first.HitEntityName)
	assert.InDelta(t, 0.5, first.XYZ.Length(), 1e-6)

	second, err := app.Project(ctx, "", sel, first.XYZ)
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.InDelta(t, 0, second.XYZ.Sub(first.XYZ).Length(), 1e-6)
	assert.InDelta(t, 0, second.Distance, 1e-6)

	ev, err := app.Eval(ctx, "", sel, v3.Vec{X: 0.3, Y: 0.2, Z: 0.4})
	require.NoError(t, err)
	assert.InDelta(t, 0, ev.XYZ.Sub(ev.Projection.XYZ).Length(), 1e-6)
	assert.InDelta(t, 0.5, ev.Radius, 1e-9)
}

func TestE2EEdgeMidpointProjection(t *testing.T) {
	app := newSphereApp(t)
	ctx := context.Background()

	e, err := app.Edge("", 18, 17)
	require.NoError(t, err)
	pvs := e.ParamVerts()
	var ends [2]v3.Vec
	var us [2]float64
	for i, pv := range pvs {
		us[i], _ = pv.UV()
		ends[i], err = app.kernel.EvalXYZ(kernel.UV{U: us[i]}, "bottom_con_1")
		require.NoError(t, err)
	}
	mid := ends[0].Add(ends[1]).MulScalar(0.5)

	res, err := app.Project(ctx, "", Selector{Edge: []int{18, 17}}, mid)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "bottom_con_1", res.HitEntityName)

	half := (us[0] + us[1]) / 2
	want := v3.Vec{X: 0.5 * math.Cos(half), Y: 0.5 * math.Sin(half)}
	assert.InDelta(t, half, res.UV.U, 1e-6)
	assert.InDelta(t, 0, res.XYZ.Sub(want).Length(), 1e-6)
	assert.InDelta(t, 0.5-mid.Length(), res.Distance, 1e-6)

	ev, err := app.Eval(ctx, "", Selector{Edge: []int{18, 17}}, mid)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ev.Radius, 1e-9)
}

func TestE2EAbsentGroup(t *testing.T) {
	app := newSphereApp(t)
	assert.Nil(t, app.container.GeometryGroupByID(999))
	assert.Nil(t, app.container.GeometryGroupByName("no_such_group"))
}

func TestE2ESelectErrors(t *testing.T) {
	app := newSphereApp(t)
	_, err := app.Select("", Selector{Edge: []int{1, 99}})
	assert.ErrorIs(t, err, mlerr.ErrNotFound)

	m, err := app.Select("", Selector{})
	require.NoError(t, err)
	assert.Equal(t, "/Base/sphere", m.Name())

	_, err = app.Project(context.Background(), "", Selector{}, v3.Vec{})
	assert.ErrorIs(t, err, mlerr.ErrMissingAssociation, "model has no gref")
}

func TestE2ESelectPointIndex(t *testing.T) {
	app := newSphereApp(t)
	zero, seventeen := 0, 17

	_, err := app.Select("", Selector{Point: &zero})
	assert.ErrorIs(t, err, mlerr.ErrNotFound, "index 0 is a point query, not the model")

	e, err := app.Select("", Selector{Point: &seventeen, Sheet: "sphere_sheet"})
	require.NoError(t, err)
	p, ok := e.(*topo.Point)
	require.True(t, ok, "point wins over sheet")
	assert.Equal(t, 15, p.Gref())
}

func TestE2ETessellateAndWrite(t *testing.T) {
	app := newSphereApp(t)
	meshes, err := app.Tessellate("")
	require.NoError(t, err)
	require.Len(t, meshes, 2)
	assert.Equal(t, "sphere_1", meshes[0].PartName)
	assert.Equal(t, "bottom_con_1", meshes[1].PartName)

	path := filepath.Join(t.TempDir(), "out.xml")
	require.NoError(t, app.Write(path))
	data, err := parser.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data.Models, 1)
	assert.Len(t, data.Groups, 3)
}

func TestRunCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "meshlink.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[kernel]\nmesh-cells = 16\n[log]\nlevel = \"warn\"\n"), 0o644))
	stl := filepath.Join(dir, "sphere.stl")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"info", []string{"info", sphereXML}, "group 30 sphere_all: bottom_con_1 sphere_1"},
		{"point", []string{"point", "-index", "17", "-highest", sphereXML}, "u 0.1234"},
		{"edge", []string{"edge", "-indices", "18,17", sphereXML}, "u 0.625156631213186"},
		{"project", []string{"project", "-string", "bottom_con", "-xyz", "0,1,0", sphereXML}, "projection bottom_con_1"},
		{"eval", []string{"eval", "-sheet", "sphere_sheet", "-xyz", "2,0,0", sphereXML}, "eval xyz"},
		{"project point", []string{"project", "-point", "17", "-xyz", "0,1,0", sphereXML}, "projection bottom_con_1"},
		{"tessellate", []string{"tessellate", "-o", stl, sphereXML}, "sphere_1:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"-config", cfgPath}, tt.args...)
			require.NoError(t, run(context.Background(), args, &stdout, &stderr), stderr.String())
			assert.Contains(t, stdout.String(), tt.want)
		})
	}
	_, err := os.Stat(stl)
	assert.NoError(t, err)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate", sphereXML}},
		{"missing file argument", []string{"info"}},
		{"bad log level", []string{"-log-level", "loud", "info", sphereXML}},
		{"absent document", []string{"info", "examples/absent.xml"}},
		{"bad xyz", []string{"project", "-xyz", "1,2", sphereXML}},
		{"point zero", []string{"project", "-point", "0", "-xyz", "0,1,0", sphereXML}},
		{"bad point", []string{"project", "-point", "x", "-xyz", "0,1,0", sphereXML}},
		{"write without output", []string{"write", sphereXML}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Error(t, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}
