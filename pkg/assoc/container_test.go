package assoc

import (
	"context"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshlink/pkg/geom"
	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/kernel/analytic"
	"github.com/chazu/meshlink/pkg/mlerr"
	"github.com/chazu/meshlink/pkg/topo"
)

func info(ref string, gref int) topo.Info {
	return topo.Info{Ref: ref, Mid: topo.NoRef, Aref: topo.NoRef, Gref: gref}
}

// sphereModel mirrors the sphere regression data: a bottom string on
// group 15 whose vertex 17 is overridden at model level.
func sphereModel(t *testing.T) *topo.Model {
	t.Helper()
	m := topo.NewModel(info("/Base/sphere", topo.NoRef))

	s, err := m.AddString(info("bottom_con", 15))
	require.NoError(t, err)
	s.AddParamVertex(topo.NewCurveParamVertex("18", 15, topo.NoRef, 0.0))
	s.AddParamVertex(topo.NewCurveParamVertex("17", 15, topo.NoRef, 0.625156631213186))
	require.NoError(t, m.AddStringEdge(s, 18, 17, info("", 15)))

	m.AddParamVertex(topo.NewCurveParamVertex("17", 15, topo.NoRef, 0.1234))
	require.NoError(t, m.AddPointRef(info("17", 15), m.ParamVertByVref("17")))

	sh, err := m.AddSheet(info("sphere_sheet", 20))
	require.NoError(t, err)
	for i, uv := range [][2]float64{{0, 0}, {0.5, 0}, {0.5, 0.5}} {
		sh.AddParamVertex(topo.NewParamVertex([]string{"1", "2", "3"}[i], 20, topo.NoRef, uv[0], uv[1]))
	}
	require.NoError(t, m.AddSheetFace(sh, []int{1, 2, 3}, info("", 20)))
	return m
}

func sphereData(t *testing.T) LoadData {
	return LoadData{
		Attributes: []Attribute{
			{ID: 1, Name: "dim", Value: "1"},
			{ID: 2, Name: "color", Value: "red"},
			{ID: 3, Name: "both", Value: "1 2", Group: true},
		},
		Groups: []GroupRecord{
			{ID: 15, Name: "bottom", Aref: topo.NoRef, Entities: []string{"bottom_con_1"}},
			{ID: 20, Name: "skin", Aref: 3, Entities: []string{"sphere_1"}},
			{ID: 30, Aref: topo.NoRef, Members: []int{15, 20}},
		},
		GeometryFiles: []FileRef{{Filename: "sphere.mlg", Aref: topo.NoRef, GroupIDs: []int{15, 20}}},
		MeshFiles:     []FileRef{{Filename: "sphere.cgns", Aref: topo.NoRef, ModelRefs: []string{"/Base/sphere"}}},
		Models:        []*topo.Model{sphereModel(t)},
	}
}

func sphereLibrary(t *testing.T) *geom.Library {
	t.Helper()
	lib := geom.NewLibrary()
	arc, err := geom.NewArc("bottom_con_1", v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}, 0.5, math.Pi)
	require.NoError(t, err)
	sph, err := geom.NewSphere("sphere_1", v3.Vec{}, 0.5)
	require.NoError(t, err)
	require.NoError(t, lib.Add(arc))
	require.NoError(t, lib.Add(sph))
	return lib
}

func loadedContainer(t *testing.T) *Container {
	t.Helper()
	c := New()
	require.NoError(t, c.Load(sphereData(t)))
	return c
}

func issueCodes(t *testing.T, err error) []string {
	t.Helper()
	var le *LoadError
	require.ErrorAs(t, err, &le)
	codes := make([]string, len(le.Issues))
	for i, is := range le.Issues {
		codes[i] = is.Code
	}
	return codes
}

func TestLoadAndLookup(t *testing.T) {
	c := loadedContainer(t)

	m := c.FindModelByName("/Base/sphere")
	require.NotNil(t, m)
	assert.Same(t, m, c.ModelByRef("/Base/sphere"))
	assert.Nil(t, c.FindModelByName("missing"))
	assert.Len(t, c.Models(), 1)

	g := c.GeometryGroupByID(15)
	require.NotNil(t, g)
	assert.Equal(t, "bottom", g.Name())
	assert.Same(t, g, c.GeometryGroupByName("bottom"))

	composite := c.GeometryGroupByName("geom_group_30")
	require.NotNil(t, composite)
	names, err := c.EntityNames(composite)
	require.NoError(t, err)
	assert.Equal(t, []string{"bottom_con_1", "sphere_1"}, names)
	assert.Equal(t, []int{15, 20}, composite.Members())

	files := c.GeometryFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "sphere.mlg", files[0].Filename)
	assert.NotEmpty(t, files[0].Path)
}

func TestPointAndEdgeLookup(t *testing.T) {
	c := loadedContainer(t)
	m := c.FindModelByName("/Base/sphere")

	low := c.FindLowestTopoPointByIndex(m, 17)
	require.NotNil(t, low)
	u, _ := low.ParamVert().UV()
	assert.Equal(t, 0.625156631213186, u)
	assert.Equal(t, 15, low.Gref())

	high := c.FindHighestTopoPointByIndex(m, 17)
	require.NotNil(t, high)
	u, _ = high.ParamVert().UV()
	assert.Equal(t, 0.1234, u)

	e := c.FindLowestTopoEdgeByIndices(m, 18, 17)
	require.NotNil(t, e)
	assert.Same(t, e, c.FindLowestTopoEdgeByIndices(m, 17, 18))
	pvs := e.ParamVerts()
	require.Len(t, pvs, 2)
	u0, _ := pvs[0].UV()
	u1, _ := pvs[1].UV()
	assert.Equal(t, 0.0, u0)
	assert.Equal(t, 0.625156631213186, u1)

	face := c.FindLowestTopoFaceByIndices(m, 3, 1, 2)
	require.NotNil(t, face)
	assert.Equal(t, 20, face.Gref())
	assert.NotNil(t, c.FindLowestTopoEdgeByIndices(m, 2, 3), "face edge")

	assert.Nil(t, c.FindLowestTopoPointByIndex(nil, 17))
	assert.Nil(t, c.FindLowestTopoEdgeByIndices(m, 1, 99))
}

func TestAttributes(t *testing.T) {
	c := loadedContainer(t)

	name, value, err := c.GetAttribute(2)
	require.NoError(t, err)
	assert.Equal(t, "color", name)
	assert.Equal(t, "red", value)

	_, _, err = c.GetAttribute(3)
	assert.ErrorIs(t, err, mlerr.ErrNotFound, "group attributes have no single value")
	_, _, err = c.GetAttribute(99)
	assert.ErrorIs(t, err, mlerr.ErrNotFound)

	assert.Equal(t, []int{1, 2}, c.AttributeIDs(3))
	assert.Equal(t, []int{2}, c.AttributeIDs(2))
	assert.Nil(t, c.AttributeIDs(42))
	assert.Len(t, c.Attributes(), 3)
}

func TestEntityAttributesApplied(t *testing.T) {
	m := topo.NewModel(topo.Info{Ref: "m", Mid: topo.NoRef, Aref: 3, Gref: topo.NoRef})
	c := New()
	data := sphereData(t)
	data.Models = []*topo.Model{m}
	data.MeshFiles[0].ModelRefs = []string{"m"}
	require.NoError(t, c.Load(data))

	want := map[string]string{"dim": "1", "color": "red"}
	assert.Equal(t, want, c.EntityAttributes(m))
	assert.Equal(t, want, m.Attributes())
	assert.Nil(t, c.EntityAttributes(nil))
}

func TestLoadRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name string
		edit func(*LoadData)
		want string
	}{
		{"duplicate attribute", func(d *LoadData) {
			d.Attributes = append(d.Attributes, Attribute{ID: 1, Name: "again"})
		}, IssueDuplicateAttribute},
		{"unknown attribute member", func(d *LoadData) {
			d.Attributes = append(d.Attributes, Attribute{ID: 4, Name: "g", Value: "1 77", Group: true})
		}, IssueAttributeMember},
		{"attribute cycle", func(d *LoadData) {
			d.Attributes = append(d.Attributes,
				Attribute{ID: 5, Name: "a", Value: "6", Group: true},
				Attribute{ID: 6, Name: "b", Value: "5", Group: true})
		}, IssueAttributeCycle},
		{"duplicate group id", func(d *LoadData) {
			d.Groups = append(d.Groups, GroupRecord{ID: 15, Name: "other", Aref: topo.NoRef, Entities: []string{"x"}})
		}, IssueDuplicateGroupID},
		{"duplicate group name", func(d *LoadData) {
			d.Groups = append(d.Groups, GroupRecord{ID: 16, Name: "bottom", Aref: topo.NoRef, Entities: []string{"x"}})
		}, IssueDuplicateGroupName},
		{"unknown group member", func(d *LoadData) {
			d.Groups = append(d.Groups, GroupRecord{ID: 31, Aref: topo.NoRef, Members: []int{15, 99}})
		}, IssueGroupMember},
		{"group cycle", func(d *LoadData) {
			d.Groups = append(d.Groups,
				GroupRecord{ID: 40, Aref: topo.NoRef, Members: []int{41}},
				GroupRecord{ID: 41, Aref: topo.NoRef, Members: []int{40}})
		}, IssueGroupCycle},
		{"empty entity name", func(d *LoadData) {
			d.Groups = append(d.Groups, GroupRecord{ID: 50, Aref: topo.NoRef, Entities: []string{""}})
		}, IssueEmptyEntityName},
		{"unknown group aref", func(d *LoadData) {
			d.Groups[0].Aref = 88
		}, IssueUnknownAref},
		{"unknown file aref", func(d *LoadData) {
			d.GeometryFiles[0].Aref = 88
		}, IssueUnknownAref},
		{"unknown gref", func(d *LoadData) {
			d.Groups = d.Groups[1:] // drop group 15
			d.Groups[1].Members = []int{20}
		}, IssueUnknownGref},
		{"unknown file group", func(d *LoadData) {
			d.GeometryFiles[0].GroupIDs = []int{15, 77}
		}, IssueUnknownGref},
		{"unknown model ref", func(d *LoadData) {
			d.MeshFiles = []FileRef{{Filename: "sphere.cgns", Aref: topo.NoRef, ModelRefs: []string{"/Base/cube"}}}
		}, IssueUnknownModelRef},
		{"nil model", func(d *LoadData) {
			d.Models = append(d.Models, nil)
		}, IssueNilModel},
		{"duplicate model", func(d *LoadData) {
			d.Models = append(d.Models, topo.NewModel(info("/Base/sphere", topo.NoRef)))
		}, IssueDuplicateModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sphereData(t)
			tt.edit(&data)
			c := New()
			err := c.Load(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, mlerr.ErrLoad)
			assert.Contains(t, issueCodes(t, err), tt.want)
			assert.Empty(t, c.Models(), "rejected load leaves the container untouched")
		})
	}
}

func TestLoadIsAtomicAcrossCalls(t *testing.T) {
	c := loadedContainer(t)

	bad := LoadData{
		Attributes: []Attribute{{ID: 9, Name: "fine"}},
		Models:     []*topo.Model{topo.NewModel(info("second", 99))},
	}
	err := c.Load(bad)
	assert.Contains(t, issueCodes(t, err), IssueUnknownGref)
	assert.Len(t, c.Models(), 1)
	assert.Len(t, c.Attributes(), 3)

	good := LoadData{
		Attributes: []Attribute{{ID: 9, Name: "fine"}},
		Models:     []*topo.Model{topo.NewModel(info("second", 15))},
	}
	require.NoError(t, c.Load(good))
	assert.Len(t, c.Models(), 2)
	assert.NotNil(t, c.FindModelByName("second"))
	assert.Len(t, c.Attributes(), 4)

	err = c.Load(LoadData{Models: []*topo.Model{topo.NewModel(info("second", 15))}})
	assert.Contains(t, issueCodes(t, err), IssueDuplicateModel)
}

func TestKernelRegistry(t *testing.T) {
	c := New()
	_, err := c.ActiveKernel()
	assert.ErrorIs(t, err, mlerr.ErrConfig)

	assert.ErrorIs(t, c.RegisterKernel(nil), mlerr.ErrInvalidHandle)

	fine := analytic.New(analytic.WithName("fine"))
	coarse := analytic.New(analytic.WithName("coarse"), analytic.WithMeshCells(16))
	require.NoError(t, c.RegisterKernel(fine))
	require.NoError(t, c.RegisterKernel(coarse))
	assert.ErrorIs(t, c.RegisterKernel(analytic.New(analytic.WithName("fine"))), mlerr.ErrConfig, "duplicate name")
	assert.Equal(t, []string{"fine", "coarse"}, c.KernelNames())

	active, err := c.ActiveKernel()
	require.NoError(t, err)
	assert.Same(t, fine, active, "first registered is active")

	assert.ErrorIs(t, c.SetActiveKernel("occ"), mlerr.ErrConfig)
	require.NoError(t, c.SetActiveKernel("coarse"))
	active, err = c.ActiveKernel()
	require.NoError(t, err)
	assert.Same(t, coarse, active)

	assert.ErrorIs(t, c.ReleaseKernel("coarse"), mlerr.ErrInvalidState, "active kernel")
	assert.ErrorIs(t, c.ReleaseKernel("occ"), mlerr.ErrConfig)

	require.NoError(t, c.ReleaseKernel("fine"))
	assert.Equal(t, []string{"coarse"}, c.KernelNames())
	assert.ErrorIs(t, fine.Release(), mlerr.ErrInvalidState, "already released")
}

func TestRegisteredKernelCannotBeReleasedDirectly(t *testing.T) {
	c := loadedContainer(t)
	k := analytic.NewFromLibrary(sphereLibrary(t))
	require.NoError(t, c.RegisterKernel(k))

	assert.ErrorIs(t, k.Release(), mlerr.ErrInvalidState)
	s := c.FindModelByName("/Base/sphere").StringByRef("bottom_con")
	res, err := c.ProjectToTopoGeometry(context.Background(), s, v3.Vec{Y: 1})
	require.NoError(t, err, "the kernel stays usable")
	assert.True(t, res.Success)

	require.NoError(t, c.Release())
	assert.NoError(t, k.Release(), "released container no longer holds the kernel")
}

// switchingKernel makes another kernel active while it projects.
type switchingKernel struct {
	*analytic.Kernel
	c  *Container
	to string
}

func (k *switchingKernel) ProjectPoint(ctx context.Context, g kernel.Group, p v3.Vec) (kernel.ProjectionResult, error) {
	if err := k.c.SetActiveKernel(k.to); err != nil {
		return kernel.ProjectionResult{}, err
	}
	return k.Kernel.ProjectPoint(ctx, g, p)
}

func TestTopoGeometryEvalUsesProjectingKernel(t *testing.T) {
	c := loadedContainer(t)
	arcs := &switchingKernel{Kernel: analytic.NewFromLibrary(sphereLibrary(t), analytic.WithName("arcs")), c: c, to: "lines"}

	lines := geom.NewLibrary()
	line, err := geom.NewLine("bottom_con_1", v3.Vec{X: -1}, v3.Vec{X: 1})
	require.NoError(t, err)
	require.NoError(t, lines.Add(line))
	require.NoError(t, c.RegisterKernel(arcs))
	require.NoError(t, c.RegisterKernel(analytic.NewFromLibrary(lines, analytic.WithName("lines"))))

	s := c.FindModelByName("/Base/sphere").StringByRef("bottom_con")
	ev, err := c.TopoGeometryEval(context.Background(), s, v3.Vec{Y: 1})
	require.NoError(t, err)
	require.True(t, ev.Projection.Success)
	assert.NoError(t, ev.RadiusErr, "evaluated on the arc, not the line")
	assert.InDelta(t, 0.5, ev.Radius, 1e-9)
	assert.InDelta(t, 0.5, ev.XYZ.Y, 1e-9)

	active, err := c.ActiveKernel()
	require.NoError(t, err)
	assert.Equal(t, "lines", active.Name())
}

func TestImportGeometryWithoutKernel(t *testing.T) {
	c := loadedContainer(t)
	assert.ErrorIs(t, c.ImportGeometry(context.Background()), mlerr.ErrConfig)
}

func TestProjectToTopoGeometry(t *testing.T) {
	c := loadedContainer(t)
	require.NoError(t, c.RegisterKernel(analytic.NewFromLibrary(sphereLibrary(t))))
	m := c.FindModelByName("/Base/sphere")
	ctx := context.Background()

	s := m.StringByRef("bottom_con")
	require.NotNil(t, s)
	res, err := c.ProjectToTopoGeometry(ctx, s, v3.Vec{Y: 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "bottom_con_1", res.HitEntityName)
	assert.InDelta(t, math.Pi/2, res.UV.U, 1e-9)
	assert.InDelta(t, 0.5, res.Distance, 1e-9)

	ev, err := c.TopoGeometryEval(ctx, s, v3.Vec{Y: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ev.XYZ.Y, 1e-9)
	assert.InDelta(t, 0.5, ev.Radius, 1e-9)
	assert.NoError(t, ev.RadiusErr)

	sheet := m.SheetByRef("sphere_sheet")
	ev, err = c.TopoGeometryEval(ctx, sheet, v3.Vec{X: 2})
	require.NoError(t, err)
	assert.Equal(t, "sphere_1", ev.Projection.HitEntityName)
	assert.InDelta(t, 0.5, ev.XYZ.X, 1e-9)
	assert.InDelta(t, 0.5, ev.Radius, 1e-9)

	_, err = c.ProjectToTopoGeometry(ctx, m, v3.Vec{})
	assert.ErrorIs(t, err, mlerr.ErrMissingAssociation, "model has no gref")
	_, err = c.ProjectToTopoGeometry(ctx, nil, v3.Vec{})
	assert.ErrorIs(t, err, mlerr.ErrInvalidHandle)
}

func TestTopoGeometryEvalDegenerateRadius(t *testing.T) {
	lib := geom.NewLibrary()
	line, err := geom.NewLine("bottom_con_1", v3.Vec{X: -1}, v3.Vec{X: 1})
	require.NoError(t, err)
	require.NoError(t, lib.Add(line))

	c := loadedContainer(t)
	require.NoError(t, c.RegisterKernel(analytic.NewFromLibrary(lib)))
	s := c.FindModelByName("/Base/sphere").StringByRef("bottom_con")

	ev, err := c.TopoGeometryEval(context.Background(), s, v3.Vec{Y: 1})
	require.NoError(t, err)
	assert.True(t, ev.Projection.Success)
	assert.ErrorIs(t, ev.RadiusErr, mlerr.ErrDegenerateGeometry)
}

func TestProjectionWithoutHit(t *testing.T) {
	c := loadedContainer(t)
	require.NoError(t, c.RegisterKernel(analytic.NewFromLibrary(geom.NewLibrary())))
	s := c.FindModelByName("/Base/sphere").StringByRef("bottom_con")

	ev, err := c.TopoGeometryEval(context.Background(), s, v3.Vec{Y: 1})
	require.NoError(t, err)
	assert.False(t, ev.Projection.Success)
}

func TestRelease(t *testing.T) {
	c := loadedContainer(t)
	require.NoError(t, c.RegisterKernel(analytic.New()))
	m := c.FindModelByName("/Base/sphere")

	require.NoError(t, c.Release())
	assert.True(t, c.Released())
	assert.ErrorIs(t, c.Release(), mlerr.ErrInvalidState)

	assert.Nil(t, c.FindModelByName("/Base/sphere"))
	assert.Nil(t, c.FindLowestTopoPointByIndex(m, 17))
	_, _, err := c.GetAttribute(1)
	assert.ErrorIs(t, err, mlerr.ErrInvalidState)
	_, err = c.ActiveKernel()
	assert.ErrorIs(t, err, mlerr.ErrInvalidState)
	assert.ErrorIs(t, c.Load(sphereData(t)), mlerr.ErrInvalidState)
	assert.ErrorIs(t, c.RegisterKernel(analytic.New()), mlerr.ErrInvalidState)
	_, err = c.EntityNames(NewGeometryGroup(1, "", topo.NoRef, "a"))
	assert.ErrorIs(t, err, mlerr.ErrInvalidState)
}

func TestGeometryGroupNilSafe(t *testing.T) {
	var g *GeometryGroup
	assert.Equal(t, topo.NoRef, g.ID())
	_, err := g.EntityNames()
	assert.ErrorIs(t, err, mlerr.ErrInvalidHandle)

	assert.Equal(t, "geom_group_4", NewGeometryGroup(4, "", topo.NoRef).Name())
}
