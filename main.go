// Command meshlink loads a MeshLink document with its geometry and queries
// the associations between mesh topology and geometry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshlink/pkg/config"
	"github.com/chazu/meshlink/pkg/tessellate"
)

const usage = `usage: meshlink [-config file] [-log-level level] <command> [flags] <meshlink.xml>

commands:
  info        summarize models, geometry groups and files
  point       print the parametric vertex of a point (-index, -highest)
  edge        print the parametric vertices of an edge (-indices)
  project     project -xyz onto the geometry of a topology entity
  eval        project -xyz and evaluate position and radius of curvature
  tessellate  mesh the geometry of a model into an STL file (-o)
  write       write the loaded document back as MeshLink XML (-o)
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "meshlink:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("meshlink", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "TOML configuration file")
	logLevel := global.String("log-level", "", "override the configured log level")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "", "model name; may be omitted when only one model is loaded")

	var (
		sel     Selector
		xyz     string
		out     string
		index   int
		highest bool
		indices string
	)
	selectorFlags := func() {
		fs.Func("point", "select the point with this index", func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("bad index %q", s)
			}
			sel.Point = &n
			return nil
		})
		fs.StringVar(&indices, "edge", "", "select the edge with these comma separated indices")
		fs.StringVar(&xyz, "xyz", "", "comma separated coordinate to project")
		fs.StringVar(&sel.String, "string", "", "select the string with this name")
		fs.StringVar(&sel.Sheet, "sheet", "", "select the sheet with this name")
		fs.Func("face", "select the face with these comma separated indices", func(s string) error {
			var err error
			sel.Face, err = parseInts(s)
			return err
		})
	}
	switch cmd {
	case "info":
	case "point":
		fs.IntVar(&index, "index", 0, "point index")
		fs.BoolVar(&highest, "highest", false, "prefer the model-level definition")
	case "edge":
		fs.StringVar(&indices, "indices", "", "two comma separated indices")
	case "project", "eval":
		selectorFlags()
	case "tessellate":
		fs.StringVar(&out, "o", "meshlink.stl", "output STL file")
	case "write":
		fs.StringVar(&out, "o", "", "output MeshLink XML file")
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%s: want one MeshLink file, got %d arguments", cmd, fs.NArg())
	}

	app := NewApp(cfg, logger)
	if err := app.Load(ctx, fs.Arg(0)); err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("release", "err", err)
		}
	}()

	switch cmd {
	case "info":
		printInfo(stdout, app.Info())
		return nil

	case "point":
		p, err := app.Point(*model, index, highest)
		if err != nil {
			return err
		}
		pv := p.ParamVert()
		u, v := pv.UV()
		fmt.Fprintf(stdout, "point %d gref %d dim %d u %v v %v\n", index, p.Gref(), pv.Dim(), u, v)
		return nil

	case "edge":
		ids, err := parseInts(indices)
		if err != nil {
			return err
		}
		if len(ids) != 2 {
			return fmt.Errorf("edge: want two indices, got %d", len(ids))
		}
		e, err := app.Edge(*model, ids[0], ids[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "edge %v gref %d\n", e.Indices(), e.Gref())
		for _, pv := range e.ParamVerts() {
			u, v := pv.UV()
			fmt.Fprintf(stdout, "  vref %s gref %d u %v v %v\n", pv.Vref(), pv.Gref(), u, v)
		}
		return nil

	case "project", "eval":
		if indices != "" {
			if sel.Edge, err = parseInts(indices); err != nil {
				return err
			}
		}
		p, err := parseVec(xyz)
		if err != nil {
			return err
		}
		if cmd == "project" {
			res, err := app.Project(ctx, *model, sel, p)
			if err != nil {
				return err
			}
			printProjection(stdout, res.Success, res.HitEntityName, res.XYZ, res.UV.U, res.UV.V, res.Distance)
			return nil
		}
		ev, err := app.Eval(ctx, *model, sel, p)
		if err != nil {
			return err
		}
		res := ev.Projection
		printProjection(stdout, res.Success, res.HitEntityName, res.XYZ, res.UV.U, res.UV.V, res.Distance)
		if !res.Success {
			return nil
		}
		fmt.Fprintf(stdout, "eval xyz %v %v %v\n", ev.XYZ.X, ev.XYZ.Y, ev.XYZ.Z)
		if ev.RadiusErr != nil {
			fmt.Fprintf(stdout, "radius none (%v)\n", ev.RadiusErr)
		} else {
			fmt.Fprintf(stdout, "radius %v\n", ev.Radius)
		}
		return nil

	case "tessellate":
		meshes, err := app.Tessellate(*model)
		if err != nil {
			return err
		}
		if err := tessellate.WriteSTLFile(out, meshes); err != nil {
			return err
		}
		for _, m := range meshes {
			fmt.Fprintf(stdout, "%s: %d triangles\n", m.PartName, m.TriangleCount())
		}
		return nil

	case "write":
		if out == "" {
			return errors.New("write: -o is required")
		}
		return app.Write(out)
	}
	return nil
}

func printInfo(w io.Writer, info Info) {
	for _, m := range info.Models {
		fmt.Fprintf(w, "model %s: %d strings, %d sheets, %d points, %d edges, %d faces\n",
			m.Name, m.Strings, m.Sheets, m.Points, m.Edges, m.Faces)
	}
	for _, g := range info.Groups {
		fmt.Fprintf(w, "group %d %s: %s\n", g.ID, g.Name, strings.Join(g.Entities, " "))
	}
	fmt.Fprintf(w, "geometry files: %s\n", strings.Join(info.GeometryFiles, " "))
	fmt.Fprintf(w, "mesh files: %s\n", strings.Join(info.MeshFiles, " "))
	fmt.Fprintf(w, "entities: %s\n", strings.Join(info.Entities, " "))
}

func printProjection(w io.Writer, ok bool, name string, xyz v3.Vec, u, v, dist float64) {
	if !ok {
		fmt.Fprintln(w, "projection: no hit")
		return
	}
	fmt.Fprintf(w, "projection %s xyz %v %v %v uv %v %v distance %v\n", name, xyz.X, xyz.Y, xyz.Z, u, v, dist)
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad index %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseVec(s string) (v3.Vec, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v3.Vec{}, fmt.Errorf("-xyz wants x,y,z, got %q", s)
	}
	var c [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v3.Vec{}, fmt.Errorf("bad coordinate %q", p)
		}
		c[i] = f
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}
