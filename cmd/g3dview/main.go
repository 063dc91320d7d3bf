// Command g3dview renders an instanced grid of cubes headlessly and reports
// frame statistics.
//
// Usage:
//
//	g3dview -backend software -frames 120 -grid 16
//	g3dview -config g3d.yaml -duration 5s -v
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/chewxy/math32"

	"github.com/gogpu/g3d"
	"github.com/gogpu/g3d/ecs"
	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/material"
	"github.com/gogpu/g3d/render"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML or TOML config file")
		backend    = flag.String("backend", "", "backend name (empty picks the first that opens)")
		frames     = flag.Int("frames", 60, "frames to render when -duration is zero")
		duration   = flag.Duration("duration", 0, "run the real-time loop for this long")
		grid       = flag.Int("grid", 8, "cubes per grid side")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	g3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := g3d.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = g3d.LoadConfig(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	opts := []g3d.Option{
		g3d.WithConfig(cfg),
		g3d.WithStrides(map[string][]gpucore.VertexElement{
			"grid": {
				{Name: "position", Type: gpucore.ElementFloat32, Count: 3},
				{Name: "normal", Type: gpucore.ElementFloat32, Count: 3},
			},
		}),
	}
	if *backend != "" {
		opts = append(opts, g3d.WithBackend(*backend))
	}

	eng, err := g3d.New(opts...)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	w, err := buildGrid(eng, *grid)
	if err != nil {
		log.Fatalf("scene: %v", err)
	}
	eng.AddSystem(g3d.SystemFunc(w.update))

	if *duration > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, *duration)
		defer cancel()
		if err := eng.Run(ctx); err != nil {
			log.Fatalf("run: %v", err)
		}
		log.Printf("rendered %d frames of %d cubes in %v", eng.Frames(), len(w.cubes), *duration)
		return
	}

	dt := time.Duration(float64(time.Second) / eng.Config().TickRate)
	var total render.FrameStats
	start := time.Now()
	for i := 0; i < *frames; i++ {
		stats, err := eng.Tick(dt)
		if err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		total.DrawCalls += stats.DrawCalls
		total.Instances += stats.Instances
		total.SkippedGroups += stats.SkippedGroups
	}
	elapsed := time.Since(start)

	log.Printf("backend %s: %d frames in %v (%.1f fps)",
		eng.Device().Capabilities().Name, *frames, elapsed, float64(*frames)/elapsed.Seconds())
	log.Printf("draw calls %d, instances %d, skipped groups %d",
		total.DrawCalls, total.Instances, total.SkippedGroups)
}

type cube struct {
	entity ecs.Entity
	offset render.Vec3
	phase  float32
}

type world struct {
	surface *material.Material
	cubes   []cube
	elapsed time.Duration
}

func buildGrid(eng *g3d.Engine, n int) (*world, error) {
	positions, normals, indices := cubeMesh()
	geo, err := eng.Geometries().New("cube", "grid", map[string][]float32{
		"position": positions,
		"normal":   normals,
	}, indices)
	if err != nil {
		return nil, err
	}

	surface, err := eng.Materials().New(material.Descriptor{
		Name:           "surface",
		FragmentShader: gpucore.ShaderSource{Name: "grid.frag", WGSL: gridShader, EntryPoint: "fs_main"},
		Layouts: []material.LayoutSpec{{
			Label: "surface",
			Entries: []gpucore.BindGroupLayoutEntry{{
				Binding:    0,
				Type:       gpucore.BindingUniform,
				Visibility: gpucore.StageFragment,
				Size:       16,
				Name:       "color",
			}},
		}},
		Data: map[string][]byte{"color": material.Float32s(0.9, 0.55, 0.2, 1)},
	})
	if err != nil {
		return nil, err
	}

	pipe, err := eng.Pipeline(render.PipelineSpec{
		Label:     "grid",
		Vertex:    gpucore.ShaderSource{Name: "grid", WGSL: gridShader, EntryPoint: "vs_main"},
		Topology:  gpucore.TopologyTriangleList,
		CullMode:  gpucore.CullBack,
		DepthTest: true,
	}, geo, surface)
	if err != nil {
		return nil, err
	}

	w := &world{surface: surface}
	mesh := render.Mesh{Pipeline: pipe, Geometry: geo, Material: surface}
	half := float32(n-1) / 2
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			offset := render.Vec3{(float32(x) - half) * 1.5, 0, (float32(z) - half) * 1.5}
			e, err := eng.Spawn("cube", mesh, render.Transform{Matrix: render.Translate(offset[0], offset[1], offset[2])})
			if err != nil {
				return nil, err
			}
			w.cubes = append(w.cubes, cube{entity: e, offset: offset, phase: float32(x+z) * 0.3})
		}
	}

	cam := eng.Camera()
	cam.Eye = render.Vec3{0, float32(n), float32(n) * 1.6}
	cam.Far = float32(n) * 10
	eng.SetCamera(cam)
	return w, nil
}

// update spins every cube and cycles the surface color.
func (w *world) update(eng *g3d.Engine, dt time.Duration) error {
	w.elapsed += dt
	t := float32(w.elapsed.Seconds())

	store := eng.Store()
	for _, c := range w.cubes {
		m := render.Translate(c.offset[0], 0.25*math32.Sin(2*t+c.phase), c.offset[2]).
			Mul(render.RotateY(t + c.phase))
		if err := store.AddComponent(c.entity, render.Transform{Matrix: m}); err != nil {
			return err
		}
	}

	g := 0.45 + 0.15*math32.Sin(t)
	return w.surface.Update("color", material.Float32s(0.9, g, 0.2, 1))
}

// cubeMesh returns a unit cube with per-face normals and CCW winding.
func cubeMesh() (positions, normals []float32, indices []uint32) {
	faces := []struct{ n, u, v render.Vec3 }{
		{render.Vec3{1, 0, 0}, render.Vec3{0, 0, -1}, render.Vec3{0, 1, 0}},
		{render.Vec3{-1, 0, 0}, render.Vec3{0, 0, 1}, render.Vec3{0, 1, 0}},
		{render.Vec3{0, 1, 0}, render.Vec3{1, 0, 0}, render.Vec3{0, 0, -1}},
		{render.Vec3{0, -1, 0}, render.Vec3{1, 0, 0}, render.Vec3{0, 0, 1}},
		{render.Vec3{0, 0, 1}, render.Vec3{1, 0, 0}, render.Vec3{0, 1, 0}},
		{render.Vec3{0, 0, -1}, render.Vec3{-1, 0, 0}, render.Vec3{0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for i, f := range faces {
		for _, c := range corners {
			for k := range 3 {
				positions = append(positions, 0.5*(f.n[k]+c[0]*f.u[k]+c[1]*f.v[k]))
			}
			normals = append(normals, f.n[0], f.n[1], f.n[2])
		}
		base := uint32(i * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return positions, normals, indices
}
