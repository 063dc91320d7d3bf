package main

import (
	"testing"
	"time"

	"github.com/gogpu/g3d"
	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/gpucore"
)

func TestCubeMesh(t *testing.T) {
	positions, normals, indices := cubeMesh()
	if len(positions) != 24*3 || len(normals) != 24*3 || len(indices) != 36 {
		t.Fatalf("cube = %d positions, %d normals, %d indices", len(positions)/3, len(normals)/3, len(indices))
	}
	for i, p := range positions {
		if p != 0.5 && p != -0.5 {
			t.Fatalf("position component %d = %v, want ±0.5", i, p)
		}
	}
}

func TestGridFrames(t *testing.T) {
	eng, err := g3d.New(
		g3d.WithBackend(backend.Software),
		g3d.WithStrides(map[string][]gpucore.VertexElement{
			"grid": {
				{Name: "position", Type: gpucore.ElementFloat32, Count: 3},
				{Name: "normal", Type: gpucore.ElementFloat32, Count: 3},
			},
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	w, err := buildGrid(eng, 3)
	if err != nil {
		t.Fatalf("buildGrid: %v", err)
	}
	eng.AddSystem(g3d.SystemFunc(w.update))

	for i := range 3 {
		stats, err := eng.Tick(time.Second / 60)
		if err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		if stats.DrawCalls != 1 || stats.Instances != 9 {
			t.Errorf("frame %d stats = %+v, want 1 draw of 9", i, stats)
		}
	}
}
