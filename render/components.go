package render

import (
	"github.com/gogpu/g3d/ecs"
	"github.com/gogpu/g3d/geometry"
	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/material"
)

// Component kinds used by the renderer.
var (
	MeshKind      = ecs.NewKind("render.Mesh")
	TransformKind = ecs.NewKind("render.Transform")
)

// Mesh makes an entity drawable. Store it by value.
type Mesh struct {
	Pipeline gpucore.PipelineID
	Geometry *geometry.Geometry

	// Material is bound at slot 1 onward. It may be nil for pipelines that
	// only use the globals.
	Material *material.Material
}

// Kind implements ecs.Component.
func (Mesh) Kind() ecs.Kind { return MeshKind }

// Transform places an entity in world space. Store it by value.
type Transform struct {
	Matrix Mat4
}

// Kind implements ecs.Component.
func (Transform) Kind() ecs.Kind { return TransformKind }

// IdentityTransform returns a Transform at the origin.
func IdentityTransform() Transform { return Transform{Matrix: Identity()} }
