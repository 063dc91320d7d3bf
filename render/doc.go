// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render draws the entities of an [ecs.Store] with instanced draws.
//
// Each frame the [Renderer] runs a fixed sequence of stages:
//
//	BeginFrame        write per-frame globals (camera, light)
//	GroupByPipeline   partition entities by pipeline, first-appearance order
//	GroupByMesh       sub-partition by geometry and material
//	WriteInstanceData pack model and normal matrices per group
//	IssueDraws        one instanced draw per group
//	Submit            close the render pass
//
// Entities are drawn when they carry a [Mesh] component. A [Transform]
// component positions them; without one they are drawn at the origin.
// Instances inside a group keep entity creation order. No depth sorting is
// done.
//
// A failing mesh group is logged and skipped. A failing global write skips
// the whole frame, or halts the renderer when configured with [Halt].
//
// # Bind group slots
//
// Slot 0 holds the per-frame globals for every pipeline. Material bind
// groups follow at slot 1 onward. Vertex buffer slot 0 is the geometry and
// slot 1 the instance data laid out as [InstanceLayout].
package render
