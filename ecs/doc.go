// Package ecs provides the entity-component store the renderer reads from.
//
// Entities are opaque [Entity] handles backed by a generation-checked arena,
// so a handle to a destroyed entity is rejected instead of silently aliasing
// a new one. Components are any type implementing [Component]; each entity
// holds at most one component per [Kind].
//
// The store keeps two indexes: entity to components, and kind to entities.
// The second one makes [Store.EntitiesWithComponents] cost proportional to
// the number of matching entities, not to the size of the store.
//
// # Passes
//
// A system that iterates query results calls [Store.BeginPass] first.
// Until the matching [Store.EndPass], structural changes (adding or removing
// components, destroying entities, moving entities between scenes) are queued
// and applied in call order when the pass closes. Reads always observe the
// state at the start of the pass.
//
// The store is not safe for concurrent use. It is owned by the frame loop.
package ecs
