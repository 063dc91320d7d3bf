package ecs

import "errors"

var (
	// ErrUnknownEntity is returned for a handle that was never created or
	// has been destroyed.
	ErrUnknownEntity = errors.New("ecs: unknown entity")

	// ErrComponentNotFound is returned when an entity lacks the requested kind.
	ErrComponentNotFound = errors.New("ecs: component not found")

	// ErrComponentType is returned by Get when the stored component is not
	// of the requested Go type.
	ErrComponentType = errors.New("ecs: component has unexpected type")

	// ErrNilComponent is returned when a nil component is added.
	ErrNilComponent = errors.New("ecs: nil component")

	// ErrHierarchyCycle is returned when SetParent would create a cycle.
	ErrHierarchyCycle = errors.New("ecs: parent relation would form a cycle")

	// ErrUnknownScene is returned for a scene that was not created by the store.
	ErrUnknownScene = errors.New("ecs: unknown scene")
)
