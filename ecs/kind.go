package ecs

import (
	"strconv"
	"sync"
)

// Kind identifies a component schema. Kinds are small integers assigned by
// NewKind, normally once per component type at package initialization.
type Kind uint32

// Component is a typed record attached to an entity.
type Component interface {
	Kind() Kind
}

var (
	kindMu    sync.Mutex
	kindNames = []string{""}
)

// NewKind registers a new component kind and returns its id.
// Each call returns a distinct kind, even for a repeated name.
func NewKind(name string) Kind {
	kindMu.Lock()
	defer kindMu.Unlock()
	kindNames = append(kindNames, name)
	return Kind(len(kindNames) - 1)
}

// String returns the name the kind was registered with.
func (k Kind) String() string {
	kindMu.Lock()
	defer kindMu.Unlock()
	if int(k) < len(kindNames) && k != 0 {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}
