package ecs

import "fmt"

// Entity is an opaque entity handle.
//
// The low 32 bits select an arena slot and the high 32 bits carry the slot's
// generation. Generations start at 1, so the zero Entity is never valid.
type Entity uint64

// NoEntity is the zero handle. It never names a live entity.
const NoEntity Entity = 0

func makeEntity(index, gen uint32) Entity {
	return Entity(uint64(gen)<<32 | uint64(index))
}

func (e Entity) index() uint32 { return uint32(e) }

func (e Entity) gen() uint32 { return uint32(e >> 32) }

// String returns a debug representation of the handle.
func (e Entity) String() string {
	if e == NoEntity {
		return "entity(none)"
	}
	return fmt.Sprintf("entity(%d:%d)", e.index(), e.gen())
}
