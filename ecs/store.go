package ecs

import (
	"cmp"
	"fmt"
	"slices"
)

// slot is one arena cell. A free slot keeps its generation so the next
// occupant gets a handle that differs from every earlier one.
type slot struct {
	gen    uint32
	alive  bool
	serial uint64
	label  string
	comps  map[Kind]Component

	scene    Scene
	parent   Entity
	children []Entity
}

// Store holds entities and their components.
type Store struct {
	slots  []slot
	free   []uint32
	byKind map[Kind]map[Entity]struct{}
	live   int
	serial uint64

	scenes []string

	passDepth int
	pending   []func()
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byKind: make(map[Kind]map[Entity]struct{}),
	}
}

// Create allocates a fresh entity. It always succeeds.
func (s *Store) Create(label string) Entity {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot{gen: 1})
	}
	sl := &s.slots[idx]
	sl.alive = true
	sl.serial = s.serial
	sl.label = label
	s.serial++
	s.live++
	return makeEntity(idx, sl.gen)
}

// lookup returns the live slot for e, or nil.
func (s *Store) lookup(e Entity) *slot {
	idx := e.index()
	if e == NoEntity || int(idx) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[idx]
	if !sl.alive || sl.gen != e.gen() {
		return nil
	}
	return sl
}

func unknown(e Entity) error {
	return fmt.Errorf("%w: %s", ErrUnknownEntity, e)
}

// Alive reports whether e names a live entity.
func (s *Store) Alive(e Entity) bool { return s.lookup(e) != nil }

// Len returns the number of live entities.
func (s *Store) Len() int { return s.live }

// Label returns the label e was created with.
func (s *Store) Label(e Entity) string {
	if sl := s.lookup(e); sl != nil {
		return sl.label
	}
	return ""
}

// AddComponent attaches c to e, replacing any component of the same kind.
func (s *Store) AddComponent(e Entity, c Component) error {
	if s.lookup(e) == nil {
		return unknown(e)
	}
	if c == nil {
		return ErrNilComponent
	}
	s.mutate(func() { s.setComponent(e, c) })
	return nil
}

// AddComponents attaches cs to e in reverse order. When two components share
// a kind, the one that appears first in cs is the one left on the entity.
func (s *Store) AddComponents(e Entity, cs ...Component) error {
	if s.lookup(e) == nil {
		return unknown(e)
	}
	for _, c := range cs {
		if c == nil {
			return ErrNilComponent
		}
	}
	for i := len(cs) - 1; i >= 0; i-- {
		c := cs[i]
		s.mutate(func() { s.setComponent(e, c) })
	}
	return nil
}

func (s *Store) setComponent(e Entity, c Component) {
	sl := s.lookup(e)
	if sl == nil {
		// destroyed by an earlier queued change
		return
	}
	if sl.comps == nil {
		sl.comps = make(map[Kind]Component)
	}
	k := c.Kind()
	sl.comps[k] = c
	set, ok := s.byKind[k]
	if !ok {
		set = make(map[Entity]struct{})
		s.byKind[k] = set
	}
	set[e] = struct{}{}
}

// RemoveComponent detaches the component of kind k from e.
func (s *Store) RemoveComponent(e Entity, k Kind) error {
	sl := s.lookup(e)
	if sl == nil {
		return unknown(e)
	}
	if _, ok := sl.comps[k]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrComponentNotFound, k, e)
	}
	s.mutate(func() {
		if sl := s.lookup(e); sl != nil {
			delete(sl.comps, k)
			s.unindex(e, k)
		}
	})
	return nil
}

func (s *Store) unindex(e Entity, k Kind) {
	if set, ok := s.byKind[k]; ok {
		delete(set, e)
		if len(set) == 0 {
			delete(s.byKind, k)
		}
	}
}

// Has reports whether e carries a component of kind k.
func (s *Store) Has(e Entity, k Kind) bool {
	sl := s.lookup(e)
	if sl == nil {
		return false
	}
	_, ok := sl.comps[k]
	return ok
}

// Component returns the component of kind k attached to e.
func (s *Store) Component(e Entity, k Kind) (Component, error) {
	sl := s.lookup(e)
	if sl == nil {
		return nil, unknown(e)
	}
	c, ok := sl.comps[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrComponentNotFound, k, e)
	}
	return c, nil
}

// Get returns the component of kind k on e as a T.
func Get[T Component](s *Store, e Entity, k Kind) (T, error) {
	var zero T
	c, err := s.Component(e, k)
	if err != nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrComponentType, k, c)
	}
	return t, nil
}

// EntitiesHavingAll returns the entities that carry every kind in kinds,
// in creation order. An empty kinds list yields an empty result.
func (s *Store) EntitiesHavingAll(kinds ...Kind) []Entity {
	if len(kinds) == 0 {
		return nil
	}

	// Walk the smallest index and look up the others.
	smallest := -1
	for i, k := range kinds {
		set := s.byKind[k]
		if len(set) == 0 {
			return nil
		}
		if smallest < 0 || len(set) < len(s.byKind[kinds[smallest]]) {
			smallest = i
		}
	}

	var out []Entity
outer:
	for e := range s.byKind[kinds[smallest]] {
		for i, k := range kinds {
			if i == smallest {
				continue
			}
			if _, ok := s.byKind[k][e]; !ok {
				continue outer
			}
		}
		out = append(out, e)
	}
	s.sortByCreation(out)
	return out
}

// EntitiesWithComponents returns the entities that carry at least one kind
// in kinds, in creation order and without duplicates.
func (s *Store) EntitiesWithComponents(kinds ...Kind) []Entity {
	if len(kinds) == 1 {
		set := s.byKind[kinds[0]]
		out := make([]Entity, 0, len(set))
		for e := range set {
			out = append(out, e)
		}
		s.sortByCreation(out)
		return out
	}

	seen := make(map[Entity]struct{})
	var out []Entity
	for _, k := range kinds {
		for e := range s.byKind[k] {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	s.sortByCreation(out)
	return out
}

func (s *Store) sortByCreation(es []Entity) {
	slices.SortFunc(es, func(a, b Entity) int {
		return cmp.Compare(s.slots[a.index()].serial, s.slots[b.index()].serial)
	})
}

// Destroy removes e and all its components. Children of e become roots.
func (s *Store) Destroy(e Entity) error {
	if s.lookup(e) == nil {
		return unknown(e)
	}
	s.mutate(func() { s.destroy(e) })
	return nil
}

func (s *Store) destroy(e Entity) {
	sl := s.lookup(e)
	if sl == nil {
		return
	}
	for k := range sl.comps {
		s.unindex(e, k)
	}
	if sl.parent != NoEntity {
		s.detach(sl.parent, e)
	}
	for _, c := range sl.children {
		if cs := s.lookup(c); cs != nil {
			cs.parent = NoEntity
		}
	}

	idx := e.index()
	gen := sl.gen + 1
	if gen == 0 {
		gen = 1
	}
	*sl = slot{gen: gen}
	s.free = append(s.free, idx)
	s.live--
}

// Clear destroys every entity. Handles issued before Clear stay invalid
// afterwards.
func (s *Store) Clear() {
	s.mutate(func() {
		for i := range s.slots {
			sl := &s.slots[i]
			if !sl.alive {
				continue
			}
			gen := sl.gen + 1
			if gen == 0 {
				gen = 1
			}
			*sl = slot{gen: gen}
			s.free = append(s.free, uint32(i))
		}
		s.byKind = make(map[Kind]map[Entity]struct{})
		s.live = 0
	})
}
