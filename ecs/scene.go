package ecs

import "fmt"

// Scene groups entities for rendering. The zero Scene means "no scene".
type Scene uint32

// NoScene is the scene of entities that were never assigned one.
const NoScene Scene = 0

// NewScene registers a scene and returns its id.
func (s *Store) NewScene(name string) Scene {
	s.scenes = append(s.scenes, name)
	return Scene(len(s.scenes))
}

// SceneName returns the name sc was registered with.
func (s *Store) SceneName(sc Scene) string {
	if sc == NoScene || int(sc) > len(s.scenes) {
		return ""
	}
	return s.scenes[sc-1]
}

// SetScene moves e into sc. Passing NoScene removes e from its scene.
func (s *Store) SetScene(e Entity, sc Scene) error {
	if s.lookup(e) == nil {
		return unknown(e)
	}
	if int(sc) > len(s.scenes) {
		return fmt.Errorf("%w: %d", ErrUnknownScene, sc)
	}
	s.mutate(func() {
		if sl := s.lookup(e); sl != nil {
			sl.scene = sc
		}
	})
	return nil
}

// SceneOf returns the scene e belongs to.
func (s *Store) SceneOf(e Entity) Scene {
	if sl := s.lookup(e); sl != nil {
		return sl.scene
	}
	return NoScene
}

// SetParent records parent as the parent of child. Passing NoEntity as
// parent detaches child. Only the relation is stored; transforms are not
// composed along it.
func (s *Store) SetParent(child, parent Entity) error {
	cs := s.lookup(child)
	if cs == nil {
		return unknown(child)
	}
	if parent != NoEntity {
		if s.lookup(parent) == nil {
			return unknown(parent)
		}
		for p := parent; p != NoEntity; p = s.slots[p.index()].parent {
			if p == child {
				return fmt.Errorf("%w: %s under %s", ErrHierarchyCycle, child, parent)
			}
		}
	}
	if cs.parent != NoEntity {
		s.detach(cs.parent, child)
	}
	cs.parent = parent
	if parent != NoEntity {
		ps := s.lookup(parent)
		ps.children = append(ps.children, child)
	}
	return nil
}

// Parent returns the parent of e, or NoEntity.
func (s *Store) Parent(e Entity) Entity {
	if sl := s.lookup(e); sl != nil {
		return sl.parent
	}
	return NoEntity
}

// Children returns the direct children of e in the order they were attached.
func (s *Store) Children(e Entity) []Entity {
	sl := s.lookup(e)
	if sl == nil || len(sl.children) == 0 {
		return nil
	}
	out := make([]Entity, len(sl.children))
	copy(out, sl.children)
	return out
}

func (s *Store) detach(parent, child Entity) {
	ps := s.lookup(parent)
	if ps == nil {
		return
	}
	for i, c := range ps.children {
		if c == child {
			ps.children = append(ps.children[:i], ps.children[i+1:]...)
			return
		}
	}
}
