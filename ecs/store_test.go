package ecs

import (
	"errors"
	"slices"
	"testing"
)

var (
	posKind   = NewKind("position")
	velKind   = NewKind("velocity")
	colorKind = NewKind("color")
)

type position struct{ x, y float32 }

func (position) Kind() Kind { return posKind }

type velocity struct{ dx float32 }

func (velocity) Kind() Kind { return velKind }

type color struct{ name string }

func (color) Kind() Kind { return colorKind }

func TestCreateDistinctHandles(t *testing.T) {
	s := NewStore()
	a := s.Create("a")
	b := s.Create("b")
	if a == b || a == NoEntity || b == NoEntity {
		t.Fatalf("Create returned %v and %v", a, b)
	}
	if s.Label(a) != "a" || s.Label(b) != "b" {
		t.Errorf("labels = %q, %q", s.Label(a), s.Label(b))
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestAddComponentUnknownEntity(t *testing.T) {
	s := NewStore()
	if err := s.AddComponent(Entity(12345), position{}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("AddComponent on never-created entity = %v, want ErrUnknownEntity", err)
	}

	e := s.Create("")
	if err := s.Destroy(e); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := s.AddComponent(e, position{}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("AddComponent on destroyed entity = %v, want ErrUnknownEntity", err)
	}
}

func TestStaleHandleAfterReuse(t *testing.T) {
	s := NewStore()
	old := s.Create("old")
	_ = s.Destroy(old)
	fresh := s.Create("fresh")

	if old.index() != fresh.index() {
		t.Fatalf("slot not reused: %v vs %v", old, fresh)
	}
	if old == fresh {
		t.Fatal("reused slot produced the same handle")
	}
	if s.Alive(old) {
		t.Error("stale handle reported alive")
	}
	if _, err := s.Component(old, posKind); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Component(stale) = %v, want ErrUnknownEntity", err)
	}
}

func TestAddComponentOverwrites(t *testing.T) {
	s := NewStore()
	e := s.Create("")
	_ = s.AddComponent(e, position{x: 1})
	_ = s.AddComponent(e, position{x: 2})

	got, err := Get[position](s, e, posKind)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.x != 2 {
		t.Errorf("x = %v, want 2", got.x)
	}
	if n := len(s.EntitiesWithComponents(posKind)); n != 1 {
		t.Errorf("index has %d entries, want 1", n)
	}
}

func TestAddComponentsFirstWins(t *testing.T) {
	s := NewStore()
	e := s.Create("")
	a := color{name: "override"}
	b := color{name: "default"}

	if err := s.AddComponents(e, a, b, position{x: 7}); err != nil {
		t.Fatalf("AddComponents: %v", err)
	}
	got, err := s.Component(e, colorKind)
	if err != nil {
		t.Fatalf("Component: %v", err)
	}
	if got != a {
		t.Errorf("Component = %v, want %v", got, a)
	}
	if !s.Has(e, posKind) {
		t.Error("position not attached")
	}
}

func TestComponentNotFound(t *testing.T) {
	s := NewStore()
	e := s.Create("")
	if _, err := s.Component(e, velKind); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("Component = %v, want ErrComponentNotFound", err)
	}
	_ = s.AddComponent(e, position{})
	if _, err := Get[velocity](s, e, posKind); !errors.Is(err, ErrComponentType) {
		t.Errorf("Get with wrong type = %v, want ErrComponentType", err)
	}
}

// fixture: e0{pos}, e1{pos,vel}, e2{vel,color}, e3{pos,vel,color}, e4{}
func fixture(t *testing.T) (*Store, []Entity) {
	t.Helper()
	s := NewStore()
	es := make([]Entity, 5)
	for i := range es {
		es[i] = s.Create("")
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.AddComponent(es[0], position{}))
	must(s.AddComponents(es[1], position{}, velocity{}))
	must(s.AddComponents(es[2], velocity{}, color{}))
	must(s.AddComponents(es[3], color{}, velocity{}, position{}))
	return s, es
}

func TestEntitiesHavingAll(t *testing.T) {
	s, es := fixture(t)

	tests := []struct {
		name  string
		kinds []Kind
		want  []Entity
	}{
		{"empty", nil, nil},
		{"pos", []Kind{posKind}, []Entity{es[0], es[1], es[3]}},
		{"pos+vel", []Kind{posKind, velKind}, []Entity{es[1], es[3]}},
		{"all three", []Kind{colorKind, posKind, velKind}, []Entity{es[3]}},
		{"unused kind", []Kind{posKind, NewKind("unused")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.EntitiesHavingAll(tt.kinds...)
			if !slices.Equal(got, tt.want) {
				t.Errorf("EntitiesHavingAll = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntitiesHavingAllMatchesScan(t *testing.T) {
	s, es := fixture(t)
	sets := [][]Kind{{posKind}, {velKind}, {posKind, colorKind}, {velKind, colorKind}}
	for _, kinds := range sets {
		var want []Entity
		for _, e := range es {
			all := true
			for _, k := range kinds {
				all = all && s.Has(e, k)
			}
			if all {
				want = append(want, e)
			}
		}
		if got := s.EntitiesHavingAll(kinds...); !slices.Equal(got, want) {
			t.Errorf("EntitiesHavingAll(%v) = %v, scan = %v", kinds, got, want)
		}
	}
}

func TestEntitiesWithComponentsUnion(t *testing.T) {
	s, es := fixture(t)

	got := s.EntitiesWithComponents(posKind, velKind)
	want := []Entity{es[0], es[1], es[2], es[3]}
	if !slices.Equal(got, want) {
		t.Fatalf("EntitiesWithComponents = %v, want %v", got, want)
	}

	got = s.EntitiesWithComponents(posKind, velKind, colorKind, posKind)
	if !slices.Equal(got, want) {
		t.Errorf("duplicate kinds: got %v, want %v", got, want)
	}

	if got := s.EntitiesWithComponents(); len(got) != 0 {
		t.Errorf("no kinds: got %v", got)
	}
	if got := s.EntitiesWithComponents(colorKind); !slices.Equal(got, []Entity{es[2], es[3]}) {
		t.Errorf("color: got %v", got)
	}
}

func TestRemoveComponentUpdatesIndex(t *testing.T) {
	s, es := fixture(t)
	if err := s.RemoveComponent(es[1], velKind); err != nil {
		t.Fatalf("RemoveComponent: %v", err)
	}
	if got := s.EntitiesHavingAll(posKind, velKind); !slices.Equal(got, []Entity{es[3]}) {
		t.Errorf("after remove: %v", got)
	}
	if err := s.RemoveComponent(es[1], velKind); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("second remove = %v, want ErrComponentNotFound", err)
	}
}

func TestDestroyRemovesFromIndexes(t *testing.T) {
	s, es := fixture(t)
	if err := s.Destroy(es[3]); err != nil {
		t.Fatal(err)
	}
	for _, k := range []Kind{posKind, velKind, colorKind} {
		if slices.Contains(s.EntitiesWithComponents(k), es[3]) {
			t.Errorf("destroyed entity still indexed under %v", k)
		}
	}
	if err := s.Destroy(es[3]); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("double destroy = %v", err)
	}
}

func TestClear(t *testing.T) {
	s, es := fixture(t)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
	if got := s.EntitiesWithComponents(posKind); len(got) != 0 {
		t.Errorf("index not cleared: %v", got)
	}
	e := s.Create("")
	for _, old := range es {
		if old == e {
			t.Fatalf("handle %v reused after Clear", e)
		}
	}
}

func TestPassDefersStructuralChanges(t *testing.T) {
	s := NewStore()
	a := s.Create("a")
	_ = s.AddComponent(a, position{})

	s.BeginPass()
	b := s.Create("b")
	if err := s.AddComponent(b, position{}); err != nil {
		t.Fatalf("AddComponent in pass: %v", err)
	}
	if err := s.Destroy(a); err != nil {
		t.Fatalf("Destroy in pass: %v", err)
	}

	if got := s.EntitiesWithComponents(posKind); !slices.Equal(got, []Entity{a}) {
		t.Errorf("in pass: %v, want [%v]", got, a)
	}
	if s.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", s.Pending())
	}

	s.EndPass()
	if got := s.EntitiesWithComponents(posKind); !slices.Equal(got, []Entity{b}) {
		t.Errorf("after pass: %v, want [%v]", got, b)
	}
}

func TestNestedPass(t *testing.T) {
	s := NewStore()
	e := s.Create("")
	s.BeginPass()
	s.BeginPass()
	_ = s.AddComponent(e, position{})
	s.EndPass()
	if s.Has(e, posKind) {
		t.Error("change applied before outermost pass ended")
	}
	s.EndPass()
	if !s.Has(e, posKind) {
		t.Error("change not applied after pass")
	}
}

func TestScenes(t *testing.T) {
	s := NewStore()
	main := s.NewScene("main")
	e := s.Create("")
	if s.SceneOf(e) != NoScene {
		t.Errorf("new entity scene = %v", s.SceneOf(e))
	}
	if err := s.SetScene(e, main); err != nil {
		t.Fatal(err)
	}
	if s.SceneOf(e) != main || s.SceneName(main) != "main" {
		t.Errorf("SceneOf = %v (%q)", s.SceneOf(e), s.SceneName(s.SceneOf(e)))
	}
	if err := s.SetScene(e, Scene(99)); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("SetScene(99) = %v", err)
	}
}

func TestHierarchy(t *testing.T) {
	s := NewStore()
	root := s.Create("root")
	a := s.Create("a")
	b := s.Create("b")

	if err := s.SetParent(a, root); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParent(b, a); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParent(root, b); !errors.Is(err, ErrHierarchyCycle) {
		t.Errorf("cycle = %v, want ErrHierarchyCycle", err)
	}
	if got := s.Children(root); !slices.Equal(got, []Entity{a}) {
		t.Errorf("Children(root) = %v", got)
	}

	if err := s.SetParent(b, root); err != nil {
		t.Fatal(err)
	}
	if got := s.Children(a); len(got) != 0 {
		t.Errorf("b still under a: %v", got)
	}

	_ = s.Destroy(root)
	if s.Parent(a) != NoEntity || s.Parent(b) != NoEntity {
		t.Error("children not orphaned on parent destroy")
	}
}
