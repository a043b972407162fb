// Package unity reads values that live behind scene-graph objects and
// reflectively discovered field offsets in a running Unity (Mono/IL2CPP)
// game.
//
// The scene graph and the runtime type metadata are external boundaries:
// this package only consumes them through SceneGraph and Metadata, caches
// what is expensive to rediscover, and never trusts a cached object outside
// the scene it was found in.
package unity

import (
	"errors"
	"fmt"

	"memwatch/memory"
)

// Object is an opaque handle to a scene-graph game object.
type Object memory.Address

func (o Object) String() string { return memory.Address(o).String() }

// Class is an opaque handle to a runtime class.
type Class memory.Address

func (c Class) String() string { return memory.Address(c).String() }

// SceneGraph is the scene manager boundary.
type SceneGraph interface {
	CurrentSceneName() (string, error)
	FindRootObject(name string) (Object, error)
	FindChild(parent Object, name string) (Object, error)
	IsActiveInHierarchy(obj Object) (bool, error)
	// Component returns the instance address of the component of the given
	// type attached to obj.
	Component(obj Object, typeName string) (memory.Address, error)
}

// Metadata is the runtime type metadata boundary.
type Metadata interface {
	ClassOf(obj memory.Address) (Class, error)
	FieldOffset(c Class, field string) (uint64, error)
}

// ClassLookup extends Metadata with name-based class discovery, used by
// paths rooted at a class's static fields.
type ClassLookup interface {
	Metadata
	FindClass(name string) (Class, error)
	Parent(c Class) (Class, error)
	StaticTable(c Class) (memory.Address, error)
}

// Runtime bundles the handles borrowed from one attach session. Every
// locator and field path built from it shares them; dropping the Runtime at
// detach drops them all.
type Runtime struct {
	Memory memory.Readable
	Width  memory.PointerWidth
	Scenes SceneGraph
	Meta   Metadata
}

var (
	// ErrSceneMismatch is an expected, transient condition: the target is
	// in a different scene than the one a path belongs to.
	ErrSceneMismatch = errors.New("scene mismatch")

	// ErrNotFound is returned by boundary implementations when a named
	// object, class or component does not exist.
	ErrNotFound = errors.New("not found")

	// ErrFieldNotFound is returned when a class has no field of that name.
	ErrFieldNotFound = errors.New("field not found")

	// ErrTooDeep is returned for field chains longer than MaxDepth.
	ErrTooDeep = errors.New("field chain too deep")

	// ErrNoClassLookup is returned when a class-rooted path is built over
	// metadata that cannot find classes by name.
	ErrNoClassLookup = errors.New("metadata does not support class lookup")
)

// SceneMismatchError carries the expected and the active scene names.
type SceneMismatchError struct {
	Expected string
	Active   string
}

func (e *SceneMismatchError) Error() string {
	return fmt.Sprintf("in scene %q while expected scene was %q", e.Active, e.Expected)
}

func (e *SceneMismatchError) Unwrap() error { return ErrSceneMismatch }

// requireScene fails unless the active scene is the expected one.
func requireScene(g SceneGraph, expected string) error {
	active, err := g.CurrentSceneName()
	if err != nil {
		return fmt.Errorf("failed to get current scene: %w", err)
	}
	if active != expected {
		return &SceneMismatchError{Expected: expected, Active: active}
	}
	return nil
}

// findObject walks from a root object through children by name.
func findObject(g SceneGraph, root string, path []string) (Object, error) {
	obj, err := g.FindRootObject(root)
	if err != nil {
		return 0, fmt.Errorf("couldn't find root object %q: %w", root, err)
	}
	for _, name := range path {
		obj, err = g.FindChild(obj, name)
		if err != nil {
			return 0, fmt.Errorf("couldn't find child %q under %q: %w", name, root, err)
		}
	}
	return obj, nil
}
