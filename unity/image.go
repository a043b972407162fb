package unity

import "memwatch/watch"

// Image builds watchers over one attached Unity runtime.
type Image struct {
	rt *Runtime
}

// NewImage wraps rt.
func NewImage(rt *Runtime) *Image {
	return &Image{rt: rt}
}

// Runtime returns the wrapped runtime.
func (img *Image) Runtime() *Runtime { return img.rt }

// Active watches whether scene:root/path... is active in the hierarchy.
func (img *Image) Active(scene, root string, path ...string) *watch.Watcher[bool] {
	return watch.New[bool](NewObjectLocator(img.rt, scene, root, path...))
}

// Field watches a T reached through fields of a component on a scene object.
func Field[T comparable](img *Image, scene, root string, objectPath []string, component string, fields ...string) (*watch.Watcher[T], error) {
	p, err := NewFieldPath[T](img.rt, scene, root, objectPath, component, fields...)
	if err != nil {
		return nil, err
	}
	return watch.New[T](p), nil
}

// Path watches a T reached through the static fields of a class.
func Path[T comparable](img *Image, class string, parents int, fields ...string) (*watch.Watcher[T], error) {
	p, err := NewClassPath[T](img.rt, class, parents, fields...)
	if err != nil {
		return nil, err
	}
	return watch.New[T](p), nil
}
