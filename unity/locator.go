package unity

import (
	"fmt"
	"strings"
)

// ObjectLocator finds a game object by root name and child path within one
// scene and reports whether it is active in the hierarchy.
//
// The object is looked up once and reused for as long as the expected scene
// stays active. Only an observed scene change forces a new lookup; a failed
// leaf read leaves the cached object in place.
type ObjectLocator struct {
	rt    *Runtime
	scene string
	root  string
	path  []string

	cached *Object
}

// NewObjectLocator creates a locator for root/path[0]/path[1]/... in scene.
func NewObjectLocator(rt *Runtime, scene, root string, path ...string) *ObjectLocator {
	return &ObjectLocator{
		rt:    rt,
		scene: scene,
		root:  root,
		path:  append([]string(nil), path...),
	}
}

// Locate returns the object, resolving it if nothing is cached. Any failure
// to confirm the scene clears the cache.
func (l *ObjectLocator) Locate() (Object, error) {
	if err := requireScene(l.rt.Scenes, l.scene); err != nil {
		l.cached = nil
		return 0, fmt.Errorf("unable to locate %s: %w", l, err)
	}
	if l.cached != nil {
		return *l.cached, nil
	}
	obj, err := findObject(l.rt.Scenes, l.root, l.path)
	if err != nil {
		return 0, err
	}
	l.cached = &obj
	return obj, nil
}

// Get reports whether the located object is active in the hierarchy.
func (l *ObjectLocator) Get() (bool, error) {
	obj, err := l.Locate()
	if err != nil {
		return false, err
	}
	active, err := l.rt.Scenes.IsActiveInHierarchy(obj)
	if err != nil {
		return false, fmt.Errorf("couldn't get active state of %s: %w", l, err)
	}
	return active, nil
}

// Resolved reports whether an object is cached.
func (l *ObjectLocator) Resolved() bool {
	return l.cached != nil
}

// Forget drops the cached object.
func (l *ObjectLocator) Forget() {
	l.cached = nil
}

func (l *ObjectLocator) String() string {
	parts := append([]string{l.root}, l.path...)
	return fmt.Sprintf("%s:%s", l.scene, strings.Join(parts, "/"))
}
