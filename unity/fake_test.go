package unity

import (
	"encoding/binary"
	"fmt"

	"memwatch/memory"
)

// fakeScenes is an in-memory scene graph that counts lookups.
type fakeScenes struct {
	scene      string
	sceneErr   error
	roots      map[string]Object
	children   map[Object]map[string]Object
	active     map[Object]bool
	activeErr  error
	components map[Object]map[string]memory.Address

	rootCalls      int
	childCalls     int
	componentCalls int
}

func (f *fakeScenes) CurrentSceneName() (string, error) {
	if f.sceneErr != nil {
		return "", f.sceneErr
	}
	return f.scene, nil
}

func (f *fakeScenes) FindRootObject(name string) (Object, error) {
	f.rootCalls++
	obj, ok := f.roots[name]
	if !ok {
		return 0, ErrNotFound
	}
	return obj, nil
}

func (f *fakeScenes) FindChild(parent Object, name string) (Object, error) {
	f.childCalls++
	obj, ok := f.children[parent][name]
	if !ok {
		return 0, ErrNotFound
	}
	return obj, nil
}

func (f *fakeScenes) IsActiveInHierarchy(obj Object) (bool, error) {
	if f.activeErr != nil {
		return false, f.activeErr
	}
	return f.active[obj], nil
}

func (f *fakeScenes) Component(obj Object, typeName string) (memory.Address, error) {
	f.componentCalls++
	addr, ok := f.components[obj][typeName]
	if !ok {
		return 0, ErrNotFound
	}
	return addr, nil
}

// fakeMeta maps object addresses to classes and classes to field layouts.
type fakeMeta struct {
	classes map[memory.Address]Class
	fields  map[Class]map[string]uint64
	byName  map[string]Class
	parents map[Class]Class
	statics map[Class]memory.Address

	failClassOf map[memory.Address]bool
	failAll     bool

	classOfCalls     int
	fieldOffsetCalls int
	findClassCalls   int
}

func (f *fakeMeta) ClassOf(obj memory.Address) (Class, error) {
	f.classOfCalls++
	if f.failAll || f.failClassOf[obj] {
		return 0, fmt.Errorf("class of %s: %w", obj, ErrNotFound)
	}
	cls, ok := f.classes[obj]
	if !ok {
		return 0, ErrNotFound
	}
	return cls, nil
}

func (f *fakeMeta) FieldOffset(c Class, field string) (uint64, error) {
	f.fieldOffsetCalls++
	if f.failAll {
		return 0, ErrFieldNotFound
	}
	off, ok := f.fields[c][field]
	if !ok {
		return 0, ErrFieldNotFound
	}
	return off, nil
}

func (f *fakeMeta) FindClass(name string) (Class, error) {
	f.findClassCalls++
	cls, ok := f.byName[name]
	if !ok {
		return 0, ErrNotFound
	}
	return cls, nil
}

func (f *fakeMeta) Parent(c Class) (Class, error) {
	p, ok := f.parents[c]
	if !ok {
		return 0, ErrNotFound
	}
	return p, nil
}

func (f *fakeMeta) StaticTable(c Class) (memory.Address, error) {
	return f.statics[c], nil
}

const (
	classBehaviour Class = 0x10
	classPlayer    Class = 0x20
	classStats     Class = 0x30
	classManager   Class = 0x40
	classSingleton Class = 0x41

	objRoot   Object = 0x100
	objPlayer Object = 0x101
)

// world is a scene with one player object whose component reaches a health
// value through three fields:
//
//	component 0x1000 (Behaviour) .player @0x18 -> 0x2000
//	player    0x2000 (Player)    .stats  @0x30 -> 0x3000
//	stats     0x3000 (Stats)     .hp     @0x10 = 50 (u32)
//
// Singleton's static table at 0x1800 holds .instance @0x8 -> 0x2000.
type world struct {
	mem    *memory.Buffer
	scenes *fakeScenes
	meta   *fakeMeta
	rt     *Runtime
}

func newWorld() *world {
	w := &world{
		mem: memory.NewBuffer(0x1000, make([]byte, 0x3000)),
		scenes: &fakeScenes{
			scene:    "Level1",
			roots:    map[string]Object{"Game": objRoot},
			children: map[Object]map[string]Object{objRoot: {"Player": objPlayer}},
			active:   map[Object]bool{objPlayer: true},
			components: map[Object]map[string]memory.Address{
				objPlayer: {"Behaviour": 0x1000},
			},
		},
		meta: &fakeMeta{
			classes: map[memory.Address]Class{
				0x1000: classBehaviour,
				0x2000: classPlayer,
				0x3000: classStats,
				0x3800: classStats,
			},
			fields: map[Class]map[string]uint64{
				classBehaviour: {"player": 0x18},
				classPlayer:    {"stats": 0x30},
				classStats:     {"hp": 0x10},
				classSingleton: {"instance": 0x8},
			},
			byName:      map[string]Class{"GameManager": classManager},
			parents:     map[Class]Class{classManager: classSingleton},
			statics:     map[Class]memory.Address{classSingleton: 0x1800},
			failClassOf: map[memory.Address]bool{},
		},
	}
	w.put64(0x1018, 0x2000)
	w.put64(0x2030, 0x3000)
	w.put32(0x3010, 50)
	w.put64(0x1808, 0x2000)

	w.rt = &Runtime{
		Memory: memory.Chain(w.mem),
		Width:  memory.Width64,
		Scenes: w.scenes,
		Meta:   w.meta,
	}
	return w
}

func (w *world) put64(addr memory.Address, v uint64) {
	binary.LittleEndian.PutUint64(w.mem.Data[addr-w.mem.Base:], v)
}

func (w *world) put32(addr memory.Address, v uint32) {
	binary.LittleEndian.PutUint32(w.mem.Data[addr-w.mem.Base:], v)
}
