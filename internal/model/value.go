package model

import (
	"fmt"
	"math"
	"strconv"

	"memwatch/internal/config"
	"memwatch/memory"
	"memwatch/pointerpath"
	"memwatch/split"
	"memwatch/timer"
	"memwatch/watch"
)

// Value is one configured watcher with its path and rendering.
type Value struct {
	Name    string
	Type    string
	Path    pointerpath.Path
	Publish bool

	watcher any
	inv     watch.Invalidator
	binding split.Binding
	format  func() (string, error)
	seconds func() (float64, error)
}

// Format reads the current value and renders it for display.
func (v *Value) Format() (string, error) { return v.format() }

// Binding exposes the watcher to split rules.
func (v *Value) Binding() split.Binding { return v.binding }

// Invalidate ends the tick for the underlying watcher.
func (v *Value) Invalidate() { v.inv.Invalidate() }

// Watcher returns the typed watcher behind v.
func Watcher[T comparable](v *Value) (*watch.Watcher[T], error) {
	w, ok := v.watcher.(*watch.Watcher[T])
	if !ok {
		return nil, fmt.Errorf("watcher %s is %s, not %T", v.Name, v.Type, *new(T))
	}
	return w, nil
}

// newValue wires a watcher over src, parsing the configured default with
// parse. render formats a T for display.
func newValue[T comparable](wc config.Watcher, p pointerpath.Path, src watch.Source[T], parse func(string) (T, error), render func(T) string) (*Value, error) {
	w := watch.New(src)
	if wc.Default != nil {
		d, err := parse(*wc.Default)
		if err != nil {
			return nil, fmt.Errorf("watcher %s: default %q: %w", wc.Name, *wc.Default, err)
		}
		w.WithDefault(d)
	}
	return &Value{
		Name:    wc.Name,
		Type:    wc.Type,
		Path:    p,
		Publish: wc.Publish,
		watcher: w,
		inv:     w,
		binding: split.Bind(w),
		format: func() (string, error) {
			cur, err := w.Current()
			if err != nil {
				return "", err
			}
			return render(cur), nil
		},
	}, nil
}

func integer[T ~int8 | ~int16 | ~int32 | ~int64](wc config.Watcher, p pointerpath.Path, bits int) (*Value, error) {
	v, err := newValue(wc, p, pointerpath.Value[T](p),
		func(s string) (T, error) {
			n, err := strconv.ParseInt(s, 0, bits)
			return T(n), err
		},
		func(n T) string { return renderInt(wc.Format, true, int64(n), uint64(n)) },
	)
	if err != nil {
		return nil, err
	}
	w := v.watcher.(*watch.Watcher[T])
	v.seconds = func() (float64, error) {
		n, err := w.Current()
		return float64(n), err
	}
	return v, nil
}

func unsigned[T ~uint8 | ~uint16 | ~uint32 | ~uint64](wc config.Watcher, p pointerpath.Path, bits int) (*Value, error) {
	v, err := newValue(wc, p, pointerpath.Value[T](p),
		func(s string) (T, error) {
			n, err := strconv.ParseUint(s, 0, bits)
			return T(n), err
		},
		func(n T) string { return renderInt(wc.Format, false, int64(n), uint64(n)) },
	)
	if err != nil {
		return nil, err
	}
	w := v.watcher.(*watch.Watcher[T])
	v.seconds = func() (float64, error) {
		n, err := w.Current()
		return float64(n), err
	}
	return v, nil
}

func float[T ~float32 | ~float64](wc config.Watcher, p pointerpath.Path, bits int) (*Value, error) {
	v, err := newValue(wc, p, pointerpath.Value[T](p),
		func(s string) (T, error) {
			f, err := strconv.ParseFloat(s, bits)
			return T(f), err
		},
		func(f T) string {
			if wc.Format == "seconds" {
				return timer.FormatSeconds(float64(f))
			}
			return strconv.FormatFloat(float64(f), 'g', -1, bits)
		},
	)
	if err != nil {
		return nil, err
	}
	w := v.watcher.(*watch.Watcher[T])
	v.seconds = func() (float64, error) {
		f, err := w.Current()
		return float64(f), err
	}
	return v, nil
}

func renderInt(format string, signed bool, n int64, u uint64) string {
	switch {
	case format == "hex":
		return fmt.Sprintf("0x%X", u)
	case format == "seconds" && signed:
		return timer.FormatSeconds(float64(n))
	case format == "seconds":
		return timer.FormatSeconds(float64(u))
	case signed:
		return strconv.FormatInt(n, 10)
	}
	return strconv.FormatUint(u, 10)
}

// build creates the Value for wc reading along p.
func build(wc config.Watcher, p pointerpath.Path) (*Value, error) {
	switch wc.Type {
	case "bool":
		return newValue(wc, p, pointerpath.Value[bool](p), strconv.ParseBool, strconv.FormatBool)
	case "i8":
		return integer[int8](wc, p, 8)
	case "i16":
		return integer[int16](wc, p, 16)
	case "i32":
		return integer[int32](wc, p, 32)
	case "i64":
		return integer[int64](wc, p, 64)
	case "u8":
		return unsigned[uint8](wc, p, 8)
	case "u16":
		return unsigned[uint16](wc, p, 16)
	case "u32":
		return unsigned[uint32](wc, p, 32)
	case "u64":
		return unsigned[uint64](wc, p, 64)
	case "f32":
		return float[float32](wc, p, 32)
	case "f64":
		return float[float64](wc, p, 64)
	case "string":
		src := watch.SourceFunc[string](func() (string, error) {
			s, err := pointerpath.Read[memory.CString](p)
			return s.String(), err
		})
		return newValue(wc, p, src,
			func(s string) (string, error) { return s, nil },
			func(s string) string { return s },
		)
	case "pointer":
		src := watch.SourceFunc[memory.Address](func() (memory.Address, error) {
			if p.Width() == memory.Width32 {
				a, err := pointerpath.Read[memory.Address32](p)
				return a.Address(), err
			}
			a, err := pointerpath.Read[memory.Address64](p)
			return a.Address(), err
		})
		return newValue(wc, p, src,
			func(s string) (memory.Address, error) {
				n, err := strconv.ParseUint(s, 0, 64)
				return memory.Address(n), err
			},
			memory.Address.String,
		)
	}
	return nil, fmt.Errorf("watcher %s: unknown type %q", wc.Name, wc.Type)
}

// validSeconds guards game-time values read from garbage memory.
func validSeconds(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0) && s >= 0
}
