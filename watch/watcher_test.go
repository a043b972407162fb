package watch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSource = errors.New("source failed")

// countingSource returns scripted values and counts invocations.
type countingSource[T any] struct {
	calls  int
	values []T
	errs   []error
}

func (s *countingSource[T]) Get() (T, error) {
	i := s.calls
	s.calls++
	var zero T
	if i < len(s.errs) && s.errs[i] != nil {
		return zero, s.errs[i]
	}
	if i < len(s.values) {
		return s.values[i], nil
	}
	return zero, errSource
}

func TestWatcher_OldEmptyBeforeFirstCurrent(t *testing.T) {
	w := New[int](&countingSource[int]{values: []int{1}})

	_, ok := w.Old()
	assert.False(t, ok)
}

func TestWatcher_SourceCalledOncePerTick(t *testing.T) {
	src := &countingSource[int]{values: []int{10, 20}}
	w := New[int](src)

	for range 5 {
		v, err := w.Current()
		require.NoError(t, err)
		assert.Equal(t, 10, v)
	}
	assert.Equal(t, 1, src.calls)

	w.Invalidate()
	for range 3 {
		v, err := w.Current()
		require.NoError(t, err)
		assert.Equal(t, 20, v)
	}
	assert.Equal(t, 2, src.calls)
}

func TestWatcher_FailureCachedForTick(t *testing.T) {
	src := &countingSource[int]{errs: []error{errSource}, values: []int{0, 5}}
	w := New[int](src)

	_, err := w.Current()
	require.ErrorIs(t, err, errSource)
	_, err = w.Current()
	require.ErrorIs(t, err, errSource)
	assert.Equal(t, 1, src.calls)

	w.Invalidate()
	_, ok := w.Old()
	assert.False(t, ok, "a failure never becomes old")

	v, err := w.Current()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestWatcher_InvalidateMovesCurrentToOld(t *testing.T) {
	w := New[int](&countingSource[int]{values: []int{1, 2, 3}})

	_, err := w.Current()
	require.NoError(t, err)
	w.Invalidate()

	old, ok := w.Old()
	require.True(t, ok)
	assert.Equal(t, 1, old)
}

func TestWatcher_NoCarryForward(t *testing.T) {
	w := New[int](&countingSource[int]{values: []int{1, 2}})

	_, err := w.Current()
	require.NoError(t, err)
	w.Invalidate()
	_, ok := w.Old()
	require.True(t, ok)

	// Current never read this tick: old becomes empty, not 1.
	w.Invalidate()
	_, ok = w.Old()
	assert.False(t, ok)
}

func TestWatcher_DefaultParticipatesInChangeDetection(t *testing.T) {
	src := &countingSource[bool]{
		errs:   []error{errSource, nil},
		values: []bool{false, false},
	}
	w := New[bool](src).WithDefault(true)

	v, err := w.Current()
	require.NoError(t, err)
	assert.True(t, v, "default substituted on failure")

	w.Invalidate()
	old, ok := w.Old()
	require.True(t, ok)
	assert.True(t, old, "default becomes old")

	changed, err := w.Changed()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestWatcher_WithZeroDefault(t *testing.T) {
	w := New[float32](&countingSource[float32]{errs: []error{errSource}}).WithZeroDefault()

	v, err := w.Current()
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestWatcher_Changed(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   []bool
	}{
		{"first observation is never a change", []int{4}, []bool{false}},
		{"same value", []int{4, 4}, []bool{false, false}},
		{"different value", []int{4, 5, 5, 6}, []bool{false, true, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New[int](&countingSource[int]{values: tt.values})
			for i, want := range tt.want {
				got, err := w.Changed()
				require.NoError(t, err)
				if i == 0 {
					// Changed with no old value does not read current.
					_, err = w.Current()
					require.NoError(t, err)
				}
				assert.Equal(t, want, got, "tick %d", i)
				w.Invalidate()
			}
		})
	}
}

func TestWatcher_ChangedPropagatesFailure(t *testing.T) {
	src := &countingSource[int]{values: []int{1}, errs: []error{nil, errSource}}
	w := New[int](src)

	_, err := w.Current()
	require.NoError(t, err)
	w.Invalidate()

	_, err = w.Changed()
	assert.ErrorIs(t, err, errSource)
}

func TestWatcher_Observed(t *testing.T) {
	w := Func(func() (int, error) { return 1, nil })
	assert.False(t, w.Observed())
	_, _ = w.Current()
	assert.True(t, w.Observed())
	w.Invalidate()
	assert.False(t, w.Observed())
}

func TestEdges(t *testing.T) {
	src := &countingSource[bool]{values: []bool{false, true, true, false}}
	w := New[bool](src)

	type edge struct{ rose, fell bool }
	want := []edge{{false, false}, {true, false}, {false, false}, {false, true}}
	for i, e := range want {
		_, err := w.Current()
		require.NoError(t, err)
		rose, err := Rose(w)
		require.NoError(t, err)
		fell, err := Fell(w)
		require.NoError(t, err)
		assert.Equal(t, e, edge{rose, fell}, "tick %d", i)
		w.Invalidate()
	}
}

func TestChangedFrom(t *testing.T) {
	w := New[string](&countingSource[string]{values: []string{"title", "level_1"}})
	_, _ = w.Current()
	w.Invalidate()

	got, err := ChangedFrom(w, "title")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ChangedTo(w, "title")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSet_Invalidate(t *testing.T) {
	var s Set
	a := Track(&s, New[int](&countingSource[int]{values: []int{1, 2}}))
	b := Track(&s, New[string](&countingSource[string]{values: []string{"x", "y"}}))
	require.Equal(t, 2, s.Len())

	_, _ = a.Current()
	_, _ = b.Current()
	s.Invalidate()

	oa, ok := a.Old()
	require.True(t, ok)
	assert.Equal(t, 1, oa)
	ob, ok := b.Old()
	require.True(t, ok)
	assert.Equal(t, "x", ob)
}

func TestChangedTo_ObservesEveryTick(t *testing.T) {
	w := New[string](&countingSource[string]{values: []string{"menu", "menu", "level_1"}})

	var got []bool
	for range 3 {
		entered, err := ChangedTo(w, "level_1")
		require.NoError(t, err)
		got = append(got, entered)
		w.Invalidate()
	}
	assert.Equal(t, []bool{false, false, true}, got)
}
