package process

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memwatch/driver"
	"memwatch/memory"
)

func TestMatchName(t *testing.T) {
	tests := []struct {
		names []string
		comm  string
		exe   string
		want  string
		ok    bool
	}{
		{[]string{"Cuphead.exe"}, "Cuphead.exe", "", "Cuphead.exe", true},
		{[]string{"cuphead.exe"}, "Cuphead.exe", "", "cuphead.exe", true},
		{[]string{"HollowKnight.exe", "Hollow Knight"}, "Hollow Knight", "/opt/hk/Hollow Knight", "Hollow Knight", true},
		{[]string{"ReallyLongGameName.x86_64"}, "ReallyLongGameN", "", "ReallyLongGameName.x86_64", true},
		{[]string{"game"}, "wine64", "/games/bin/game", "game", true},
		{[]string{"game"}, "other", "/usr/bin/other", "", false},
	}
	for _, tt := range tests {
		got, ok := matchName(tt.names, tt.comm, tt.exe)
		assert.Equal(t, tt.ok, ok, "matchName(%v, %q, %q)", tt.names, tt.comm, tt.exe)
		assert.Equal(t, tt.want, got)
	}
}

func fakeProcess(mem *memory.Buffer, alive *bool) *Process {
	return &Process{
		PID:  42,
		Name: "game",
		Exe:  "/games/game.bin",
		modules: []Module{
			{Name: "libc.so.6", Path: "/lib/libc.so.6", Start: 0x7f0000, End: 0x7f8000},
			{Name: "game.bin", Path: "/games/game.bin", Start: 0x400000, End: 0x500000},
		},
		read:  mem.ReadMemory,
		alive: func() bool { return *alive },
	}
}

func TestProcess_Modules(t *testing.T) {
	alive := true
	p := fakeProcess(memory.NewBuffer(0, nil), &alive)

	m, err := p.MainModule()
	require.NoError(t, err)
	assert.Equal(t, memory.Address(0x400000), m.Start)
	assert.Equal(t, uint64(0x100000), m.Size())

	m, err = p.Module("LIBC.so.6")
	require.NoError(t, err)
	assert.Equal(t, "/lib/libc.so.6", m.Path)

	_, err = p.Module("missing.so")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Len(t, p.Modules(), 2)
}

func TestProcess_ReadAndClose(t *testing.T) {
	alive := true
	mem := memory.NewBuffer(0x1000, []byte{0x10, 0x20, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0})
	p := fakeProcess(mem, &alive)

	v, err := memory.Read[uint32](p, 0x1000, memory.Width64, []uint64{8})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)
	assert.True(t, p.IsOpen())

	alive = false
	assert.False(t, p.IsOpen())
	alive = true

	require.NoError(t, p.Close())
	assert.False(t, p.IsOpen())
	assert.Error(t, p.ReadMemory(0x1000, make([]byte, 4)))
}

func TestAttacher(t *testing.T) {
	alive := true
	a := NewAttacher(nil, "game")

	a.find = func(names ...string) (*Process, error) {
		return nil, ErrNotFound
	}
	_, err := a.Attach(context.Background())
	assert.ErrorIs(t, err, driver.ErrNotAttached)

	denied := errors.New("permission denied")
	a.find = func(names ...string) (*Process, error) { return nil, denied }
	_, err = a.Attach(context.Background())
	assert.ErrorIs(t, err, denied)
	assert.NotErrorIs(t, err, driver.ErrNotAttached)

	a.find = func(names ...string) (*Process, error) {
		assert.Equal(t, []string{"game"}, names)
		return fakeProcess(memory.NewBuffer(0, make([]byte, 8)), &alive), nil
	}
	s, err := a.Attach(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "game (pid 42)", s.Name)
	assert.True(t, s.Open())
	require.NoError(t, s.Close())
	assert.False(t, s.Open())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Attach(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
