//go:build linux

package process

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memwatch/memory"
)

func TestOpenSelf(t *testing.T) {
	p, err := Open(os.Getpid())
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IsOpen())
	exe, err := os.Executable()
	require.NoError(t, err)

	m, err := p.MainModule()
	require.NoError(t, err, "modules: %v", p.Modules())
	assert.Equal(t, filepath.Base(exe), m.Name)
	assert.Less(t, m.Start, m.End)

	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[8:], 0xDEADBEEFCAFE)
	addr := memory.Address(uintptr(unsafe.Pointer(&data[0])))

	v, err := memory.Read[uint64](p, addr, memory.Width64, []uint64{8})
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEFCAFE), v)

	_, err = memory.Read[uint64](p, 0, memory.Width64, []uint64{0x10})
	assert.Error(t, err)
}

func TestFindMissing(t *testing.T) {
	_, err := Find("no-such-process-name-here")
	assert.ErrorIs(t, err, ErrNotFound)
}
