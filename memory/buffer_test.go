package memory

import (
	"bytes"
	"testing"
)

func TestBuffer_ReadMemory(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	mb := NewBuffer(0x1000, data)

	tests := []struct {
		name      string
		addr      Address
		size      int
		wantBytes []byte
		wantErr   bool
	}{
		{
			name:      "read from start",
			addr:      0x1000,
			size:      4,
			wantBytes: []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			name:      "read from middle",
			addr:      0x1003,
			size:      3,
			wantBytes: []byte{0x04, 0x05, 0x06},
		},
		{
			name:      "read to end",
			addr:      0x1006,
			size:      2,
			wantBytes: []byte{0x07, 0x08},
		},
		{
			name:    "read past end is not partial",
			addr:    0x1007,
			size:    4,
			wantErr: true,
		},
		{
			name:    "read before buffer",
			addr:    0x0FFF,
			size:    4,
			wantErr: true,
		},
		{
			name:    "read after buffer",
			addr:    0x1008,
			size:    4,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			err := mb.ReadMemory(tt.addr, buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadMemory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(buf, tt.wantBytes) {
				t.Errorf("ReadMemory() bytes = %v, want %v", buf, tt.wantBytes)
			}
		})
	}
}

func TestBuffer_Contains(t *testing.T) {
	mb := NewBuffer(0x2000, make([]byte, 0x100))

	tests := []struct {
		addr Address
		want bool
	}{
		{0x1FFF, false},
		{0x2000, true},
		{0x20FF, true},
		{0x2100, false},
	}
	for _, tt := range tests {
		if got := mb.Contains(tt.addr); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
	if mb.End() != 0x2100 {
		t.Errorf("End() = %s, want 0x2100", mb.End())
	}
}

func TestRegions_ReadMemory(t *testing.T) {
	r := NewRegions(
		NewBuffer(0x8000, []byte{0xAA, 0xBB}),
		NewBuffer(0x1000, []byte{0x11, 0x22}),
	)

	buf := make([]byte, 2)
	if err := r.ReadMemory(0x1000, buf); err != nil {
		t.Fatalf("ReadMemory(0x1000) error: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x11, 0x22}) {
		t.Errorf("ReadMemory(0x1000) = %v", buf)
	}
	if err := r.ReadMemory(0x8001, buf[:1]); err != nil {
		t.Fatalf("ReadMemory(0x8001) error: %v", err)
	}
	if buf[0] != 0xBB {
		t.Errorf("ReadMemory(0x8001) = 0x%X, want 0xBB", buf[0])
	}
	if err := r.ReadMemory(0x4000, buf); err == nil {
		t.Error("expected error for unmapped address")
	}
}
