package avm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderASCIIOnlyWhenPrintable(t *testing.T) {
	r := Render([]byte("hello"))
	assert.True(t, r.HasASCII)
	assert.Equal(t, "hello", r.ASCII)
	assert.Equal(t, "0x68656c6c6f", r.Hex)
	assert.Equal(t, 5, r.Length)

	r2 := Render([]byte{0x00, 0x01, 0xff})
	assert.False(t, r2.HasASCII)
}

func TestRenderAddressOnlyFor32Bytes(t *testing.T) {
	short := Render(make([]byte, 31))
	assert.False(t, short.HasAddress)

	full := Render(make([]byte, 32))
	assert.True(t, full.HasAddress)
	assert.Len(t, full.Address, 58)
}

func TestRenderEmptyBytes(t *testing.T) {
	r := Render(nil)
	assert.False(t, r.HasASCII)
	assert.False(t, r.HasAddress)
	assert.Equal(t, 0, r.Length)
	assert.Equal(t, "0x", r.Hex)
}

func TestValueStringRendering(t *testing.T) {
	assert.Equal(t, "5", Uint(5).String())
	assert.Equal(t, "0xdeadbeef", Bytes([]byte{0xde, 0xad, 0xbe, 0xef}).String())
}

func TestValueIsZero(t *testing.T) {
	assert.True(t, Uint(0).IsZero())
	assert.False(t, Uint(1).IsZero())
	assert.True(t, Bytes(nil).IsZero())
	assert.False(t, Bytes([]byte{0}).IsZero())
}

func TestByteMapSetGetDelete(t *testing.T) {
	m := NewByteMap()
	m.Set("a", []byte{1})
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, v)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
}
