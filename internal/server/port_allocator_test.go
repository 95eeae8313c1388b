package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortAllocator_BindRequestedOutOfRangeRejected(t *testing.T) {
	a := NewPortAllocator(20000, 20010)
	_, err := a.BindRequested("127.0.0.1", 1234)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in allowed range")
}

func TestPortAllocator_BindRequestedInRangeSucceeds(t *testing.T) {
	a := NewPortAllocator(20000, 20100)
	ln, err := a.BindRequested("127.0.0.1", 20050)
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, 20050, ln.Addr().(*net.TCPAddr).Port)
}

func TestPortAllocator_BindRequestedAlreadyInUse(t *testing.T) {
	a := NewPortAllocator(20000, 20100)
	first, err := a.BindRequested("127.0.0.1", 20060)
	require.NoError(t, err)
	defer first.Close()

	_, err = a.BindRequested("127.0.0.1", 20060)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestPortAllocator_BindRandomStaysInRange(t *testing.T) {
	a := NewPortAllocator(20200, 20210)
	ln, port, err := a.BindRandom("127.0.0.1")
	require.NoError(t, err)
	defer ln.Close()
	assert.True(t, a.InRange(port))
}

func TestPortAllocator_BindStaticIgnoresRange(t *testing.T) {
	a := NewPortAllocator(20000, 20010)
	ln, err := a.BindStatic("127.0.0.1", 20999)
	require.NoError(t, err)
	defer ln.Close()
}

func TestPortAllocator_InRange(t *testing.T) {
	a := NewPortAllocator(100, 200)
	assert.True(t, a.InRange(150))
	assert.False(t, a.InRange(99))
	assert.False(t, a.InRange(201))
}
