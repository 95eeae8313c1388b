package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAddr string

func (f fakeAddr) Network() string { return "tcp" }
func (f fakeAddr) String() string  { return string(f) }

func TestIPBlacklist_BlocksMatchingRange(t *testing.T) {
	b := NewIPBlacklist([]string{"10.0.0.0/8"})
	assert.True(t, b.Blocked(fakeAddr("10.1.2.3:5000")))
}

func TestIPBlacklist_AllowsNonMatching(t *testing.T) {
	b := NewIPBlacklist([]string{"10.0.0.0/8"})
	assert.False(t, b.Blocked(fakeAddr("192.168.1.1:5000")))
}

func TestIPBlacklist_EmptyListAllowsEverything(t *testing.T) {
	b := NewIPBlacklist(nil)
	assert.False(t, b.Blocked(fakeAddr("10.1.2.3:5000")))
}

func TestIPBlacklist_IgnoresUnparsableCIDR(t *testing.T) {
	b := NewIPBlacklist([]string{"not-a-cidr"})
	assert.Empty(t, b.nets)
}

var _ net.Addr = fakeAddr("")
