package net

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickIPv4SkipsLoopbackAndLinkLocal(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.IPv4(169, 254, 3, 4), Mask: net.CIDRMask(16, 32)},
		&net.IPAddr{IP: net.IPv4(192, 168, 1, 20)},
		&net.IPNet{IP: net.IPv4(10, 0, 0, 5), Mask: net.CIDRMask(8, 32)},
	}
	assert.Equal(t, "192.168.1.20", pickIPv4(addrs).String())
	assert.Nil(t, pickIPv4(addrs[:3]))
	assert.Nil(t, pickIPv4(nil))
}

func TestShareURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.20:8888/", shareURL(net.IPv4(192, 168, 1, 20), 8888))
	assert.NotNil(t, LANAddress().To4())
}
