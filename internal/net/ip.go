package net

import (
	"log"
	"net"
	"net/url"
	"strconv"
)

var loopback = net.IPv4(127, 0, 0, 1).To4()

// LANAddress is the IPv4 address other devices on the network reach this
// machine at: the source address of the default route, else the first up
// non-loopback interface, else loopback.
func LANAddress() net.IP {
	if ip := routeAddress(); ip != nil {
		return ip
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Printf("[NET] List interfaces: %v", err)
		return loopback
	}
	var addrs []net.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if a, err := iface.Addrs(); err == nil {
			addrs = append(addrs, a...)
		}
	}
	if ip := pickIPv4(addrs); ip != nil {
		return ip
	}
	log.Println("[NET] No LAN address found, share link only works on this machine")
	return loopback
}

// routeAddress asks the kernel which local address would carry traffic to
// a public host. Dialing UDP sends nothing.
func routeAddress() net.IP {
	conn, err := net.Dial("udp4", "1.1.1.1:80")
	if err != nil {
		return nil
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() || addr.IP.IsUnspecified() {
		return nil
	}
	return addr.IP.To4()
}

// pickIPv4 returns the first routable IPv4 address in addrs, or nil.
func pickIPv4(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		ip4 := ip.To4()
		if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
			continue
		}
		return ip4
	}
	return nil
}

// ShareURL is the overview page address other devices can open.
func ShareURL(port int) string {
	return shareURL(LANAddress(), port)
}

func shareURL(ip net.IP, port int) string {
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(ip.String(), strconv.Itoa(port)), Path: "/"}
	return u.String()
}
