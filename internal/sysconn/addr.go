// Package sysconn provides the syscall shim and Socket abstraction: thin,
// platform-aware wrappers around bind/listen/accept/connect plus the
// SockAddr tagged union, grounded on tnet's internal/netutil address
// conversions and netFD's fd ownership discipline.
package sysconn

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Kind identifies which variant a SockAddr holds.
type Kind int

// SockAddr variants.
const (
	KindIPv4 Kind = iota
	KindIPv6
	KindUnix
)

// SockAddr is the tagged-variant socket address of spec.md §3: IPv4, IPv6
// (with scope/zone), or a Unix-domain path.
type SockAddr struct {
	Kind Kind

	IP   [16]byte // used by KindIPv4 (first 4 bytes) and KindIPv6 (all 16 bytes)
	Port int      // non-negative 16-bit port, KindIPv4/KindIPv6 only
	Zone uint32   // IPv6 scope id, KindIPv6 only

	Path string // KindUnix only; must be <= platform limit (104 BSD, 108 Linux)
}

// maxUnixPathLinux and maxUnixPathBSD bound SockaddrUnix.Path length per platform.
const (
	maxUnixPathLinux = 108
	maxUnixPathBSD   = 104
)

// IPv4Addr builds a KindIPv4 SockAddr.
func IPv4Addr(ip [4]byte, port int) SockAddr {
	var a SockAddr
	a.Kind = KindIPv4
	copy(a.IP[:4], ip[:])
	a.Port = port
	return a
}

// IPv6Addr builds a KindIPv6 SockAddr.
func IPv6Addr(ip [16]byte, port int, zone uint32) SockAddr {
	return SockAddr{Kind: KindIPv6, IP: ip, Port: port, Zone: zone}
}

// UnixAddr builds a KindUnix SockAddr.
func UnixAddr(path string) SockAddr {
	return SockAddr{Kind: KindUnix, Path: path}
}

// Validate enforces the invariants of spec.md §3.
func (a SockAddr) Validate() error {
	switch a.Kind {
	case KindIPv4, KindIPv6:
		if a.Port < 0 || a.Port > 65535 {
			return fmt.Errorf("invalid port %d", a.Port)
		}
		return nil
	case KindUnix:
		limit := maxUnixPathLinux
		if isBSD {
			limit = maxUnixPathBSD
		}
		if len(a.Path) > limit {
			return fmt.Errorf("unix socket path %q exceeds platform limit of %d bytes", a.Path, limit)
		}
		return nil
	default:
		return fmt.Errorf("unknown SockAddr kind %d", a.Kind)
	}
}

// Network reports the net package-style network name ("tcp", "unix").
func (a SockAddr) Network() string {
	if a.Kind == KindUnix {
		return "unix"
	}
	return "tcp"
}

// String implements net.Addr / fmt.Stringer.
func (a SockAddr) String() string {
	switch a.Kind {
	case KindIPv4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
	case KindIPv6:
		ip := net.IP(a.IP[:])
		if a.Zone != 0 {
			return fmt.Sprintf("[%s%%%d]:%d", ip.String(), a.Zone, a.Port)
		}
		return fmt.Sprintf("[%s]:%d", ip.String(), a.Port)
	case KindUnix:
		return a.Path
	default:
		return "<invalid sockaddr>"
	}
}

// ToUnix converts a SockAddr to the golang.org/x/sys/unix.Sockaddr the raw
// syscalls expect.
func (a SockAddr) ToUnix() (unix.Sockaddr, error) {
	switch a.Kind {
	case KindIPv4:
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], a.IP[:4])
		sa.Port = a.Port
		return &sa, nil
	case KindIPv6:
		var sa unix.SockaddrInet6
		copy(sa.Addr[:], a.IP[:])
		sa.Port = a.Port
		sa.ZoneId = a.Zone
		return &sa, nil
	case KindUnix:
		return &unix.SockaddrUnix{Name: a.Path}, nil
	default:
		return nil, fmt.Errorf("unknown SockAddr kind %d", a.Kind)
	}
}

// FromUnix converts a resolved unix.Sockaddr (as returned by Getsockname,
// Accept, etc.) back into a SockAddr. Grounded on tnet's
// internal/netutil.SockaddrToTCPOrUnixAddr.
func FromUnix(sa unix.Sockaddr) (SockAddr, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		var ip [16]byte
		copy(ip[:4], sa.Addr[:])
		return SockAddr{Kind: KindIPv4, IP: ip, Port: sa.Port}, nil
	case *unix.SockaddrInet6:
		return SockAddr{Kind: KindIPv6, IP: sa.Addr, Port: sa.Port, Zone: sa.ZoneId}, nil
	case *unix.SockaddrUnix:
		return SockAddr{Kind: KindUnix, Path: sa.Name}, nil
	default:
		return SockAddr{}, fmt.Errorf("unsupported sockaddr type %T", sa)
	}
}

// ResolveTCP parses a "host:port" string into a KindIPv4 or KindIPv6 SockAddr,
// the way net.ResolveTCPAddr does, so callers can pass familiar addresses to
// Listen/Dial without hand-building a SockAddr.
func ResolveTCP(address string) (SockAddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return SockAddr{}, err
	}
	if v4 := tcpAddr.IP.To4(); v4 != nil && tcpAddr.IP.To16() != nil && isV4InV6(tcpAddr.IP) {
		var ip [4]byte
		copy(ip[:], v4)
		return IPv4Addr(ip, tcpAddr.Port), nil
	}
	if v4 := tcpAddr.IP.To4(); v4 != nil {
		var ip [4]byte
		copy(ip[:], v4)
		return IPv4Addr(ip, tcpAddr.Port), nil
	}
	var ip [16]byte
	copy(ip[:], tcpAddr.IP.To16())
	var zone uint32
	if tcpAddr.Zone != "" {
		if iface, err := net.InterfaceByName(tcpAddr.Zone); err == nil {
			zone = uint32(iface.Index)
		}
	}
	return IPv6Addr(ip, tcpAddr.Port, zone), nil
}

func isV4InV6(ip net.IP) bool { return len(ip) == 4 || ip.To4() != nil }
