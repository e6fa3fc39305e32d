package sysconn

import "golang.org/x/sys/unix"

// ListenUDP creates a non-blocking UDP socket bound to addr (KindIPv4 or
// KindIPv6). Grounded on tnet's netFD datagram path (netfd.go WriteTo),
// simplified since this module has no UDP server of its own to drive — it
// exists so internal/ioloop's datagram operations (spec.md §4.D) have a
// concrete socket to exercise.
func ListenUDP(addr SockAddr) (*Socket, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	family := unix.AF_INET
	if addr.Kind == KindIPv6 {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	sock := &Socket{fd: fd}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		sock.closeFD()
		return nil, err
	}
	sa, err := addr.ToUnix()
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		sock.closeFD()
		return nil, err
	}
	boundSA, err := unix.Getsockname(fd)
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	resolved, err := FromUnix(boundSA)
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	sock.laddr = resolved
	return sock, nil
}
