//go:build darwin

package sysconn

import "golang.org/x/sys/unix"

// setKeepAliveInterval sets TCP_KEEPINTVL/TCP_KEEPALIVE in seconds. Grounded
// on tnet's internal/netutil.SetKeepAlive (darwin variant): OS X 10.7 and
// earlier don't support TCP_KEEPINTVL, so ENOPROTOOPT is tolerated.
func setKeepAliveInterval(fd, secs int) error {
	switch err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err {
	case nil, unix.ENOPROTOOPT:
	default:
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, secs)
}

// applyPlatformListenOpts sets SO_NOSIGPIPE on the listening socket so that
// writes to a peer that has reset the connection raise EPIPE instead of
// delivering SIGPIPE to the process, per spec.md §3's Socket flags.
func applyPlatformListenOpts(fd int) {
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
