//go:build linux || freebsd || dragonfly

package sysconn

import "golang.org/x/sys/unix"

// setKeepAliveInterval sets TCP_KEEPINTVL/TCP_KEEPIDLE in seconds. Grounded
// on tnet's internal/netutil.SetKeepAlive (linux/freebsd/dragonfly variant).
func setKeepAliveInterval(fd, secs int) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs)
}

// applyPlatformListenOpts sets listener socket options with no
// cross-platform equivalent. No-op outside Darwin.
func applyPlatformListenOpts(fd int) {}
