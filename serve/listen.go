package serve

import "github.com/coopnet/httpcore/internal/sysconn"

// Listen pre-binds a listening socket for addr without starting a
// Server, mirroring tnet's top-level Listen helper. Pass the result to
// NewServer(WithListener(...)) — useful for inheriting a pre-bound fd
// across a graceful restart.
func Listen(addr sysconn.SockAddr) (*sysconn.Socket, error) {
	return sysconn.Listen(addr)
}
