// Package httpcore is an embeddable HTTP/1.1 server library: a
// polling-based socket pool, a suspending async socket layer, an
// incremental HTTP/1.1 codec, and a route-matching connection driver,
// grounded on trpc-group/tnet's event-loop networking architecture.
package httpcore

import (
	"github.com/coopnet/httpcore/internal/sysconn"
	"github.com/coopnet/httpcore/router"
	"github.com/coopnet/httpcore/serve"
)

// Server, NewServer, Listen, Handler, and HandlerFunc live in package
// serve (components G/H); re-exported here so importers only ever need
// this package.
type Server = serve.Server
type Handler = serve.Handler
type HandlerFunc = serve.HandlerFunc
type HeaderPredicate = router.HeaderPredicate
type RouteOption = router.RouteOption

var (
	NewServer           = serve.NewServer
	Listen              = serve.Listen
	WithListener        = serve.WithListener
	HeaderEquals        = router.HeaderEquals
	HeaderMatch         = router.HeaderMatch
	CaseInsensitivePath = router.CaseInsensitivePath
)

// Re-exported sysconn.SockAddr constructors, for WithListener/Listen
// callers that need to build an address by hand instead of a
// "host:port" string.
type SockAddr = sysconn.SockAddr

var (
	IPv4Addr   = sysconn.IPv4Addr
	IPv6Addr   = sysconn.IPv6Addr
	UnixAddr   = sysconn.UnixAddr
	ResolveTCP = sysconn.ResolveTCP
)
