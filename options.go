package httpcore

import "github.com/coopnet/httpcore/serve"

// ConnInfo, OnOpen/OnClose, and every ServerOption live in package serve
// (component H); this package re-exports them so callers configure a
// Server without importing serve directly, the same alias pattern as
// errors.go.
type ConnInfo = serve.ConnInfo
type OnOpen = serve.OnOpen
type OnClose = serve.OnClose
type ServerOption = serve.ServerOption

var (
	WithRequestTimeout          = serve.WithRequestTimeout
	WithSharedRequestBufferSize = serve.WithSharedRequestBufferSize
	WithSharedRequestReplaySize = serve.WithSharedRequestReplaySize
	WithMaxHeaderBytes          = serve.WithMaxHeaderBytes
	WithWorkerPoolSize          = serve.WithWorkerPoolSize
	WithLogger                  = serve.WithLogger
	WithOnOpen                  = serve.WithOnOpen
	WithOnClose                 = serve.WithOnClose
	WithNetwork                 = serve.WithNetwork
)
