package serve

import "github.com/coopnet/httpcore/router"

// Handler and HandlerFunc are router's single-method handler contract,
// re-exported here so callers configuring a Server never need to import
// package router directly.
type Handler = router.Handler
type HandlerFunc = router.HandlerFunc
