// Package router implements the route-matching dispatcher of spec.md
// §4.F: an ordered list of routes, each a method set, a slash-separated
// path pattern of literal/parameter/wildcard segments, and optional
// header predicates, matched first-match-wins.
//
// No example repo in the retrieval pack does HTTP routing (trpc-group/tnet
// is a transport-only library); this package is grounded procedurally on
// spec.md §4.F and written in the pack's naming and doc-comment idiom.
package router

import (
	"strings"

	"github.com/coopnet/httpcore/httpmsg"
)

// Handler serves one matched request and returns the response to write
// back, the single-method interface called for by spec.md §9's Design
// Notes. Re-exported by package serve as serve.Handler.
type Handler interface {
	HandleRequest(req *httpmsg.Request) *httpmsg.Response
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req *httpmsg.Request) *httpmsg.Response

// HandleRequest calls f.
func (f HandlerFunc) HandleRequest(req *httpmsg.Request) *httpmsg.Response { return f(req) }

// segmentKind distinguishes the three pattern segment forms of §4.F.
type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind segmentKind
	text string // literal text, or parameter name (without ':'/'*')
}

// headerPredicateKind distinguishes exact-match from prefix/suffix
// wildcard header predicates.
type headerPredicateKind int

const (
	headerExact headerPredicateKind = iota
	headerPrefix
	headerSuffix
)

// HeaderPredicate requires a request header to match a literal value or
// a prefix/suffix wildcard pattern ("Accept: text/*", "Accept: */json").
// HeaderPredicate is itself a RouteOption: passing one to NewRoute or
// Router.Handle appends it to the route's predicate list.
type HeaderPredicate struct {
	Name  string
	kind  headerPredicateKind
	value string
}

// HeaderEquals requires header name to equal value exactly.
func HeaderEquals(name, value string) HeaderPredicate {
	return HeaderPredicate{Name: name, kind: headerExact, value: value}
}

// HeaderMatch requires header name to match a single '*' wildcard
// pattern such as "text/*" or "*/json". Patterns with the wildcard in
// any other position are treated as a prefix match up to the '*'.
func HeaderMatch(name, pattern string) HeaderPredicate {
	if strings.HasPrefix(pattern, "*") {
		return HeaderPredicate{Name: name, kind: headerSuffix, value: strings.TrimPrefix(pattern, "*")}
	}
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return HeaderPredicate{Name: name, kind: headerPrefix, value: pattern[:i]}
	}
	return HeaderPredicate{Name: name, kind: headerExact, value: pattern}
}

func (h HeaderPredicate) matches(headers *httpmsg.Header) bool {
	v, ok := headers.Get(h.Name)
	if !ok {
		return false
	}
	switch h.kind {
	case headerPrefix:
		return strings.HasPrefix(v, h.value)
	case headerSuffix:
		return strings.HasSuffix(v, h.value)
	default:
		return v == h.value
	}
}

// apply implements RouteOption by appending h to the route's predicates.
func (h HeaderPredicate) apply(r *Route) { r.predicates = append(r.predicates, h) }

// RouteOption configures optional route-matching behavior beyond the
// method set and path pattern: header predicates (HeaderEquals/
// HeaderMatch) and CaseInsensitivePath both implement it.
type RouteOption interface {
	apply(*Route)
}

type caseInsensitiveOption struct{}

func (caseInsensitiveOption) apply(r *Route) { r.caseInsensitivePath = true }

// CaseInsensitivePath makes the route's literal path segments match
// without regard to case, per spec.md §4.F.2 ("case-sensitive by
// default; case-insensitive when so configured").
func CaseInsensitivePath() RouteOption { return caseInsensitiveOption{} }

// methodSet is the route's method membership test. A nil/empty set
// matches every method, per spec.md §3's "methods: set of HTTPMethod
// (empty = any)".
type methodSet map[string]struct{}

func newMethodSet(methods []string) methodSet {
	if len(methods) == 0 {
		return nil
	}
	set := make(methodSet, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return set
}

func (s methodSet) matches(method string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[method]
	return ok
}

// Route is one registered method-set/path/header-predicate/handler binding.
type Route struct {
	methods             methodSet
	pattern             []segment
	exactLength         bool // pattern had a trailing '/': no extra segments tolerated, even past a wildcard
	caseInsensitivePath bool
	predicates          []HeaderPredicate
	Handler             Handler
}

// NewRoute compiles a path pattern into a Route. methods is the set of
// HTTP methods this route accepts; an empty or nil slice matches any
// method. Path segments beginning with ':' bind a named parameter; a
// literal "*" segment matches one or more trailing path segments as a
// single wildcard capture named "wildcard". A pattern ending in '/'
// requires an exact segment-count match, per spec.md §4.F.2, even past
// a trailing wildcard.
func NewRoute(methods []string, pattern string, handler Handler, opts ...RouteOption) *Route {
	segs, exactLength := compilePattern(pattern)
	route := &Route{
		methods:     newMethodSet(methods),
		pattern:     segs,
		exactLength: exactLength,
		Handler:     handler,
	}
	for _, opt := range opts {
		opt.apply(route)
	}
	return route
}

// compilePattern splits pattern into segments and reports whether it
// carried a trailing '/' (exact-length match required).
func compilePattern(pattern string) ([]segment, bool) {
	trimmed := strings.TrimPrefix(pattern, "/")
	trailingSlash := len(trimmed) > 0 && strings.HasSuffix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return nil, trailingSlash
	}
	parts := strings.Split(trimmed, "/")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "*":
			segs = append(segs, segment{kind: segWildcard})
		case strings.HasPrefix(part, ":"):
			segs = append(segs, segment{kind: segParam, text: part[1:]})
		default:
			segs = append(segs, segment{kind: segLiteral, text: part})
		}
	}
	return segs, trailingSlash
}

// match attempts to bind path (already split into segments) against r's
// pattern, returning the bound parameters on success.
func (r *Route) match(pathSegs []string) (httpmsg.Params, bool) {
	var params httpmsg.Params
	for i, seg := range r.pattern {
		if seg.kind == segWildcard {
			if i >= len(pathSegs) {
				return nil, false
			}
			if r.exactLength && len(pathSegs) != len(r.pattern) {
				return nil, false
			}
			params = append(params, httpmsg.Param{Name: "wildcard", Value: strings.Join(pathSegs[i:], "/")})
			return params, true
		}
		if i >= len(pathSegs) {
			return nil, false
		}
		if !r.segmentMatches(seg, pathSegs[i]) {
			return nil, false
		}
		if seg.kind == segParam {
			params = append(params, httpmsg.Param{Name: seg.text, Value: pathSegs[i]})
		}
	}
	if len(pathSegs) != len(r.pattern) {
		return nil, false
	}
	return params, true
}

func (r *Route) segmentMatches(seg segment, actual string) bool {
	if seg.kind != segLiteral {
		return true
	}
	if r.caseInsensitivePath {
		return strings.EqualFold(seg.text, actual)
	}
	return seg.text == actual
}

func (r *Route) matchesHeaders(headers *httpmsg.Header) bool {
	for _, pred := range r.predicates {
		if !pred.matches(headers) {
			return false
		}
	}
	return true
}

// Router holds an ordered list of routes, matched first-match-wins.
type Router struct {
	routes []*Route
}

// New creates an empty Router.
func New() *Router { return &Router{} }

// Handle registers a route. Registration order is match priority. methods
// is the set of HTTP methods this route accepts; an empty or nil slice
// matches any method.
func (rt *Router) Handle(methods []string, pattern string, handler Handler, opts ...RouteOption) *Route {
	route := NewRoute(methods, pattern, handler, opts...)
	rt.routes = append(rt.routes, route)
	return route
}

// Match finds the first registered route whose method set, path pattern,
// and header predicates all match, returning its handler and bound path
// parameters. ok is false if no route matches, in which case the caller
// should treat the request as unhandled (spec.md §4.G maps this to 404
// via apierrors.HTTPUnhandledError).
func (rt *Router) Match(method, path string, headers *httpmsg.Header) (Handler, httpmsg.Params, bool) {
	pathSegs := splitPath(path)
	for _, route := range rt.routes {
		if !route.methods.matches(method) {
			continue
		}
		params, ok := route.match(pathSegs)
		if !ok {
			continue
		}
		if !route.matchesHeaders(headers) {
			continue
		}
		return route.Handler, params, true
	}
	return nil, nil, false
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
