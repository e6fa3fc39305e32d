package httpmsg

import "strings"

// QueryParam is a single decoded query-string key/value pair, kept in
// wire order since repeated keys are meaningful (?tag=a&tag=b).
type QueryParam struct {
	Name  string
	Value string
}

// Param is a single route-bound path parameter, filled in by the router
// after a Route matches (spec.md §4.F).
type Param struct {
	Name  string
	Value string
}

// Params is an ordered sequence of route parameters. Linear lookup is
// fine: routes rarely bind more than a handful of segments.
type Params []Param

// Get returns the value bound to name and whether it was present.
func (p Params) Get(name string) (string, bool) {
	for _, e := range p {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Request is one parsed HTTP/1.1 request line, header block, and lazy
// body, per spec.md §4.E.
type Request struct {
	Method     string
	Path       string
	RawQuery   string
	Query      []QueryParam
	Major      int
	Minor      int
	Headers    *Header
	Params     Params
	Body       BodyReader
	RemoteAddr string
}

// Host returns the Host header, or the empty string.
func (r *Request) Host() string {
	v, _ := r.Headers.Get("Host")
	return v
}

// KeepAlive reports whether the connection should persist after this
// request per the message's declared HTTP version and Connection header.
func (r *Request) KeepAlive() bool {
	conn, ok := r.Headers.Get("Connection")
	conn = strings.ToLower(conn)
	if ok && strings.Contains(conn, "close") {
		return false
	}
	if r.Major == 1 && r.Minor == 0 {
		return ok && strings.Contains(conn, "keep-alive")
	}
	return true
}

func parseQuery(rawQuery string) []QueryParam {
	if rawQuery == "" {
		return nil
	}
	var out []QueryParam
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		out = append(out, QueryParam{Name: percentDecode(name), Value: percentDecode(value)})
	}
	return out
}
