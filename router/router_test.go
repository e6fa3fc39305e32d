package router

import (
	"testing"

	"github.com/coopnet/httpcore/httpmsg"
	"github.com/stretchr/testify/require"
)

func markerHandler(name string) Handler {
	return HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		resp := httpmsg.NewResponse(200)
		resp.Headers.Set("X-Matched", name)
		return resp
	})
}

var get = []string{httpmsg.MethodGET}

func TestMatchLiteralPath(t *testing.T) {
	rt := New()
	rt.Handle(get, "/health", markerHandler("health"))

	got, params, ok := rt.Match(httpmsg.MethodGET, "/health", httpmsg.NewHeader())
	require.True(t, ok)
	require.NotNil(t, got)
	require.Empty(t, params)
}

func TestMatchParamSegment(t *testing.T) {
	rt := New()
	rt.Handle(get, "/users/:id", markerHandler("users"))

	_, params, ok := rt.Match(httpmsg.MethodGET, "/users/42", httpmsg.NewHeader())
	require.True(t, ok)
	v, ok := params.Get("id")
	require.True(t, ok)
	require.Equal(t, "42", v)
}

func TestMatchWildcardCapturesRemainder(t *testing.T) {
	rt := New()
	rt.Handle(get, "/static/*", markerHandler("static"))

	_, params, ok := rt.Match(httpmsg.MethodGET, "/static/css/site.css", httpmsg.NewHeader())
	require.True(t, ok)
	v, _ := params.Get("wildcard")
	require.Equal(t, "css/site.css", v)
}

func TestMatchFirstRegisteredWins(t *testing.T) {
	rt := New()
	rt.Handle(get, "/users/:id", markerHandler("by-id"))
	rt.Handle(get, "/users/admin", markerHandler("admin"))

	_, params, ok := rt.Match(httpmsg.MethodGET, "/users/admin", httpmsg.NewHeader())
	require.True(t, ok)
	v, ok := params.Get("id")
	require.True(t, ok)
	require.Equal(t, "admin", v)
}

func TestMatchHeaderPredicate(t *testing.T) {
	rt := New()
	rt.Handle(get, "/resource", markerHandler("resource"), HeaderMatch("Accept", "application/*"))

	headers := httpmsg.NewHeader()
	headers.Set("Accept", "text/html")
	_, _, ok := rt.Match(httpmsg.MethodGET, "/resource", headers)
	require.False(t, ok)

	headers.Set("Accept", "application/json")
	_, _, ok = rt.Match(httpmsg.MethodGET, "/resource", headers)
	require.True(t, ok)
}

func TestMatchNoRouteReturnsFalse(t *testing.T) {
	rt := New()
	_, _, ok := rt.Match(httpmsg.MethodGET, "/missing", httpmsg.NewHeader())
	require.False(t, ok)
}

func TestMatchEmptyMethodSetMatchesAny(t *testing.T) {
	rt := New()
	rt.Handle(nil, "/any", markerHandler("any"))

	_, _, ok := rt.Match(httpmsg.MethodGET, "/any", httpmsg.NewHeader())
	require.True(t, ok)
	_, _, ok = rt.Match(httpmsg.MethodPOST, "/any", httpmsg.NewHeader())
	require.True(t, ok)
}

func TestMatchMethodSetRejectsNonMember(t *testing.T) {
	rt := New()
	rt.Handle([]string{httpmsg.MethodGET, httpmsg.MethodHEAD}, "/x", markerHandler("x"))

	_, _, ok := rt.Match(httpmsg.MethodHEAD, "/x", httpmsg.NewHeader())
	require.True(t, ok)
	_, _, ok = rt.Match(httpmsg.MethodPOST, "/x", httpmsg.NewHeader())
	require.False(t, ok)
}

func TestMatchTrailingSlashRequiresExactLength(t *testing.T) {
	rt := New()
	rt.Handle(get, "/files/*/", markerHandler("files"))

	_, _, ok := rt.Match(httpmsg.MethodGET, "/files/a/b", httpmsg.NewHeader())
	require.False(t, ok, "trailing slash in pattern should forbid extra segments past the wildcard")

	_, params, ok := rt.Match(httpmsg.MethodGET, "/files/a", httpmsg.NewHeader())
	require.True(t, ok)
	v, _ := params.Get("wildcard")
	require.Equal(t, "a", v)
}

func TestMatchNoTrailingSlashAllowsWildcardOverflow(t *testing.T) {
	rt := New()
	rt.Handle(get, "/files/*", markerHandler("files"))

	_, params, ok := rt.Match(httpmsg.MethodGET, "/files/a/b", httpmsg.NewHeader())
	require.True(t, ok)
	v, _ := params.Get("wildcard")
	require.Equal(t, "a/b", v)
}

func TestMatchCaseInsensitivePath(t *testing.T) {
	rt := New()
	rt.Handle(get, "/Health", markerHandler("health"), CaseInsensitivePath())

	_, _, ok := rt.Match(httpmsg.MethodGET, "/health", httpmsg.NewHeader())
	require.True(t, ok)
}

func TestMatchCaseSensitiveByDefault(t *testing.T) {
	rt := New()
	rt.Handle(get, "/Health", markerHandler("health"))

	_, _, ok := rt.Match(httpmsg.MethodGET, "/health", httpmsg.NewHeader())
	require.False(t, ok)
}
