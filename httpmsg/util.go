package httpmsg

import "net/url"

// percentDecode decodes a percent-encoded query component, falling back
// to the raw input on malformed escapes rather than failing the whole
// request over one bad query parameter.
func percentDecode(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// percentDecodePath decodes a percent-encoded request-target path.
func percentDecodePath(s string) (string, error) {
	return url.PathUnescape(s)
}
