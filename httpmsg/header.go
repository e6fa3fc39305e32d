package httpmsg

import "net/textproto"

// headerEntry preserves the wire-given casing of a header name alongside
// its value, since Set builds entries a serializer will write back out
// verbatim.
type headerEntry struct {
	Name  string
	Value string
}

// Header is a case-insensitive, order-preserving header multimap. Parsing
// uses Add, which joins repeated header fields with ", " per RFC 7230
// §3.2.2; response construction uses Set, which is last-write-wins.
type Header struct {
	entries []headerEntry
	index   map[string]int
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

func canonicalKey(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

// Add appends value to name, joining with ", " if name is already present.
// This is the parser's duplicate-header rule.
func (h *Header) Add(name, value string) {
	key := canonicalKey(name)
	if idx, ok := h.index[key]; ok {
		h.entries[idx].Value = h.entries[idx].Value + ", " + value
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, headerEntry{Name: name, Value: value})
}

// Set replaces any existing value for name, or appends a new entry.
func (h *Header) Set(name, value string) {
	key := canonicalKey(name)
	if idx, ok := h.index[key]; ok {
		h.entries[idx] = headerEntry{Name: name, Value: value}
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, headerEntry{Name: name, Value: value})
}

// Get returns name's value and whether it was present.
func (h *Header) Get(name string) (string, bool) {
	if idx, ok := h.index[canonicalKey(name)]; ok {
		return h.entries[idx].Value, true
	}
	return "", false
}

// Del removes name if present.
func (h *Header) Del(name string) {
	key := canonicalKey(name)
	idx, ok := h.index[key]
	if !ok {
		return
	}
	h.entries = append(h.entries[:idx], h.entries[idx+1:]...)
	delete(h.index, key)
	for k, i := range h.index {
		if i > idx {
			h.index[k] = i - 1
		}
	}
}

// Each calls fn for every header in wire order.
func (h *Header) Each(fn func(name, value string)) {
	for _, e := range h.entries {
		fn(e.Name, e.Value)
	}
}

// Len reports the number of distinct header entries.
func (h *Header) Len() int { return len(h.entries) }
