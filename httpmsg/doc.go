// Package httpmsg is the incremental HTTP/1.1 codec of spec.md §4.E: a
// request parser state machine (AwaitingRequestLine → AwaitingHeaders →
// body → Done) over a streaming byte Source, a symmetric response
// serializer, chunked/range framing, and a bounded replay buffer so a
// router can peek at body bytes without stealing them from the handler.
//
// No example repo in the retrieval pack parses HTTP (tnet is a raw
// transport library); this package is grounded directly on spec.md §4.E
// and written in the pack's idiom: small exported methods, typed sentinel
// errors, Debugf on malformed input.
package httpmsg
