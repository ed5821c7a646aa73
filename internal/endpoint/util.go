package endpoint

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

var errConnectionClosed = errors.New("endpoint: connection closed by peer")
var errAuthenticationFailed = errors.New("endpoint: logon authentication failed")

// parseInt reads an unsigned decimal integer, returning -1 on any
// non-digit byte. Used only for the small numeric FIX header fields the
// Receiver inspects (BodyLength, HeartBtInt) — it deliberately does not
// implement general FIX field decoding, which is out of scope
// (spec.md §1).
func parseInt(b []byte) int {
	if len(b) == 0 {
		return -1
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// fieldValue extracts the SOH-terminated value following the first
// occurrence of tagPrefix (e.g. "49=") in body.
func fieldValue(body []byte, tagPrefix string) string {
	idx := bytes.Index(body, []byte(tagPrefix))
	if idx < 0 {
		return ""
	}
	start := idx + len(tagPrefix)
	end := bytes.IndexByte(body[start:], soh)
	if end < 0 {
		return ""
	}
	return string(body[start : start+end])
}
