package ratelimit

import (
	"net/http"
	"strings"
)

// LoopbackIdentity is used for clients that send no forwarding header.
const LoopbackIdentity = "127.0.0.1"

// ClientIdentity derives the rate-limit identity from forwarding headers:
// the first X-Forwarded-For entry, then CF-Connecting-IP, then LoopbackIdentity.
// The headers are client-controlled and not validated against a trusted proxy list.
func ClientIdentity(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if cf := strings.TrimSpace(h.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	return LoopbackIdentity
}
