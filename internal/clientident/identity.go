// Package clientident derives a stable per-request client identity from
// connection and proxy headers.
//
// The identity is ephemeral: derived fresh per request and never stored
// beyond rate-limit bucketing and audit metadata. The fingerprint is a
// fast non-cryptographic hash used only as a secondary bucketing key,
// never for security decisions.
package clientident

import (
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"strings"
)

// Unknown is the sentinel IP used when no client address can be derived.
const Unknown = "unknown"

// Identity identifies the client behind a request.
type Identity struct {
	IP          string
	UserAgent   string
	Fingerprint string
}

// Resolve derives an Identity from the request. Resolution order for the
// IP: CF-Connecting-IP (trusted edge proxy, single canonical value), then
// X-Real-IP, then the leftmost entry of X-Forwarded-For, then the socket
// peer address. Resolve never fails; with no signal at all the sentinel
// "unknown" identity is returned.
func Resolve(r *http.Request) Identity {
	ip := resolveIP(r)
	ua := strings.TrimSpace(r.Header.Get("User-Agent"))
	return Identity{
		IP:          ip,
		UserAgent:   ua,
		Fingerprint: Fingerprint(ip, ua),
	}
}

func resolveIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if chain := r.Header.Get("X-Forwarded-For"); chain != "" {
		// Leftmost entry is the original client in this deployment.
		first, _, _ := strings.Cut(chain, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return Unknown
}

// Fingerprint hashes ip|userAgent with FNV-1a. Deterministic and cheap;
// collisions only cost a shared rate-limit bucket.
func Fingerprint(ip, userAgent string) string {
	h := fnv.New64a()
	h.Write([]byte(ip))
	h.Write([]byte{'|'})
	h.Write([]byte(userAgent))
	return fmt.Sprintf("%016x", h.Sum64())
}
