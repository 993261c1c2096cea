// Package header filters the gateway's response headers before they reach
// assistant clients.
//
//	Client <--> Proxy <--> AI gateway
//
// Each leg negotiates compression, hops and encoding independently, and the
// gateway's session and billing headers stay on the proxy's side.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// Go's http.Transport has already decompressed the body. Fiber's
	// compress middleware sets its own Content-Encoding when it re-compresses.
	"Content-Encoding": {},

	// The upstream length no longer matches after decompression.
	"Content-Length": {},

	// Gateway session state belongs to the proxy's API key, not the client.
	"Set-Cookie": {},
}

// skipResponsePrefixes drops provider bookkeeping such as
// X-Ratelimit-Remaining-Tokens.
var skipResponsePrefixes = []string{
	"X-Ratelimit-",
	"Openai-",
}

// SetClientResponseHeaders copies response headers from the upstream API
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if skipped(k) {
			continue
		}
		c.Set(k, strings.Join(v, ", "))
	}
}

func skipped(key string) bool {
	key = http.CanonicalHeaderKey(key)
	if _, skip := skipResponse[key]; skip {
		return true
	}
	for _, prefix := range skipResponsePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
