package bridge

import (
	"net/http"
	"strings"
)

// NormalizeHeaders flattens h into one string per name. Keys keep the
// canonical form net/http stored them under. Repeated fields are joined with
// ", " in arrival order, except Cookie, whose pairs are joined with "; " so
// split HTTP/2 cookie fields reach the core as one cookie-string. host is
// added as "Host" because net/http lifts it out of the header map.
func NormalizeHeaders(h http.Header, host string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, vs := range h {
		sep := ", "
		if k == "Cookie" {
			sep = "; "
		}
		out[k] = strings.Join(vs, sep)
	}
	if host != "" {
		out["Host"] = host
	}
	return out
}
