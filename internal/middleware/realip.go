package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the request's client address without the port. Behind
// chi's RealIP middleware RemoteAddr already holds the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
