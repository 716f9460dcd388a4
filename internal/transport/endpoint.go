package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Endpoint returns the websocket URL for a page served from host:port. The
// bus always listens one port above the HTTP server.
func Endpoint(host string, port int) string {
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port+1)) + "/"
}

// EndpointFromPageURL derives the websocket URL from the URL of the page that
// hosts the consumers.
func EndpointFromPageURL(page string) (string, error) {
	u, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("page url %q has no host", page)
	}
	portStr := u.Port()
	if portStr == "" {
		switch u.Scheme {
		case "https":
			portStr = "443"
		default:
			portStr = "80"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("page url %q: bad port: %w", page, err)
	}
	return Endpoint(host, port), nil
}
