package pkg

import (
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

var localDockerIpRegex = regexp.MustCompile(`^172\.\d{1,3}\.0\.1:\d{1,5}$`)

// IPIsLocal reports whether the remote address belongs to local development
// (loopback or the docker bridge gateway).
func IPIsLocal(ipAddr string) bool {
	if strings.HasPrefix(ipAddr, "127.0.0.1:") || strings.HasPrefix(ipAddr, "[::1]:") {
		return true
	}
	return localDockerIpRegex.MatchString(ipAddr)
}

// ReadUserIP resolves the client IP, honoring the reverse proxy headers first.
func ReadUserIP(r *http.Request) (string, error) {
	if ipAddr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ipAddr != "" {
		return parseIP(ipAddr)
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// client, proxy1, proxy2
		return parseIP(strings.TrimSpace(strings.Split(forwarded, ",")[0]))
	}

	if IPIsLocal(r.RemoteAddr) {
		return "localhost", nil
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(ipAddr string) (string, error) {
	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		ipAddr = host
	}
	ip := net.ParseIP(ipAddr)
	if ip == nil {
		return "", fmt.Errorf("ip addr %s is invalid", ipAddr)
	}
	return ip.String(), nil
}
