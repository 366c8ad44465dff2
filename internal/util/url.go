package util

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// ResolveURLPath resolves a path or absolute URL against a base URL.
// If pathOrURL is already an absolute URL it is returned as-is, otherwise it is
// joined onto the base URL's path so a prefix like /engines/llama.cpp survives.
//
// Examples:
//   - ResolveURLPath("http://localhost:12434/api/", "/v1/models") -> "http://localhost:12434/api/v1/models"
//   - ResolveURLPath("http://localhost:12434/api/", "http://other:9000/models") -> "http://other:9000/models"
func ResolveURLPath(baseURL, pathOrURL string) string {
	if baseURL == "" {
		return pathOrURL
	}
	if pathOrURL == "" {
		return baseURL
	}

	if parsed, err := url.Parse(pathOrURL); err == nil && parsed.IsAbs() {
		return pathOrURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return pathOrURL
	}

	base.Path = path.Join(base.Path, pathOrURL)
	return base.String()
}

// NormaliseBaseURL trims trailing slashes and a trailing /v1 so users can paste
// either http://localhost:1234 or http://localhost:1234/v1 into settings.
func NormaliseBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	trimmed = strings.TrimSuffix(trimmed, "/v1")
	return strings.TrimRight(trimmed, "/")
}

// ValidateBaseURL checks the server URL is an absolute http(s) URL
func ValidateBaseURL(baseURL string) error {
	if strings.TrimSpace(baseURL) == "" {
		return fmt.Errorf("server URL is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("server URL is malformed: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL has no host")
	}
	return nil
}

// IsLoopbackURL reports whether baseURL points at localhost or a loopback address
func IsLoopbackURL(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ReplaceHost swaps the hostname of baseURL and keeps its port
func ReplaceHost(baseURL, host string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}
