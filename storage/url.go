package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// rewriteHost replaces only the host:port component of rawURL with
// publicHost. Scheme, path, query, and fragment pass through untouched;
// a presigned URL's signature covers those parts, so anything beyond the
// host must stay byte-for-byte identical.
//
// When publicHost is empty or already matches the URL's host, the URL is
// returned unchanged. When publicHost carries no port, the original port
// is kept.
func rewriteHost(rawURL, publicHost string) (string, error) {
	if publicHost == "" {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == publicHost {
		return rawURL, nil
	}

	host := publicHost
	if !strings.Contains(publicHost, ":") {
		if port := u.Port(); port != "" {
			host = publicHost + ":" + port
		}
	}
	u.Host = host
	return u.String(), nil
}
