package webfetch

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

// ValidateURL checks that raw is an absolute http(s) URL. Unless
// allowPrivate is set, loopback, link-local and private hosts are refused so
// the service cannot be used to reach internal addresses.
func ValidateURL(raw string, allowPrivate bool) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed == nil {
		return nil, apperr.New(apperr.KindInvalidURL, "validate", "malformed URL")
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, apperr.New(apperr.KindInvalidURL, "validate", "URL must use http or https")
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return nil, apperr.New(apperr.KindInvalidURL, "validate", "URL host is required")
	}
	if allowPrivate {
		return parsed, nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, apperr.New(apperr.KindInvalidURL, "validate", "URL host is not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateOrLocalIP(ip) {
		return nil, apperr.New(apperr.KindInvalidURL, "validate", "URL host is not allowed")
	}
	return parsed, nil
}

func isPrivateOrLocalIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}

	// RFC6598 carrier-grade NAT range: 100.64.0.0/10
	if v4 := ip.To4(); v4 != nil && v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127 {
		return true
	}
	return false
}

// PublicClient returns a client whose connections are checked after DNS
// resolution, so hostnames that resolve to internal addresses and redirects
// to them are refused as well. base may be nil.
func PublicClient(base *http.Transport) *http.Client {
	if base == nil {
		base = &http.Transport{}
	} else {
		base = base.Clone()
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivateAddress,
	}
	base.DialContext = dialer.DialContext
	base.Proxy = nil
	return &http.Client{Transport: base}
}

func refusePrivateAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidURL, "dial", "URL host is not allowed", err)
	}
	if ip := net.ParseIP(host); ip == nil || isPrivateOrLocalIP(ip) {
		return apperr.New(apperr.KindInvalidURL, "dial", "URL host resolves to a private address")
	}
	return nil
}
