// Package safeclient provides an HTTP client with SSRF protection.
//
// It is used for every outbound fetch whose destination comes from
// external data (proxy source lists, provider endpoints), so a
// malicious or misconfigured URL cannot reach internal networks.
package safeclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrForbiddenIP is returned when a connection targets a private or
// otherwise reserved IP range.
var ErrForbiddenIP = errors.New("connection to private/internal IP addresses is forbidden")

// forbiddenIPv4Ranges lists IPv4 ranges blocked to prevent SSRF.
var forbiddenIPv4Ranges = []net.IPNet{
	{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},     // RFC 1918
	{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},  // RFC 1918
	{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)}, // RFC 1918
	{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)},    // loopback
	{IP: net.IPv4(169, 254, 0, 0), Mask: net.CIDRMask(16, 32)}, // link-local
	{IP: net.IPv4(224, 0, 0, 0), Mask: net.CIDRMask(4, 32)},    // multicast
	{IP: net.IPv4(255, 255, 255, 255), Mask: net.CIDRMask(32, 32)},
	{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}, // CGNAT, RFC 6598
	{IP: net.IPv4(0, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(192, 0, 2, 0), Mask: net.CIDRMask(24, 32)},    // TEST-NET-1
	{IP: net.IPv4(198, 51, 100, 0), Mask: net.CIDRMask(24, 32)}, // TEST-NET-2
	{IP: net.IPv4(203, 0, 113, 0), Mask: net.CIDRMask(24, 32)},  // TEST-NET-3
	{IP: net.IPv4(169, 254, 169, 254), Mask: net.CIDRMask(32, 32)}, // cloud metadata
}

var forbiddenIPv6Ranges = []net.IPNet{
	{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
	{IP: net.ParseIP("::"), Mask: net.CIDRMask(128, 128)},
	{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(7, 128)},      // unique local
	{IP: net.ParseIP("fe80::"), Mask: net.CIDRMask(10, 128)},     // link-local
	{IP: net.ParseIP("fec0::"), Mask: net.CIDRMask(10, 128)},     // site-local (deprecated)
	{IP: net.ParseIP("ff00::"), Mask: net.CIDRMask(8, 128)},      // multicast
	{IP: net.ParseIP("2001:db8::"), Mask: net.CIDRMask(32, 128)}, // documentation
}

// isForbiddenIP reports whether ip falls in a blocked range.
// IPv4-mapped IPv6 addresses are checked against the IPv4 table.
func isForbiddenIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	if ip.To4() != nil {
		for _, network := range forbiddenIPv4Ranges {
			if network.Contains(ip) {
				return true
			}
		}
		return false
	}
	for _, network := range forbiddenIPv6Ranges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// safeDialer validates the resolved IP at connect time, which guards
// against DNS rebinding as well as plain internal URLs.
func safeDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, c syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("failed to parse address: %w", err)
			}
			ip := net.ParseIP(host)
			if ip == nil {
				return fmt.Errorf("invalid IP address: %s", host)
			}
			if isForbiddenIP(ip) {
				return ErrForbiddenIP
			}
			return nil
		},
	}
}

// New returns an HTTP client with SSRF protection and the given
// request timeout.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext:           safeDialer().DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// IsForbiddenIP is exported for testing purposes.
func IsForbiddenIP(ip net.IP) bool {
	return isForbiddenIP(ip)
}
