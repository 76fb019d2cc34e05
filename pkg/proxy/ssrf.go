// Package proxy implements the PopShop Proxy Client (spec.md §4.5) and
// SSRF Validator (spec.md §4.6): forwarding a matched request to an
// upstream URL while guarding against server-side request forgery.
package proxy

import (
	"net/url"
	"strconv"
	"strings"
)

var blockedHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// blockedPorts lists sensitive service ports an operator likely never
// intends a proxy target to reach. 80 and 443 are deliberately absent:
// blocking them would make ordinary proxying impossible.
var blockedPorts = map[string]bool{
	"22": true, "23": true, "25": true, "53": true, "69": true,
	"110": true, "135": true, "139": true, "143": true, "445": true,
	"993": true, "995": true,
}

// IsValidProxyURL is a pure predicate: it performs no DNS resolution
// and no network I/O, judging the URL string alone.
func IsValidProxyURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}
	if blockedHosts[strings.ToLower(host)] {
		return false
	}

	if isBlockedIPv4(host) {
		return false
	}
	if isBlockedIPv6(host) {
		return false
	}

	if port := u.Port(); port != "" {
		if blockedPorts[port] {
			return false
		}
	}

	return true
}

// isBlockedIPv4 treats host as a dotted-decimal IPv4 prefix and checks
// the private ranges spec.md §4.6 enumerates, without resolving it.
func isBlockedIPv4(host string) bool {
	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return false
	}
	for _, o := range octets {
		if _, err := strconv.Atoi(o); err != nil {
			return false
		}
	}
	if octets[0] == "10" {
		return true
	}
	if octets[0] == "192" && octets[1] == "168" {
		return true
	}
	if octets[0] == "169" && octets[1] == "254" {
		return true
	}
	if octets[0] == "172" {
		second, err := strconv.Atoi(octets[1])
		if err == nil && second >= 16 && second <= 31 {
			return true
		}
	}
	return false
}

// isBlockedIPv6 checks for the unique-local range (fc00::/7, i.e. a
// first group of fcXX or fdXX) by string inspection, matching the IPv4
// checker's no-resolution policy.
func isBlockedIPv6(host string) bool {
	h := strings.ToLower(host)
	h = strings.TrimPrefix(h, "[")
	h = strings.TrimSuffix(h, "]")
	i := strings.Index(h, ":")
	if i != 4 {
		return false
	}
	return strings.HasPrefix(h, "fc") || strings.HasPrefix(h, "fd")
}
