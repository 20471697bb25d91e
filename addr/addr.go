// Package addr detects the kind of a textual network address (IPv4,
// IPv6, or hostname) and models the bindable/connectable Address value
// from spec §3.2. The detection rule is the FQDN validator with an
// IP-literal fast path, per spec §9's Open Question on address-kind
// detection — not the alternative regex-based RFC1034 matcher the
// original implementation also carried.
package addr

import (
	"net/netip"
	"strings"
)

// Kind classifies a textual address.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindUnknown
	KindIP4
	KindIP6
	KindHostname
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "EMPTY"
	case KindIP4:
		return "IP4"
	case KindIP6:
		return "IP6"
	case KindHostname:
		return "HOSTNAME"
	default:
		return "UNKNOWN"
	}
}

// DetectKind classifies address using an IP-literal fast path followed by
// a local FQDN validator; it never performs name resolution.
func DetectKind(address string) Kind {
	if address == "" {
		return KindEmpty
	}
	if len(address) > 254 {
		return KindUnknown
	}

	if ip, err := netip.ParseAddr(address); err == nil {
		if ip.Is4() || ip.Is4In6() {
			return KindIP4
		}
		return KindIP6
	}

	if isFQDN(address) {
		return KindHostname
	}
	return KindUnknown
}

func isAlnumHyphen(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func checkLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		if !isAlnumHyphen(label[i]) {
			return false
		}
	}
	return true
}

// isFQDN ports original_source's is_fqdn lambda: per-label length and
// charset rules, a trailing dot allowance, and a TLD that is either
// plain-alpha (len >= 2) or punycode-prefixed ("xn--", len 5..63).
func isFQDN(s string) bool {
	if s == "" {
		return false
	}

	trailingDot := s[len(s)-1] == '.'
	if (!trailingDot && len(s) > 253) || (trailingDot && len(s) > 254) {
		return false
	}

	labels := strings.Split(s, ".")
	if trailingDot {
		// Split leaves a trailing empty label; drop it, and every
		// remaining label must still check out.
		labels = labels[:len(labels)-1]
		if len(labels) < 1 {
			return false
		}
		for _, l := range labels {
			if !checkLabel(l) {
				return false
			}
		}
		return true
	}

	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !checkLabel(l) {
			return false
		}
	}

	tld := labels[len(labels)-1]
	if strings.HasPrefix(tld, "xn--") {
		if len(tld) < 5 || len(tld) > 63 {
			return false
		}
		for i := 4; i < len(tld); i++ {
			if !isAlnumHyphen(tld[i]) {
				return false
			}
		}
		return true
	}

	if len(tld) < 2 || len(tld) > 63 {
		return false
	}
	for i := 0; i < len(tld); i++ {
		if !isAlpha(tld[i]) {
			return false
		}
	}
	return true
}

// Address is the optional-ip/optional-hostname pair from spec §3.2.
type Address struct {
	IP       netip.Addr
	Port     uint16
	Hostname string
}

// Bindable reports whether the address carries a usable IP (spec §3.2).
func (a Address) Bindable() bool { return a.IP.IsValid() }

// Connectable reports whether the address has an IP, that IP is not the
// all-zero wildcard address, and the port is non-zero (spec §3.2).
func (a Address) Connectable() bool {
	return a.IP.IsValid() && !a.IP.IsUnspecified() && a.Port != 0
}
