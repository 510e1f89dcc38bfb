package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxyHeaders are consulted in order when the proxy is trusted.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// parseAddr accepts "ip", "ip:port" and "[v6]:port". IPv4-mapped IPv6
// addresses are unmapped so they match IPv4 rules.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// ClientIP resolves the client address. With trustProxy it prefers
// CF-Connecting-IP, then the left-most X-Forwarded-For hop, then X-Real-IP,
// and falls back to RemoteAddr.
func ClientIP(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		for _, h := range proxyHeaders {
			v := r.Header.Get(h)
			if h == "X-Forwarded-For" {
				v, _, _ = strings.Cut(v, ",")
			}
			if addr, ok := parseAddr(v); ok {
				return addr, true
			}
		}
	}
	return parseAddr(r.RemoteAddr)
}

// ClientKey is ClientIP as a string, or the raw RemoteAddr when it does not parse.
func ClientKey(r *http.Request, trustProxy bool) string {
	if addr, ok := ClientIP(r, trustProxy); ok {
		return addr.String()
	}
	return r.RemoteAddr
}

// IPMatcher matches addresses against a list of IPs and CIDRs.
type IPMatcher struct {
	prefixes []netip.Prefix
	invalid  []string
}

// NewIPMatcher builds a matcher. Unparseable entries are kept in Invalid.
func NewIPMatcher(list []string) *IPMatcher {
	m := &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if addr, ok := parseAddr(s); ok {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		m.invalid = append(m.invalid, s)
	}
	return m
}

func (m *IPMatcher) IsEmpty() bool {
	return len(m.prefixes) == 0
}

// Invalid lists the entries that were neither an IP nor a CIDR.
func (m *IPMatcher) Invalid() []string {
	return m.invalid
}

func (m *IPMatcher) Allow(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
