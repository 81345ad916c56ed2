package service

import (
	"net/netip"
	"strings"
)

// AnonymizeIP zeroes the host part of an address: the last octet of IPv4
// and the last 80 bits of IPv6, so only the /48 survives. IPv4-mapped IPv6
// is treated as IPv4. Anything unparsable becomes empty.
func AnonymizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return ""
	}
	addr = addr.WithZone("").Unmap()

	if addr.Is4() {
		b := addr.As4()
		b[3] = 0
		return netip.AddrFrom4(b).String()
	}

	b := addr.As16()
	for i := 6; i < len(b); i++ {
		b[i] = 0
	}
	return netip.AddrFrom16(b).String()
}
