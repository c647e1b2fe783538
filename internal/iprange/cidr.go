package iprange

import (
	"net"
	"strconv"
	"strings"
)

// Matches reports whether ip falls inside the CIDR prefix. A prefix without a
// /bits suffix is treated as a single host (/32 for IPv4, /128 for IPv6).
// Malformed input returns false; callers are expected to pre-validate IP
// syntax.
func Matches(ip, prefix string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}

	subnet, bits, ok := splitPrefix(prefix)
	if !ok {
		return false
	}

	if v4, subnetV4 := addr.To4(), subnet.To4(); v4 != nil && subnetV4 != nil {
		if bits < 0 {
			bits = 32
		}
		if bits > 32 {
			return false
		}
		mask := maskFor(bits)
		return ToUint32(v4)&mask == ToUint32(subnetV4)&mask
	}

	// Mixed families never match; compare the remaining case as 128-bit.
	addr16, subnet16 := addr.To16(), subnet.To16()
	if addr16 == nil || subnet16 == nil || (addr.To4() == nil) != (subnet.To4() == nil) {
		return false
	}
	if bits < 0 {
		bits = 128
	}
	if bits > 128 {
		return false
	}
	mask := net.CIDRMask(bits, 128)
	return addr16.Mask(mask).Equal(subnet16.Mask(mask))
}

func splitPrefix(prefix string) (net.IP, int, bool) {
	base := prefix
	bits := -1
	if idx := strings.IndexByte(prefix, '/'); idx >= 0 {
		base = prefix[:idx]
		parsed, err := strconv.Atoi(prefix[idx+1:])
		if err != nil || parsed < 0 {
			return nil, 0, false
		}
		bits = parsed
	}

	subnet := net.ParseIP(base)
	if subnet == nil {
		return nil, 0, false
	}
	return subnet, bits, true
}

func maskFor(bits int) uint32 {
	if bits <= 0 {
		return 0
	}
	return ^uint32(0) << (32 - uint32(bits))
}

// ToUint32 converts an IPv4 address to its integer form; non-IPv4 input
// yields zero.
func ToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	if ip == nil {
		return 0
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

// NormalizeIPv4 returns the canonical dotted-quad form of raw, or "" when raw
// is not an IPv4 literal.
func NormalizeIPv4(raw string) string {
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return ""
	}
	v4 := parsed.To4()
	if v4 == nil {
		return ""
	}
	return v4.String()
}
