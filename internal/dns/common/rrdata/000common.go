package rrdata

import (
	"fmt"
	"net"
	"strings"

	"github.com/Protryon/adns/internal/dns/domain"
)

// encodeDomainName renders a presentation-form name into uncompressed wire
// format. Used by every name-bearing record type.
func encodeDomainName(name string) ([]byte, error) {
	parsed, err := domain.ParseName(name)
	if err != nil {
		return nil, err
	}
	return parsed.Wire(), nil
}

// decodeDomainName reads an uncompressed wire-form name, returning the
// presentation form and the number of bytes consumed. Compressed rdata must
// be canonicalized by the message codec before it reaches this package.
func decodeDomainName(b []byte) (string, int, error) {
	var labels []string
	i := 0
	for {
		if i >= len(b) {
			return "", 0, fmt.Errorf("truncated domain name")
		}
		labelLen := int(b[i])
		if labelLen == 0 {
			i++
			break
		}
		if labelLen > 63 {
			return "", 0, fmt.Errorf("invalid label length %d", labelLen)
		}
		i++
		if i+labelLen > len(b) {
			return "", 0, fmt.Errorf("truncated label")
		}
		labels = append(labels, string(b[i:i+labelLen]))
		i += labelLen
	}
	if len(labels) == 0 {
		return ".", i, nil
	}
	return strings.Join(labels, "."), i, nil
}

// decodeSoleDomainName decodes rdata that consists of exactly one name.
func decodeSoleDomainName(b []byte) (string, error) {
	name, n, err := decodeDomainName(b)
	if err != nil {
		return "", err
	}
	if n != len(b) {
		return "", fmt.Errorf("%d trailing bytes after domain name", len(b)-n)
	}
	return name, nil
}

func isIPv4(ip net.IP) bool {
	return ip != nil && ip.To4() != nil
}

func isIPv6(ip net.IP) bool {
	return ip != nil && ip.To16() != nil && ip.To4() == nil
}
