package rrdata

import (
	"fmt"
	"net"
)

// encodeAAAAData encodes an AAAA record address into its 16-byte binary
// form.
func encodeAAAAData(data string) ([]byte, error) {
	ip := net.ParseIP(data)
	if !isIPv6(ip) {
		return nil, fmt.Errorf("invalid AAAA record address: %s", data)
	}
	return ip.To16(), nil
}

func decodeAAAAData(b []byte) (string, error) {
	if len(b) != net.IPv6len {
		return "", fmt.Errorf("invalid AAAA data length %d", len(b))
	}
	return net.IP(b).String(), nil
}
