package rrdata

import (
	"fmt"
	"net"
)

// encodeAData encodes an A record address into its 4-byte binary form.
func encodeAData(data string) ([]byte, error) {
	ip := net.ParseIP(data)
	if !isIPv4(ip) {
		return nil, fmt.Errorf("invalid A record address: %s", data)
	}
	return ip.To4(), nil
}

func decodeAData(b []byte) (string, error) {
	if len(b) != net.IPv4len {
		return "", fmt.Errorf("invalid A data length %d", len(b))
	}
	return net.IP(b).String(), nil
}
