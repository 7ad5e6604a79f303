package rrdata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// encodeMXData encodes "preference exchange" into its binary form.
func encodeMXData(data string) ([]byte, error) {
	parts := strings.Fields(data)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid MX record (expected: preference exchange): %s", data)
	}
	pref, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid MX preference: %s", parts[0])
	}
	exchange, err := encodeDomainName(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid MX exchange: %w", err)
	}
	return append(binary.BigEndian.AppendUint16(nil, uint16(pref)), exchange...), nil
}

func decodeMXData(b []byte) (string, error) {
	if len(b) < 2 {
		return "", fmt.Errorf("invalid MX data length %d", len(b))
	}
	pref := binary.BigEndian.Uint16(b[:2])
	exchange, err := decodeSoleDomainName(b[2:])
	if err != nil {
		return "", fmt.Errorf("invalid MX exchange: %w", err)
	}
	return fmt.Sprintf("%d %s", pref, exchange), nil
}
