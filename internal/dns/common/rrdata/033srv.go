package rrdata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// encodeSRVData encodes "priority weight port target" into its binary form.
func encodeSRVData(data string) ([]byte, error) {
	parts := strings.Fields(data)
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid SRV record (expected: priority weight port target): %s", data)
	}
	var fixed []byte
	for _, p := range parts[:3] {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid SRV field %q", p)
		}
		fixed = binary.BigEndian.AppendUint16(fixed, uint16(v))
	}
	target, err := encodeDomainName(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid SRV target: %w", err)
	}
	return append(fixed, target...), nil
}

func decodeSRVData(b []byte) (string, error) {
	if len(b) < 6 {
		return "", fmt.Errorf("invalid SRV data length %d", len(b))
	}
	priority := binary.BigEndian.Uint16(b[0:2])
	weight := binary.BigEndian.Uint16(b[2:4])
	port := binary.BigEndian.Uint16(b[4:6])
	target, err := decodeSoleDomainName(b[6:])
	if err != nil {
		return "", fmt.Errorf("invalid SRV target: %w", err)
	}
	return fmt.Sprintf("%d %d %d %s", priority, weight, port, target), nil
}
