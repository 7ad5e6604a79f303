package rrdata

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeCAAData encodes `flags tag "value"` into its binary form.
func encodeCAAData(data string) ([]byte, error) {
	parts := strings.SplitN(strings.TrimSpace(data), " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid CAA record (expected: flags tag value): %s", data)
	}
	flags, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid CAA flags: %s", parts[0])
	}
	tag := parts[1]
	if len(tag) == 0 || len(tag) > 255 {
		return nil, fmt.Errorf("invalid CAA tag length %d", len(tag))
	}
	value := strings.TrimSpace(parts[2])
	value = strings.Trim(value, `"`)
	out := []byte{byte(flags), byte(len(tag))}
	out = append(out, tag...)
	return append(out, value...), nil
}

func decodeCAAData(b []byte) (string, error) {
	if len(b) < 2 {
		return "", fmt.Errorf("invalid CAA data length %d", len(b))
	}
	flags := b[0]
	tagLen := int(b[1])
	if len(b) < 2+tagLen {
		return "", fmt.Errorf("truncated CAA tag")
	}
	tag := string(b[2 : 2+tagLen])
	value := string(b[2+tagLen:])
	return fmt.Sprintf(`%d %s "%s"`, flags, tag, value), nil
}
