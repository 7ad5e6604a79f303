package rrdata

import (
	"fmt"
	"strings"
)

// encodeTXTData encodes TXT presentation data into length-prefixed character
// strings. Segments are whitespace-separated tokens; quoted segments may
// contain spaces and the escapes \" and \\.
func encodeTXTData(data string) ([]byte, error) {
	segments, err := splitTXT(data)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("TXT record must contain at least one string")
	}
	var encoded []byte
	for _, segment := range segments {
		if len(segment) > 255 {
			return nil, fmt.Errorf("TXT string too long: %d bytes", len(segment))
		}
		encoded = append(encoded, byte(len(segment)))
		encoded = append(encoded, segment...)
	}
	return encoded, nil
}

func decodeTXTData(b []byte) (string, error) {
	var parts []string
	for i := 0; i < len(b); {
		segLen := int(b[i])
		i++
		if i+segLen > len(b) {
			return "", fmt.Errorf("truncated TXT string")
		}
		parts = append(parts, quoteTXT(string(b[i:i+segLen])))
		i += segLen
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty TXT data")
	}
	return strings.Join(parts, " "), nil
}

func splitTXT(data string) ([]string, error) {
	var segments []string
	var current strings.Builder
	inQuote := false
	inToken := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\\' && inQuote:
			i++
			if i >= len(data) {
				return nil, fmt.Errorf("dangling escape in TXT data")
			}
			current.WriteByte(data[i])
		case c == '"':
			if inQuote {
				segments = append(segments, current.String())
				current.Reset()
				inQuote = false
			} else {
				if inToken {
					return nil, fmt.Errorf("unexpected quote inside TXT token")
				}
				inQuote = true
			}
		case c == ' ' || c == '\t':
			if inQuote {
				current.WriteByte(c)
			} else if inToken {
				segments = append(segments, current.String())
				current.Reset()
				inToken = false
			}
		default:
			if !inQuote {
				inToken = true
			}
			current.WriteByte(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in TXT data")
	}
	if inToken {
		segments = append(segments, current.String())
	}
	return segments, nil
}

func quoteTXT(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
