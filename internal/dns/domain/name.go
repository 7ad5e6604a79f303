package domain

import (
	"fmt"
	"strings"
)

// Name is a DNS domain name stored in presentation form without a trailing
// dot. The empty Name is the root (zone apex of the whole dataset). Case is
// preserved as parsed; all comparisons are ASCII case-insensitive per DNS
// convention.
type Name string

// Wildcard labels understood by Matches. "*" matches exactly one label at
// its position; "*+" (leading only) matches one or more labels; "**"
// (leading only) matches zero or more labels.
const (
	wildcardOne     = "*"
	wildcardPlus    = "*+"
	wildcardAnyDeep = "**"
)

// maxNameLength bounds the presentation length; the wire form (length octets
// plus terminator) of a 253-octet presentation name is 255 octets.
const maxNameLength = 253

const maxLabelLength = 63

// ParseName validates and normalizes a presentation-form domain name.
// Trailing dots and surrounding whitespace are stripped; "" and "." and "@"
// all denote the root.
func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ".") {
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "@" {
		return Name(""), nil
	}
	if len(s) > maxNameLength {
		return "", fmt.Errorf("name %q exceeds %d octets", s, maxNameLength)
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" {
			return "", fmt.Errorf("name %q contains an empty label", s)
		}
		if len(label) > maxLabelLength {
			return "", fmt.Errorf("label %q exceeds %d octets", label, maxLabelLength)
		}
	}
	return Name(s), nil
}

// MustParseName is ParseName for static names in tests and wiring code.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string {
	if n == "" {
		return "."
	}
	return string(n)
}

// IsRoot reports whether the name is the zone-tree root.
func (n Name) IsRoot() bool {
	return n == ""
}

// Key returns the lowercase form used for map keys and case-insensitive
// indexing.
func (n Name) Key() string {
	return strings.ToLower(string(n))
}

// Labels returns the name's labels in left-to-right order. The root has no
// labels.
func (n Name) Labels() []string {
	if n == "" {
		return nil
	}
	return strings.Split(string(n), ".")
}

// Equal reports case-insensitive equality.
func (n Name) Equal(other Name) bool {
	return strings.EqualFold(string(n), string(other))
}

// EndsWith reports whether suffix is a label-aligned suffix of n. Every name
// ends with the root.
func (n Name) EndsWith(suffix Name) bool {
	if suffix == "" {
		return true
	}
	if len(n) < len(suffix) {
		return false
	}
	if !strings.EqualFold(string(n[len(n)-len(suffix):]), string(suffix)) {
		return false
	}
	return len(n) == len(suffix) || n[len(n)-len(suffix)-1] == '.'
}

// Matches reports whether qname matches n interpreted as an owner pattern.
// Without wildcards this is Equal. A leading "**" consumes zero or more
// leading labels and a leading "*+" consumes one or more; a "*" label in any
// position matches exactly one label.
func (n Name) Matches(qname Name) bool {
	if n.Equal(qname) {
		return true
	}
	own := n.Labels()
	theirs := qname.Labels()
	if len(own) > 0 {
		switch own[0] {
		case wildcardAnyDeep:
			return matchTail(own[1:], theirs)
		case wildcardPlus:
			if len(theirs) < len(own) {
				return false
			}
			return matchTail(own[1:], theirs)
		}
	}
	if len(own) != len(theirs) {
		return false
	}
	for i := range own {
		if own[i] != wildcardOne && !strings.EqualFold(own[i], theirs[i]) {
			return false
		}
	}
	return true
}

// IsWildcard reports whether the name contains any wildcard label.
func (n Name) IsWildcard() bool {
	for _, label := range n.Labels() {
		switch label {
		case wildcardOne, wildcardPlus, wildcardAnyDeep:
			return true
		}
	}
	return false
}

// matchTail compares the trailing pattern labels against the trailing qname
// labels, honoring "*" within the tail.
func matchTail(pattern, qname []string) bool {
	if len(qname) < len(pattern) {
		return false
	}
	qname = qname[len(qname)-len(pattern):]
	for i := range pattern {
		if pattern[i] != wildcardOne && !strings.EqualFold(pattern[i], qname[i]) {
			return false
		}
	}
	return true
}

// Wire returns the uncompressed wire form of the name: a sequence of
// length-prefixed labels terminated by a zero octet.
func (n Name) Wire() []byte {
	labels := n.Labels()
	size := 1
	for _, label := range labels {
		size += 1 + len(label)
	}
	out := make([]byte, 0, size)
	for _, label := range labels {
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0)
}

// readWireName decodes an uncompressed wire-form name from data, returning
// the name and the number of bytes consumed. Compression pointers are not
// accepted; data holding them must be canonicalized by the wire codec first.
func readWireName(data []byte) (Name, int, error) {
	var labels []string
	off := 0
	for {
		if off >= len(data) {
			return "", 0, fmt.Errorf("truncated wire name")
		}
		l := int(data[off])
		if l == 0 {
			off++
			break
		}
		if l > maxLabelLength {
			return "", 0, fmt.Errorf("invalid wire label length %d", l)
		}
		off++
		if off+l > len(data) {
			return "", 0, fmt.Errorf("truncated wire label")
		}
		label := string(data[off : off+l])
		if strings.Contains(label, ".") {
			return "", 0, fmt.Errorf("wire label contains a dot")
		}
		labels = append(labels, label)
		off += l
	}
	name, err := ParseName(strings.Join(labels, "."))
	if err != nil {
		return "", 0, err
	}
	return name, off, nil
}
