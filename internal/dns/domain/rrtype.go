package domain

import (
	"fmt"
	"strings"
)

// RRType identifies a DNS resource record type.
type RRType uint16

const (
	TypeA     RRType = 1
	TypeNS    RRType = 2
	TypeCNAME RRType = 5
	TypeSOA   RRType = 6
	TypePTR   RRType = 12
	TypeMX    RRType = 15
	TypeTXT   RRType = 16
	TypeAAAA  RRType = 28
	TypeSRV   RRType = 33
	TypeDNAME RRType = 39
	TypeOPT   RRType = 41
	TypeCAA   RRType = 257

	TypeTSIG RRType = 250
	TypeIXFR RRType = 251
	TypeAXFR RRType = 252
	TypeANY  RRType = 255
)

var rrTypeNames = map[RRType]string{
	TypeA:     "A",
	TypeNS:    "NS",
	TypeCNAME: "CNAME",
	TypeSOA:   "SOA",
	TypePTR:   "PTR",
	TypeMX:    "MX",
	TypeTXT:   "TXT",
	TypeAAAA:  "AAAA",
	TypeSRV:   "SRV",
	TypeDNAME: "DNAME",
	TypeOPT:   "OPT",
	TypeCAA:   "CAA",
	TypeTSIG:  "TSIG",
	TypeIXFR:  "IXFR",
	TypeAXFR:  "AXFR",
	TypeANY:   "ANY",
}

var rrTypeValues = func() map[string]RRType {
	m := make(map[string]RRType, len(rrTypeNames))
	for t, s := range rrTypeNames {
		m[s] = t
	}
	return m
}()

func (t RRType) String() string {
	if s, ok := rrTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TYPE%d", uint16(t))
}

// ParseRRType resolves a presentation-form type mnemonic, accepting the
// RFC3597 "TYPEnnn" form for unknown types.
func ParseRRType(s string) (RRType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if t, ok := rrTypeValues[upper]; ok {
		return t, nil
	}
	var n uint16
	if _, err := fmt.Sscanf(upper, "TYPE%d", &n); err == nil {
		return RRType(n), nil
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}

// IsQuestionOnly reports whether the type may appear only in the question
// section, never as record data.
func (t RRType) IsQuestionOnly() bool {
	return t >= TypeIXFR && t <= TypeANY
}

// IsMeta reports whether the type is a pseudo-record carried in messages but
// never stored in a zone.
func (t RRType) IsMeta() bool {
	return t == TypeOPT || t == TypeTSIG || t.IsQuestionOnly()
}
