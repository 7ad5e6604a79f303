package domain

import "fmt"

// RRClass identifies a DNS record class. Only IN data is served; NONE and
// ANY appear in update prerequisites and question sections.
type RRClass uint16

const (
	ClassIN   RRClass = 1
	ClassCH   RRClass = 3
	ClassNONE RRClass = 254
	ClassANY  RRClass = 255
)

func (c RRClass) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCH:
		return "CH"
	case ClassNONE:
		return "NONE"
	case ClassANY:
		return "ANY"
	default:
		return fmt.Sprintf("CLASS%d", uint16(c))
	}
}
