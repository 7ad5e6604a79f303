package domain

import "fmt"

// RCode is a DNS response code. Values above 15 (the TSIG error codes) do
// not fit the header nibble; they travel in the TSIG record's error field
// while the header carries NOTAUTH.
type RCode uint16

const (
	RCodeNoError  RCode = 0
	RCodeFormErr  RCode = 1
	RCodeServFail RCode = 2
	RCodeNXDomain RCode = 3
	RCodeNotImp   RCode = 4
	RCodeRefused  RCode = 5
	RCodeYXDomain RCode = 6
	RCodeYXRRSet  RCode = 7
	RCodeNXRRSet  RCode = 8
	RCodeNotAuth  RCode = 9
	RCodeNotZone  RCode = 10

	RCodeBadSig  RCode = 16
	RCodeBadKey  RCode = 17
	RCodeBadTime RCode = 18
)

var rcodeNames = map[RCode]string{
	RCodeNoError:  "NOERROR",
	RCodeFormErr:  "FORMERR",
	RCodeServFail: "SERVFAIL",
	RCodeNXDomain: "NXDOMAIN",
	RCodeNotImp:   "NOTIMP",
	RCodeRefused:  "REFUSED",
	RCodeYXDomain: "YXDOMAIN",
	RCodeYXRRSet:  "YXRRSET",
	RCodeNXRRSet:  "NXRRSET",
	RCodeNotAuth:  "NOTAUTH",
	RCodeNotZone:  "NOTZONE",
	RCodeBadSig:   "BADSIG",
	RCodeBadKey:   "BADKEY",
	RCodeBadTime:  "BADTIME",
}

func (r RCode) String() string {
	if s, ok := rcodeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RCODE%d", uint16(r))
}

// HeaderBits returns the value carried in the header's 4-bit rcode field.
// TSIG error codes collapse to NOTAUTH.
func (r RCode) HeaderBits() uint8 {
	if r > 15 {
		return uint8(RCodeNotAuth)
	}
	return uint8(r)
}
