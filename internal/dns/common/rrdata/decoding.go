package rrdata

import (
	"encoding/hex"
	"fmt"

	"github.com/Protryon/adns/internal/dns/domain"
)

// Decode renders canonical wire RDATA back into presentation form. Unknown
// types render as hex.
func Decode(rrType domain.RRType, data []byte) (string, error) {
	switch rrType {
	case domain.TypeA: // 1
		return decodeAData(data)
	case domain.TypeNS: // 2
		return decodeNSData(data)
	case domain.TypeCNAME: // 5
		return decodeCNAMEData(data)
	case domain.TypeSOA: // 6
		return decodeSOAData(data)
	case domain.TypePTR: // 12
		return decodePTRData(data)
	case domain.TypeMX: // 15
		return decodeMXData(data)
	case domain.TypeTXT: // 16
		return decodeTXTData(data)
	case domain.TypeAAAA: // 28
		return decodeAAAAData(data)
	case domain.TypeSRV: // 33
		return decodeSRVData(data)
	case domain.TypeDNAME: // 39
		return decodeDNAMEData(data)
	case domain.TypeCAA: // 257
		return decodeCAAData(data)
	default:
		return fmt.Sprintf("\\# %d %s", len(data), hex.EncodeToString(data)), nil
	}
}

// Target extracts the embedded target name from name-bearing RDATA, used to
// chase aliases and attach glue. ok is false for types without a target.
func Target(rrType domain.RRType, data []byte) (domain.Name, bool) {
	var raw string
	var err error
	switch rrType {
	case domain.TypeNS, domain.TypeCNAME, domain.TypePTR, domain.TypeDNAME:
		raw, err = decodeSoleDomainName(data)
	case domain.TypeMX:
		if len(data) < 2 {
			return "", false
		}
		raw, err = decodeSoleDomainName(data[2:])
	case domain.TypeSRV:
		if len(data) < 6 {
			return "", false
		}
		raw, err = decodeSoleDomainName(data[6:])
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	name, err := domain.ParseName(raw)
	if err != nil {
		return "", false
	}
	return name, true
}
