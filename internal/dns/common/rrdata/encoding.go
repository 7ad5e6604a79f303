package rrdata

import (
	"fmt"

	"github.com/Protryon/adns/internal/dns/domain"
)

// Encode renders a record's presentation-form data into its canonical wire
// RDATA. Unknown types pass through as raw bytes.
func Encode(rrType domain.RRType, data string) ([]byte, error) {
	switch rrType {
	case domain.TypeA: // 1
		return encodeAData(data)
	case domain.TypeNS: // 2
		return encodeNSData(data)
	case domain.TypeCNAME: // 5
		return encodeCNAMEData(data)
	case domain.TypeSOA: // 6
		return encodeSOAData(data)
	case domain.TypePTR: // 12
		return encodePTRData(data)
	case domain.TypeMX: // 15
		return encodeMXData(data)
	case domain.TypeTXT: // 16
		return encodeTXTData(data)
	case domain.TypeAAAA: // 28
		return encodeAAAAData(data)
	case domain.TypeSRV: // 33
		return encodeSRVData(data)
	case domain.TypeDNAME: // 39
		return encodeDNAMEData(data)
	case domain.TypeCAA: // 257
		return encodeCAAData(data)
	default:
		if rrType.IsMeta() {
			return nil, fmt.Errorf("%s records carry no zone data", rrType)
		}
		return []byte(data), nil
	}
}

// NewRecord builds a validated record from presentation data.
func NewRecord(name domain.Name, rrType domain.RRType, ttl uint32, data string) (domain.ResourceRecord, error) {
	encoded, err := Encode(rrType, data)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	return domain.NewResourceRecord(name, rrType, ttl, encoded, data)
}
