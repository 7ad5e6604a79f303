package rrdata

import (
	"github.com/Protryon/adns/internal/dns/domain"
)

// encodeSOAData encodes the presentation form
// "mname rname serial refresh retry expire minimum".
func encodeSOAData(data string) ([]byte, error) {
	soa, err := domain.ParseSOA(data)
	if err != nil {
		return nil, err
	}
	return soa.MarshalData(), nil
}

func decodeSOAData(b []byte) (string, error) {
	soa, err := domain.ParseSOAData(b)
	if err != nil {
		return "", err
	}
	return soa.String(), nil
}
