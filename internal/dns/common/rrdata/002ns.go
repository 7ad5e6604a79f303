package rrdata

// encodeNSData encodes an NS record's nameserver host name.
func encodeNSData(data string) ([]byte, error) {
	return encodeDomainName(data)
}

func decodeNSData(b []byte) (string, error) {
	return decodeSoleDomainName(b)
}
