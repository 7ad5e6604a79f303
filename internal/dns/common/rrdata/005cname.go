package rrdata

// encodeCNAMEData encodes a CNAME record's canonical target name.
func encodeCNAMEData(data string) ([]byte, error) {
	return encodeDomainName(data)
}

func decodeCNAMEData(b []byte) (string, error) {
	return decodeSoleDomainName(b)
}
