package rrdata

// encodeDNAMEData encodes a DNAME record's redirection target.
func encodeDNAMEData(data string) ([]byte, error) {
	return encodeDomainName(data)
}

func decodeDNAMEData(b []byte) (string, error) {
	return decodeSoleDomainName(b)
}
