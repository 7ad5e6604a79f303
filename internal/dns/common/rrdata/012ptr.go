package rrdata

// encodePTRData encodes a PTR record's target name.
func encodePTRData(data string) ([]byte, error) {
	return encodeDomainName(data)
}

func decodePTRData(b []byte) (string, error) {
	return decodeSoleDomainName(b)
}
