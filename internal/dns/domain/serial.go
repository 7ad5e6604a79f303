package domain

// SerialLater reports whether candidate is later than current under RFC1982
// serial number arithmetic (serial space 2^32).
func SerialLater(candidate, current uint32) bool {
	diff := candidate - current
	return diff != 0 && diff < 1<<31
}

// NextSerial increments a zone serial, skipping zero on wraparound.
func NextSerial(s uint32) uint32 {
	s++
	if s == 0 {
		s = 1
	}
	return s
}
