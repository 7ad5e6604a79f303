package domain

import (
	"encoding/binary"
	"fmt"
)

// HeaderLength is the fixed size of the DNS message header in bytes.
const HeaderLength = 12

// Header is the fixed 12-byte DNS message header.
type Header struct {
	ID                 uint16
	Response           bool
	Opcode             Opcode
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	AuthenticData      bool
	CheckingDisabled   bool
	RCode              RCode

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Pack serializes the header into its wire form.
func (h Header) Pack() [HeaderLength]byte {
	var out [HeaderLength]byte
	binary.BigEndian.PutUint16(out[0:2], h.ID)

	var flags uint16
	if h.Response {
		flags |= 1 << 15
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.Authoritative {
		flags |= 1 << 10
	}
	if h.Truncated {
		flags |= 1 << 9
	}
	if h.RecursionDesired {
		flags |= 1 << 8
	}
	if h.RecursionAvailable {
		flags |= 1 << 7
	}
	if h.AuthenticData {
		flags |= 1 << 5
	}
	if h.CheckingDisabled {
		flags |= 1 << 4
	}
	flags |= uint16(h.RCode.HeaderBits() & 0x0F)
	binary.BigEndian.PutUint16(out[2:4], flags)

	binary.BigEndian.PutUint16(out[4:6], h.QDCount)
	binary.BigEndian.PutUint16(out[6:8], h.ANCount)
	binary.BigEndian.PutUint16(out[8:10], h.NSCount)
	binary.BigEndian.PutUint16(out[10:12], h.ARCount)
	return out
}

// UnpackHeader decodes the fixed header from the start of a message.
func UnpackHeader(data []byte) (Header, error) {
	if len(data) < HeaderLength {
		return Header{}, fmt.Errorf("message shorter than header: %d bytes", len(data))
	}
	flags := binary.BigEndian.Uint16(data[2:4])
	return Header{
		ID:                 binary.BigEndian.Uint16(data[0:2]),
		Response:           flags&(1<<15) != 0,
		Opcode:             Opcode(flags >> 11 & 0x0F),
		Authoritative:      flags&(1<<10) != 0,
		Truncated:          flags&(1<<9) != 0,
		RecursionDesired:   flags&(1<<8) != 0,
		RecursionAvailable: flags&(1<<7) != 0,
		AuthenticData:      flags&(1<<5) != 0,
		CheckingDisabled:   flags&(1<<4) != 0,
		RCode:              RCode(flags & 0x0F),
		QDCount:            binary.BigEndian.Uint16(data[4:6]),
		ANCount:            binary.BigEndian.Uint16(data[6:8]),
		NSCount:            binary.BigEndian.Uint16(data[8:10]),
		ARCount:            binary.BigEndian.Uint16(data[10:12]),
	}, nil
}
