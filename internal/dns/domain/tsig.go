package domain

import (
	"encoding/binary"
	"fmt"
)

// TSIG is the decoded RDATA of a transaction signature record (RFC2845).
// TimeSigned is seconds since the Unix epoch, carried as 48 bits on the
// wire.
type TSIG struct {
	Algorithm  Name
	TimeSigned uint64
	Fudge      uint16
	MAC        []byte
	OriginalID uint16
	Error      RCode
	OtherData  []byte
}

// TSIGKey is shared-secret key material; the signing algorithm is chosen by
// the requester per transaction.
type TSIGKey struct {
	Secret []byte
}

// ParseTSIGData decodes TSIG RDATA whose algorithm name is uncompressed.
func ParseTSIGData(data []byte) (TSIG, error) {
	var t TSIG
	var err error
	var n int
	if t.Algorithm, n, err = readWireName(data); err != nil {
		return TSIG{}, fmt.Errorf("TSIG algorithm: %w", err)
	}
	data = data[n:]
	if len(data) < 10 {
		return TSIG{}, fmt.Errorf("truncated TSIG fixed fields")
	}
	t.TimeSigned = uint64(binary.BigEndian.Uint16(data[0:2]))<<32 |
		uint64(binary.BigEndian.Uint32(data[2:6]))
	t.Fudge = binary.BigEndian.Uint16(data[6:8])
	macLen := int(binary.BigEndian.Uint16(data[8:10]))
	data = data[10:]
	if len(data) < macLen+4 {
		return TSIG{}, fmt.Errorf("truncated TSIG mac")
	}
	t.MAC = append([]byte(nil), data[:macLen]...)
	data = data[macLen:]
	t.OriginalID = binary.BigEndian.Uint16(data[0:2])
	t.Error = RCode(binary.BigEndian.Uint16(data[2:4]))
	data = data[4:]
	if len(data) < 2 {
		return TSIG{}, fmt.Errorf("truncated TSIG other length")
	}
	otherLen := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]
	if len(data) != otherLen {
		return TSIG{}, fmt.Errorf("TSIG other data: want %d bytes, have %d", otherLen, len(data))
	}
	t.OtherData = append([]byte(nil), data...)
	return t, nil
}

// MarshalData returns the wire-form RDATA.
func (t TSIG) MarshalData() []byte {
	out := t.Algorithm.Wire()
	out = binary.BigEndian.AppendUint16(out, uint16(t.TimeSigned>>32))
	out = binary.BigEndian.AppendUint32(out, uint32(t.TimeSigned))
	out = binary.BigEndian.AppendUint16(out, t.Fudge)
	out = binary.BigEndian.AppendUint16(out, uint16(len(t.MAC)))
	out = append(out, t.MAC...)
	out = binary.BigEndian.AppendUint16(out, t.OriginalID)
	out = binary.BigEndian.AppendUint16(out, uint16(t.Error))
	out = binary.BigEndian.AppendUint16(out, uint16(len(t.OtherData)))
	return append(out, t.OtherData...)
}

// Variables returns the TSIG variable block that is appended to the message
// digest: key name, class ANY, TTL zero, then algorithm, time, fudge, error
// and other data. In timers-only mode only time and fudge are digested.
func (t TSIG) Variables(keyName Name, timersOnly bool) []byte {
	if timersOnly {
		out := make([]byte, 0, 8)
		out = binary.BigEndian.AppendUint16(out, uint16(t.TimeSigned>>32))
		out = binary.BigEndian.AppendUint32(out, uint32(t.TimeSigned))
		return binary.BigEndian.AppendUint16(out, t.Fudge)
	}
	out := keyName.Wire()
	out = binary.BigEndian.AppendUint16(out, uint16(ClassANY))
	out = binary.BigEndian.AppendUint32(out, 0) // TTL
	out = append(out, t.Algorithm.Wire()...)
	out = binary.BigEndian.AppendUint16(out, uint16(t.TimeSigned>>32))
	out = binary.BigEndian.AppendUint32(out, uint32(t.TimeSigned))
	out = binary.BigEndian.AppendUint16(out, t.Fudge)
	out = binary.BigEndian.AppendUint16(out, uint16(t.Error))
	out = binary.BigEndian.AppendUint16(out, uint16(len(t.OtherData)))
	return append(out, t.OtherData...)
}
