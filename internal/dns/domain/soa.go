package domain

import (
	"encoding/binary"
	"fmt"
)

// SOA is the typed form of a zone's start-of-authority record. Each zone
// carries at most one; serving code synthesizes the wire record on demand.
type SOA struct {
	MName   Name
	RName   Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// ParseSOA reads the presentation form "mname rname serial refresh retry
// expire minimum".
func ParseSOA(text string) (SOA, error) {
	var mname, rname string
	var soa SOA
	n, err := fmt.Sscanf(text, "%s %s %d %d %d %d %d",
		&mname, &rname, &soa.Serial, &soa.Refresh, &soa.Retry, &soa.Expire, &soa.Minimum)
	if err != nil || n != 7 {
		return SOA{}, fmt.Errorf("malformed SOA %q", text)
	}
	if soa.MName, err = ParseName(mname); err != nil {
		return SOA{}, err
	}
	if soa.RName, err = ParseName(rname); err != nil {
		return SOA{}, err
	}
	return soa, nil
}

// ParseSOAData decodes SOA RDATA whose names are in canonical uncompressed
// form.
func ParseSOAData(data []byte) (SOA, error) {
	var soa SOA
	var err error
	var n int
	if soa.MName, n, err = readWireName(data); err != nil {
		return SOA{}, fmt.Errorf("SOA mname: %w", err)
	}
	data = data[n:]
	if soa.RName, n, err = readWireName(data); err != nil {
		return SOA{}, fmt.Errorf("SOA rname: %w", err)
	}
	data = data[n:]
	if len(data) != 20 {
		return SOA{}, fmt.Errorf("SOA fixed fields: want 20 bytes, have %d", len(data))
	}
	soa.Serial = binary.BigEndian.Uint32(data[0:4])
	soa.Refresh = binary.BigEndian.Uint32(data[4:8])
	soa.Retry = binary.BigEndian.Uint32(data[8:12])
	soa.Expire = binary.BigEndian.Uint32(data[12:16])
	soa.Minimum = binary.BigEndian.Uint32(data[16:20])
	return soa, nil
}

// MarshalData returns the canonical wire-form RDATA.
func (s SOA) MarshalData() []byte {
	out := s.MName.Wire()
	out = append(out, s.RName.Wire()...)
	out = binary.BigEndian.AppendUint32(out, s.Serial)
	out = binary.BigEndian.AppendUint32(out, s.Refresh)
	out = binary.BigEndian.AppendUint32(out, s.Retry)
	out = binary.BigEndian.AppendUint32(out, s.Expire)
	return binary.BigEndian.AppendUint32(out, s.Minimum)
}

func (s SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		s.MName, s.RName, s.Serial, s.Refresh, s.Retry, s.Expire, s.Minimum)
}

// Record renders the SOA as a resource record owned by apex with the given
// TTL.
func (s SOA) Record(apex Name, ttl uint32) ResourceRecord {
	return ResourceRecord{
		Name:  apex,
		Type:  TypeSOA,
		Class: ClassIN,
		TTL:   ttl,
		Data:  s.MarshalData(),
		Text:  s.String(),
	}
}
