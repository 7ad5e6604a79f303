package wire

import (
	"encoding/binary"
	"strings"

	"github.com/Protryon/adns/internal/dns/domain"
)

// maxPointerHops bounds name decompression; pointers must also point
// strictly backwards, so any chain longer than this is hostile.
const maxPointerHops = 32

// Envelope is a decoded message together with the transaction signature
// context needed to verify it. TSIG is nil for unsigned messages. Prefix
// holds the digest prefix of a signed request: the wire bytes up to the
// TSIG record, with the original ID restored and ARCOUNT decremented.
type Envelope struct {
	Message *domain.Message
	TSIG    *domain.TSIG
	KeyName domain.Name
	Prefix  []byte
}

// Signed reports whether the message carried a TSIG record.
func (e *Envelope) Signed() bool {
	return e.TSIG != nil
}

// DecodeMessage parses a complete wire message. Meta records (OPT, TSIG)
// are stripped from the additional section into Message/Envelope fields.
func DecodeMessage(data []byte) (*Envelope, error) {
	header, err := domain.UnpackHeader(data)
	if err != nil {
		return nil, decodeErr(KindBadHeader, 0, "%v", err)
	}
	msg := &domain.Message{Header: header, UDPSize: domain.DefaultUDPSize}
	env := &Envelope{Message: msg}
	d := &decoder{data: data, off: domain.HeaderLength}

	for i := 0; i < int(header.QDCount); i++ {
		q, err := d.readQuestion()
		if err != nil {
			return nil, err
		}
		msg.Questions = append(msg.Questions, q)
	}

	sections := []struct {
		count int
		out   *[]domain.ResourceRecord
	}{
		{int(header.ANCount), &msg.Answers},
		{int(header.NSCount), &msg.Authority},
		{int(header.ARCount), &msg.Additional},
	}
	remaining := int(header.ANCount) + int(header.NSCount) + int(header.ARCount)
	for si, section := range sections {
		for i := 0; i < section.count; i++ {
			start := d.off
			rr, err := d.readRecord()
			if err != nil {
				return nil, err
			}
			remaining--
			switch {
			case rr.Type == domain.TypeOPT && si == 2:
				msg.EDNS = true
				msg.UDPSize = uint16(rr.Class)
				if msg.UDPSize < domain.DefaultUDPSize {
					msg.UDPSize = domain.DefaultUDPSize
				}
			case rr.Type == domain.TypeTSIG:
				if si != 2 || remaining != 0 {
					return nil, decodeErr(KindBadRdataLength, start, "TSIG record is not last")
				}
				sig, err := domain.ParseTSIGData(rr.Data)
				if err != nil {
					return nil, decodeErr(KindBadRdataLength, start, "TSIG rdata: %v", err)
				}
				env.TSIG = &sig
				env.KeyName = rr.Name
				env.Prefix = tsigPrefix(data[:start], sig.OriginalID)
			default:
				*section.out = append(*section.out, rr)
			}
		}
	}
	if d.off != len(data) {
		return nil, decodeErr(KindTruncated, d.off, "%d trailing bytes", len(data)-d.off)
	}
	msg.SyncCounts()
	return env, nil
}

// tsigPrefix rewrites the digest prefix of a signed request: the original
// ID goes back into the header and the TSIG record is removed from ARCOUNT.
func tsigPrefix(data []byte, originalID uint16) []byte {
	prefix := append([]byte(nil), data...)
	binary.BigEndian.PutUint16(prefix[0:2], originalID)
	arcount := binary.BigEndian.Uint16(prefix[10:12])
	binary.BigEndian.PutUint16(prefix[10:12], arcount-1)
	return prefix
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) readQuestion() (domain.Question, error) {
	name, err := d.readName()
	if err != nil {
		return domain.Question{}, err
	}
	if d.off+4 > len(d.data) {
		return domain.Question{}, decodeErr(KindTruncated, d.off, "question fixed fields")
	}
	q := domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(d.data[d.off : d.off+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(d.data[d.off+2 : d.off+4])),
	}
	d.off += 4
	return q, nil
}

func (d *decoder) readRecord() (domain.ResourceRecord, error) {
	name, err := d.readName()
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	if d.off+10 > len(d.data) {
		return domain.ResourceRecord{}, decodeErr(KindTruncated, d.off, "record fixed fields")
	}
	rr := domain.ResourceRecord{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(d.data[d.off : d.off+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(d.data[d.off+2 : d.off+4])),
		TTL:   binary.BigEndian.Uint32(d.data[d.off+4 : d.off+8]),
	}
	rdlen := int(binary.BigEndian.Uint16(d.data[d.off+8 : d.off+10]))
	d.off += 10
	if d.off+rdlen > len(d.data) {
		return domain.ResourceRecord{}, decodeErr(KindTruncated, d.off, "rdata claims %d bytes", rdlen)
	}
	data, err := d.canonicalRData(rr.Type, rdlen)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	rr.Data = data
	return rr, nil
}

// canonicalRData consumes rdlen bytes of RDATA, decompressing any embedded
// names so the stored form is position-independent.
func (d *decoder) canonicalRData(t domain.RRType, rdlen int) ([]byte, error) {
	end := d.off + rdlen
	var out []byte
	appendName := func() error {
		name, err := d.readName()
		if err != nil {
			return err
		}
		if d.off > end {
			return decodeErr(KindBadRdataLength, d.off, "name overruns rdata")
		}
		out = append(out, name.Wire()...)
		return nil
	}
	appendFixed := func(n int) error {
		if d.off+n > end {
			return decodeErr(KindBadRdataLength, d.off, "rdata fixed fields")
		}
		out = append(out, d.data[d.off:d.off+n]...)
		d.off += n
		return nil
	}

	switch t {
	case domain.TypeNS, domain.TypeCNAME, domain.TypePTR, domain.TypeDNAME:
		if err := appendName(); err != nil {
			return nil, err
		}
	case domain.TypeSOA:
		if err := appendName(); err != nil {
			return nil, err
		}
		if err := appendName(); err != nil {
			return nil, err
		}
		if err := appendFixed(20); err != nil {
			return nil, err
		}
	case domain.TypeMX:
		if err := appendFixed(2); err != nil {
			return nil, err
		}
		if err := appendName(); err != nil {
			return nil, err
		}
	case domain.TypeSRV:
		if err := appendFixed(6); err != nil {
			return nil, err
		}
		if err := appendName(); err != nil {
			return nil, err
		}
	default:
		// opaque copy
		if err := appendFixed(rdlen); err != nil {
			return nil, err
		}
	}
	if d.off != end {
		return nil, decodeErr(KindBadRdataLength, d.off, "%d unparsed rdata bytes", end-d.off)
	}
	return out, nil
}

func (d *decoder) readName() (domain.Name, error) {
	var labels []string
	total := 0
	hops := 0
	pos := d.off
	next := -1
	for {
		if pos >= len(d.data) {
			return "", decodeErr(KindTruncated, pos, "name runs past message end")
		}
		b := d.data[pos]
		switch {
		case b == 0:
			if next == -1 {
				next = pos + 1
			}
			d.off = next
			return domain.Name(strings.Join(labels, ".")), nil
		case b&0xC0 == 0xC0:
			if pos+1 >= len(d.data) {
				return "", decodeErr(KindTruncated, pos, "partial compression pointer")
			}
			target := int(b&0x3F)<<8 | int(d.data[pos+1])
			if next == -1 {
				next = pos + 2
			}
			if target >= pos {
				return "", decodeErr(KindCompressionLoop, pos, "forward pointer to %d", target)
			}
			if hops++; hops > maxPointerHops {
				return "", decodeErr(KindCompressionLoop, pos, "pointer chain exceeds %d hops", maxPointerHops)
			}
			pos = target
		case b&0xC0 != 0:
			return "", decodeErr(KindInvalidLabel, pos, "reserved label type 0x%02x", b&0xC0)
		default:
			l := int(b)
			if pos+1+l > len(d.data) {
				return "", decodeErr(KindTruncated, pos, "label runs past message end")
			}
			if total += l + 1; total > 255 {
				return "", decodeErr(KindInvalidLabel, pos, "name exceeds 255 octets")
			}
			label := string(d.data[pos+1 : pos+1+l])
			// A literal dot inside a label would shift label boundaries in
			// the dotted presentation form names are held in.
			if strings.Contains(label, ".") {
				return "", decodeErr(KindInvalidLabel, pos, "label contains a dot")
			}
			labels = append(labels, label)
			pos += 1 + l
		}
	}
}

// EncodeMessage serializes a message, compressing owner names. When maxSize
// is positive and the message does not fit, records are shed a section at a
// time (additional, then authority, then answers) and the TC bit is set
// once authority or answer records are lost. The EDNS OPT record, when
// present, is emitted first in the additional section so it survives
// shedding longest.
func EncodeMessage(msg *domain.Message, maxSize int) ([]byte, error) {
	shed := []func(m *domain.Message){
		func(m *domain.Message) {},
		func(m *domain.Message) { m.Additional = nil },
		func(m *domain.Message) { m.Additional, m.Authority = nil, nil; m.Header.Truncated = true },
		func(m *domain.Message) {
			m.Additional, m.Authority, m.Answers = nil, nil, nil
			m.Header.Truncated = true
		},
	}
	var out []byte
	for _, strip := range shed {
		m := *msg
		strip(&m)
		m.SyncCounts()
		if m.EDNS {
			m.Header.ARCount++
		}
		out = encodeOnce(&m)
		if maxSize <= 0 || len(out) <= maxSize {
			return out, nil
		}
	}
	return out, nil
}

func encodeOnce(msg *domain.Message) []byte {
	e := &encoder{offsets: map[string]int{}}
	header := msg.Header.Pack()
	e.buf = append(e.buf, header[:]...)
	for _, q := range msg.Questions {
		e.writeName(q.Name)
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(q.Type))
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(q.Class))
	}
	for _, rr := range msg.Answers {
		e.writeRecord(rr)
	}
	for _, rr := range msg.Authority {
		e.writeRecord(rr)
	}
	if msg.EDNS {
		e.writeRecord(domain.ResourceRecord{
			Name:  "",
			Type:  domain.TypeOPT,
			Class: domain.RRClass(domain.AdvertisedUDPSize),
		})
	}
	for _, rr := range msg.Additional {
		e.writeRecord(rr)
	}
	return e.buf
}

type encoder struct {
	buf     []byte
	offsets map[string]int
}

func (e *encoder) writeRecord(rr domain.ResourceRecord) {
	e.writeName(rr.Name)
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(rr.Type))
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(rr.Class))
	e.buf = binary.BigEndian.AppendUint32(e.buf, rr.TTL)
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(rr.Data)))
	e.buf = append(e.buf, rr.Data...)
}

// writeName emits a name, replacing any previously emitted suffix with a
// compression pointer.
func (e *encoder) writeName(n domain.Name) {
	labels := n.Labels()
	for i := range labels {
		suffix := strings.ToLower(strings.Join(labels[i:], "."))
		if off, ok := e.offsets[suffix]; ok {
			e.buf = binary.BigEndian.AppendUint16(e.buf, 0xC000|uint16(off))
			return
		}
		if len(e.buf) < 0x4000 {
			e.offsets[suffix] = len(e.buf)
		}
		e.buf = append(e.buf, byte(len(labels[i])))
		e.buf = append(e.buf, labels[i]...)
	}
	e.buf = append(e.buf, 0)
}

// AppendTSIG signs an already encoded message by appending a TSIG record
// and bumping ARCOUNT. The record is written without compression.
func AppendTSIG(msgWire []byte, keyName domain.Name, sig domain.TSIG) []byte {
	out := append([]byte(nil), msgWire...)
	arcount := binary.BigEndian.Uint16(out[10:12])
	binary.BigEndian.PutUint16(out[10:12], arcount+1)

	out = append(out, keyName.Wire()...)
	out = binary.BigEndian.AppendUint16(out, uint16(domain.TypeTSIG))
	out = binary.BigEndian.AppendUint16(out, uint16(domain.ClassANY))
	out = binary.BigEndian.AppendUint32(out, 0) // TTL
	data := sig.MarshalData()
	out = binary.BigEndian.AppendUint16(out, uint16(len(data)))
	return append(out, data...)
}
