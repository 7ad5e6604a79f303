package domain

import (
	"bytes"
	"fmt"
)

// ResourceRecord is a single DNS record. Data holds the canonical wire-form
// RDATA with any embedded names uncompressed; Text holds the presentation
// form when one was rendered, and may be empty for records decoded off the
// wire.
type ResourceRecord struct {
	Name  Name
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  []byte
	Text  string
}

// NewResourceRecord builds a validated IN-class record.
func NewResourceRecord(name Name, t RRType, ttl uint32, data []byte, text string) (ResourceRecord, error) {
	rr := ResourceRecord{Name: name, Type: t, Class: ClassIN, TTL: ttl, Data: data, Text: text}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate rejects records that can never be stored in a zone.
func (rr ResourceRecord) Validate() error {
	if rr.Type.IsMeta() {
		return fmt.Errorf("record %s has meta type %s", rr.Name, rr.Type)
	}
	if len(rr.Data) > 0xFFFF {
		return fmt.Errorf("record %s %s rdata exceeds 65535 bytes", rr.Name, rr.Type)
	}
	return nil
}

// SameRRSet reports whether other belongs to the same RRset (owner, type and
// class all match).
func (rr ResourceRecord) SameRRSet(other ResourceRecord) bool {
	return rr.Type == other.Type && rr.Class == other.Class && rr.Name.Equal(other.Name)
}

// DataEqual reports whether both records carry identical canonical RDATA.
func (rr ResourceRecord) DataEqual(other ResourceRecord) bool {
	return rr.Type == other.Type && bytes.Equal(rr.Data, other.Data)
}

func (rr ResourceRecord) String() string {
	text := rr.Text
	if text == "" {
		text = fmt.Sprintf("\\# %d", len(rr.Data))
	}
	return fmt.Sprintf("%s %d %s %s %s", rr.Name, rr.TTL, rr.Class, rr.Type, text)
}
