package domain

// DefaultUDPSize is the payload limit assumed for clients that send no OPT
// record.
const DefaultUDPSize = 512

// AdvertisedUDPSize is the EDNS0 payload size this server advertises,
// following the DNS Flag Day 2020 recommendation.
const AdvertisedUDPSize = 1232

// Message is a fully decoded DNS message. UDPSize carries the client's
// EDNS0 payload size (DefaultUDPSize when no OPT record was present);
// EDNS reports whether an OPT record was seen, so that responses echo one.
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord

	UDPSize uint16
	EDNS    bool
}

// NewResponse seeds a response message mirroring the request's ID, opcode
// and recursion-desired flag.
func NewResponse(req *Message) *Message {
	return &Message{
		Header: Header{
			ID:               req.Header.ID,
			Response:         true,
			Opcode:           req.Header.Opcode,
			RecursionDesired: req.Header.RecursionDesired,
		},
		UDPSize: AdvertisedUDPSize,
		EDNS:    req.EDNS,
	}
}

// SyncCounts sets the header section counts from the section slices.
func (m *Message) SyncCounts() {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authority))
	m.Header.ARCount = uint16(len(m.Additional))
}
