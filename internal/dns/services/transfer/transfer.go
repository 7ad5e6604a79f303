// Package transfer implements outbound AXFR zone transfers: a snapshot of
// one zone streamed as a SOA-bracketed sequence of TCP messages.
package transfer

import (
	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
)

// chunkSize is how many records ride in each transfer message. Small chunks
// keep every frame well under the TCP message size limit without measuring.
const chunkSize = 8

// Engine builds zone transfer responses from immutable snapshots, so a
// transfer always reflects a single point-in-time version of the zone.
type Engine struct {
	log log.Logger
}

// NewEngine builds a transfer engine.
func NewEngine(logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Engine{log: logger}
}

// Build produces the ordered messages answering an AXFR request, or a
// non-zero rcode when the transfer is refused. The serving layer signs and
// frames each message.
func (e *Engine) Build(root *domain.Zone, req *domain.Message) ([]*domain.Message, domain.RCode) {
	if len(req.Questions) != 1 {
		return nil, domain.RCodeFormErr
	}
	q := req.Questions[0]
	zone := root.FindZone(q.Name)
	if zone == nil || !zone.Authoritative || zone.SOA == nil {
		return nil, domain.RCodeRefused
	}

	soa := zone.SOA.Record(zone.Name, domain.SOARecordTTL)
	records := make([]domain.ResourceRecord, 0, len(zone.Records)+len(zone.Nameservers)+2)
	records = append(records, soa)
	for _, ns := range zone.Nameservers {
		records = append(records, domain.ResourceRecord{
			Name: zone.Name, Type: domain.TypeNS, Class: domain.ClassIN,
			TTL: domain.NSRecordTTL, Data: ns.Wire(), Text: ns.String(),
		})
	}
	records = append(records, zone.Records...)
	records = append(records, soa)

	var messages []*domain.Message
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		msg := domain.NewResponse(req)
		msg.Header.Authoritative = true
		if len(messages) == 0 {
			msg.Questions = req.Questions
		}
		msg.Answers = records[start:end]
		msg.SyncCounts()
		messages = append(messages, msg)
	}
	e.log.Info(map[string]any{
		"zone":     zone.Name.String(),
		"serial":   zone.SOA.Serial,
		"records":  len(records),
		"messages": len(messages),
	}, "zone transfer")
	return messages, domain.RCodeNoError
}
