// Package resolver answers questions against an immutable zone snapshot.
package resolver

import (
	"strings"

	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
)

// OwnerFilter answers whether a name could own records in a snapshot. A
// false answer is definitive; true may be a false positive and the full
// lookup decides.
type OwnerFilter interface {
	MightExist(name domain.Name) bool
}

// Resolver resolves queries against zone snapshots. It holds no zone state
// itself; every call receives the current snapshot root.
type Resolver struct {
	version string
	log     log.Logger
}

// New builds a resolver. version is what CHAOS version.bind queries report;
// empty disables them.
func New(version string, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Resolver{version: version, log: logger}
}

// Resolve answers a QUERY-opcode request against the snapshot rooted at
// root. filter, when non-nil, must have been built from the same snapshot;
// it lets definite name errors skip the record scan. The returned message
// has its section counts synced but is not yet wire-encoded.
func (r *Resolver) Resolve(root *domain.Zone, filter OwnerFilter, req *domain.Message) *domain.Message {
	resp := domain.NewResponse(req)
	resp.Questions = req.Questions

	if len(req.Questions) == 0 {
		resp.Header.RCode = domain.RCodeFormErr
		resp.SyncCounts()
		return resp
	}
	for _, q := range req.Questions {
		r.answer(root, filter, resp, q)
	}
	resp.SyncCounts()
	return resp
}

func (r *Resolver) answer(root *domain.Zone, filter OwnerFilter, resp *domain.Message, q domain.Question) {
	if q.Class == domain.ClassCH {
		r.answerChaos(resp, q)
		return
	}
	if q.Class != domain.ClassIN && q.Class != domain.ClassANY {
		resp.Header.RCode = domain.RCodeRefused
		return
	}
	if q.Type == domain.TypeIXFR || q.Type == domain.TypeAXFR {
		// Transfers are handled by the transfer service before resolution.
		resp.Header.RCode = domain.RCodeNotImp
		return
	}

	zone, _ := root.Locate(q.Name)
	if zone == nil {
		resp.Header.RCode = domain.RCodeRefused
		return
	}
	if !zone.Authoritative {
		r.referral(root, resp, q.Name)
		return
	}
	resp.Header.Authoritative = true

	var answers []domain.ResourceRecord
	exists := false
	if filter == nil || filter.MightExist(q.Name) {
		var err error
		answers, exists, err = r.lookup(root, zone, q.Name, q.Type)
		if err != nil {
			resp.Answers = nil
			resp.Header.RCode = domain.RCodeServFail
			return
		}
	}
	if len(answers) > 0 {
		resp.Answers = append(resp.Answers, answers...)
		r.attachGlue(root, resp)
		return
	}
	// Negative answer: authority gets the governing SOA; misses on names
	// with no owner at all are name errors.
	if soa, apex, ok := root.EffectiveSOA(q.Name); ok {
		resp.Authority = append(resp.Authority, soa.Record(apex, domain.SOARecordTTL))
	}
	if !exists {
		resp.Header.RCode = domain.RCodeNXDomain
	}
	r.log.Debug(map[string]any{
		"qname": q.Name.String(),
		"qtype": q.Type.String(),
		"rcode": resp.Header.RCode.String(),
	}, "negative answer")
}

// lookup collects the records answering qname/qtype within the snapshot,
// chasing aliases across zones. exists reports whether qname has any owner.
// A CNAME chain past the hop bound is a hard failure.
func (r *Resolver) lookup(root, zone *domain.Zone, qname domain.Name, qtype domain.RRType) ([]domain.ResourceRecord, bool, error) {
	var answers []domain.ResourceRecord
	records, exists := zone.Lookup(qname)

	// Apex SOA and NS live as typed zone fields and are synthesized here.
	if qtype == domain.TypeSOA || qtype == domain.TypeANY {
		if soa, apex, ok := root.EffectiveSOA(qname); ok && apex.Equal(qname) {
			answers = append(answers, soa.Record(apex, domain.SOARecordTTL))
			exists = true
		}
	}
	if qtype == domain.TypeNS || qtype == domain.TypeANY {
		if servers, apex, ok := root.EffectiveNS(qname); ok && apex.Equal(qname) {
			for _, ns := range servers {
				answers = append(answers, nsRecord(apex, ns))
			}
			exists = true
		}
	}
	if zone.Name.Equal(qname) {
		exists = true
	}

	var alias *domain.ResourceRecord
	for _, rr := range records {
		switch {
		case qtype == domain.TypeANY || rr.Type == qtype:
			answers = append(answers, rr)
		case rr.Type == domain.TypeCNAME:
			cname := rr
			alias = &cname
		}
	}
	if len(answers) == 0 && alias != nil && qtype != domain.TypeCNAME {
		chained, err := r.chase(root, *alias, qtype, 1)
		if err != nil {
			return nil, exists, err
		}
		answers = append(answers, *alias)
		answers = append(answers, chained...)
	}
	return answers, exists, nil
}

// referral answers from a non-authoritative zone: the effective NS set goes
// to the authority section with any glue we hold, and the AA bit stays
// clear.
func (r *Resolver) referral(root *domain.Zone, resp *domain.Message, qname domain.Name) {
	servers, apex, ok := root.EffectiveNS(qname)
	if !ok {
		resp.Header.RCode = domain.RCodeRefused
		return
	}
	for _, ns := range servers {
		resp.Authority = append(resp.Authority, nsRecord(apex, ns))
	}
	r.attachGlue(root, resp)
}

func (r *Resolver) answerChaos(resp *domain.Message, q domain.Question) {
	name := strings.ToLower(string(q.Name))
	versionQuery := name == "version.bind" || name == "version.server"
	typeOK := q.Type == domain.TypeTXT || q.Type == domain.TypeANY
	if r.version == "" || !versionQuery || !typeOK {
		resp.Header.RCode = domain.RCodeRefused
		return
	}
	text := r.version
	if len(text) > 255 {
		text = text[:255]
	}
	data := append([]byte{byte(len(text))}, text...)
	resp.Answers = append(resp.Answers, domain.ResourceRecord{
		Name:  q.Name,
		Type:  domain.TypeTXT,
		Class: domain.ClassCH,
		TTL:   0,
		Data:  data,
		Text:  text,
	})
}

func nsRecord(apex, ns domain.Name) domain.ResourceRecord {
	return domain.ResourceRecord{
		Name:  apex,
		Type:  domain.TypeNS,
		Class: domain.ClassIN,
		TTL:   domain.NSRecordTTL,
		Data:  ns.Wire(),
		Text:  ns.String(),
	}
}
