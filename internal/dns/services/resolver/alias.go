package resolver

import (
	"errors"

	"github.com/Protryon/adns/internal/dns/common/rrdata"
	"github.com/Protryon/adns/internal/dns/domain"
)

// maxAliasDepth bounds CNAME chains to keep hostile zones from looping the
// resolver.
const maxAliasDepth = 8

// errAliasDepth reports a CNAME chain longer than maxAliasDepth; the
// caller answers SERVFAIL rather than a silently truncated chain.
var errAliasDepth = errors.New("alias chain too deep")

// chase follows a CNAME's target through the snapshot, accumulating the
// records that terminate the chain.
func (r *Resolver) chase(root *domain.Zone, alias domain.ResourceRecord, qtype domain.RRType, depth int) ([]domain.ResourceRecord, error) {
	if depth > maxAliasDepth {
		r.log.Warn(map[string]any{"owner": alias.Name.String()}, "alias chain too deep")
		return nil, errAliasDepth
	}
	target, ok := rrdata.Target(domain.TypeCNAME, alias.Data)
	if !ok {
		return nil, nil
	}
	zone, _ := root.Locate(target)
	if zone == nil || !zone.Authoritative {
		return nil, nil
	}
	records, _ := zone.Lookup(target)
	var out []domain.ResourceRecord
	for _, rr := range records {
		switch {
		case rr.Type == qtype || qtype == domain.TypeANY:
			out = append(out, rr)
		case rr.Type == domain.TypeCNAME:
			out = append(out, rr)
			chained, err := r.chase(root, rr, qtype, depth+1)
			if err != nil {
				return nil, err
			}
			return append(out, chained...), nil
		}
	}
	return out, nil
}

// attachGlue adds address records for the targets of NS, MX and SRV records
// already placed in the response, when the snapshot holds them.
func (r *Resolver) attachGlue(root *domain.Zone, resp *domain.Message) {
	seen := map[string]bool{}
	for _, rr := range resp.Answers {
		seen[rr.Name.Key()] = true
	}
	glueFor := func(records []domain.ResourceRecord) {
		for _, rr := range records {
			switch rr.Type {
			case domain.TypeNS, domain.TypeMX, domain.TypeSRV:
			default:
				continue
			}
			target, ok := rrdata.Target(rr.Type, rr.Data)
			if !ok || seen[target.Key()] {
				continue
			}
			seen[target.Key()] = true
			zone, _ := root.Locate(target)
			if zone == nil {
				continue
			}
			records, _ := zone.Lookup(target)
			for _, candidate := range records {
				if candidate.Type == domain.TypeA || candidate.Type == domain.TypeAAAA {
					resp.Additional = append(resp.Additional, candidate)
				}
			}
		}
	}
	glueFor(resp.Answers)
	glueFor(resp.Authority)
}
