package domain

import (
	"fmt"
	"strings"
)

// Zone is one node of the zone tree. Name is the apex in absolute form; the
// root of the tree has the empty Name and contains every delegated subzone
// beneath it. Snapshots of the tree are immutable once published: mutation
// happens on a Clone which is then swapped in atomically by the serving
// layer.
type Zone struct {
	Name        Name
	Records     []ResourceRecord
	Zones       []*Zone
	SOA         *SOA
	Nameservers []Name
	TSIGKeys    map[string]TSIGKey

	// Authoritative marks zones whose answers set the AA bit and whose
	// misses produce NXDOMAIN; non-authoritative zones yield referrals.
	Authoritative bool

	// AllowMD5TSIG permits the legacy hmac-md5.sig-alg.reg.int algorithm
	// for requests signed with this zone's keys.
	AllowMD5TSIG bool
}

// TTLs used when synthesizing apex records that are stored typed rather
// than as resource records.
const (
	SOARecordTTL = 60
	NSRecordTTL  = 3600
)

// Clone returns a deep copy of the zone tree. Record Data slices are shared;
// they are treated as immutable everywhere.
func (z *Zone) Clone() *Zone {
	if z == nil {
		return nil
	}
	out := &Zone{
		Name:          z.Name,
		Authoritative: z.Authoritative,
		AllowMD5TSIG:  z.AllowMD5TSIG,
	}
	if z.SOA != nil {
		soa := *z.SOA
		out.SOA = &soa
	}
	out.Records = append([]ResourceRecord(nil), z.Records...)
	out.Nameservers = append([]Name(nil), z.Nameservers...)
	if z.TSIGKeys != nil {
		out.TSIGKeys = make(map[string]TSIGKey, len(z.TSIGKeys))
		for k, v := range z.TSIGKeys {
			out.TSIGKeys[k] = v
		}
	}
	for _, sub := range z.Zones {
		out.Zones = append(out.Zones, sub.Clone())
	}
	return out
}

// Locate descends to the most specific zone containing qname, returning it
// together with the chain of enclosing zones ordered nearest first. The
// second return is nil when qname is outside the tree rooted at z.
func (z *Zone) Locate(qname Name) (*Zone, []*Zone) {
	if !qname.EndsWith(z.Name) {
		return nil, nil
	}
	current := z
	var ancestors []*Zone
descend:
	for {
		for _, sub := range current.Zones {
			if qname.EndsWith(sub.Name) {
				ancestors = append([]*Zone{current}, ancestors...)
				current = sub
				continue descend
			}
		}
		return current, ancestors
	}
}

// Subzone returns the direct child with the given apex, or nil.
func (z *Zone) Subzone(name Name) *Zone {
	for _, sub := range z.Zones {
		if sub.Name.Equal(name) {
			return sub
		}
	}
	return nil
}

// FindZone returns the zone in the tree whose apex equals name exactly, or
// nil.
func (z *Zone) FindZone(name Name) *Zone {
	zone, _ := z.Locate(name)
	if zone == nil || !zone.Name.Equal(name) {
		return nil
	}
	return zone
}

// FindKey resolves TSIG key material for keyName, consulting the most
// specific zone containing qname first and then its enclosing zones.
func (z *Zone) FindKey(qname, keyName Name) (TSIGKey, *Zone, bool) {
	zone, ancestors := z.Locate(qname)
	if zone == nil {
		return TSIGKey{}, nil, false
	}
	for _, candidate := range append([]*Zone{zone}, ancestors...) {
		if key, ok := candidate.TSIGKeys[keyName.Key()]; ok {
			return key, candidate, true
		}
	}
	return TSIGKey{}, nil, false
}

// EffectiveSOA returns the start of authority governing qname: the nearest
// zone at or above qname that carries one, along with that zone's apex.
func (z *Zone) EffectiveSOA(qname Name) (SOA, Name, bool) {
	zone, ancestors := z.Locate(qname)
	if zone == nil {
		return SOA{}, "", false
	}
	for _, candidate := range append([]*Zone{zone}, ancestors...) {
		if candidate.SOA != nil {
			return *candidate.SOA, candidate.Name, true
		}
	}
	return SOA{}, "", false
}

// EffectiveNS returns the nameserver set governing qname, found the same way
// as EffectiveSOA.
func (z *Zone) EffectiveNS(qname Name) ([]Name, Name, bool) {
	zone, ancestors := z.Locate(qname)
	if zone == nil {
		return nil, "", false
	}
	for _, candidate := range append([]*Zone{zone}, ancestors...) {
		if len(candidate.Nameservers) > 0 {
			return candidate.Nameservers, candidate.Name, true
		}
	}
	return nil, "", false
}

// Lookup returns the records whose owner matches qname within this single
// zone. Wildcard owners apply only when no literal owner equals qname;
// matched wildcard records are returned with the owner rewritten to qname.
// exists reports whether any owner (literal or wildcard) matched, which is
// what separates NXDOMAIN from an empty answer.
func (z *Zone) Lookup(qname Name) (records []ResourceRecord, exists bool) {
	for _, rr := range z.Records {
		if !rr.Name.IsWildcard() && rr.Name.Equal(qname) {
			records = append(records, rr)
			exists = true
		}
	}
	if exists {
		return records, true
	}
	for _, rr := range z.Records {
		if rr.Name.IsWildcard() && rr.Name.Matches(qname) {
			rr.Name = qname
			records = append(records, rr)
			exists = true
		}
	}
	return records, exists
}

// RRSet returns the records of this zone with the literal owner name and
// type. TypeANY collects all types.
func (z *Zone) RRSet(name Name, t RRType) []ResourceRecord {
	var out []ResourceRecord
	for _, rr := range z.Records {
		if rr.Name.Equal(name) && (t == TypeANY || rr.Type == t) {
			out = append(out, rr)
		}
	}
	return out
}

// NameExists reports whether any record in this zone has the literal owner
// name, or the name is the apex of this zone or a subzone.
func (z *Zone) NameExists(name Name) bool {
	if name.Equal(z.Name) {
		return true
	}
	for _, rr := range z.Records {
		if rr.Name.Equal(name) {
			return true
		}
	}
	for _, sub := range z.Zones {
		if name.Equal(sub.Name) {
			return true
		}
	}
	return false
}

// Validate checks structural invariants over the whole tree: subzone apexes
// must sit strictly beneath their parent, records must live at or beneath
// their zone's apex but not inside a subzone, every authoritative zone must
// be governed by a SOA and at least one NS, and no owner may mix CNAME data
// with other types.
func (z *Zone) Validate() error {
	return z.validate(z.SOA != nil, len(z.Nameservers) > 0)
}

func (z *Zone) validate(haveSOA, haveNS bool) error {
	if z.Authoritative {
		if !haveSOA {
			return fmt.Errorf("zone %s: authoritative but no SOA in scope", z.Name)
		}
		if !haveNS {
			return fmt.Errorf("zone %s: authoritative but no nameservers in scope", z.Name)
		}
	}
	cnames := map[string]bool{}
	others := map[string]bool{}
	for _, rr := range z.Records {
		if !rr.Name.EndsWith(z.Name) {
			return fmt.Errorf("zone %s: record %s outside apex", z.Name, rr.Name)
		}
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("zone %s: %w", z.Name, err)
		}
		if rr.Type == TypeCNAME {
			cnames[rr.Name.Key()] = true
		} else {
			others[rr.Name.Key()] = true
		}
		for _, sub := range z.Zones {
			if rr.Name.EndsWith(sub.Name) {
				return fmt.Errorf("zone %s: record %s belongs to subzone %s", z.Name, rr.Name, sub.Name)
			}
		}
	}
	for owner := range cnames {
		if others[owner] {
			return fmt.Errorf("zone %s: %s has CNAME alongside other data", z.Name, owner)
		}
	}
	seen := map[string]bool{}
	for _, sub := range z.Zones {
		if !sub.Name.EndsWith(z.Name) || sub.Name.Equal(z.Name) {
			return fmt.Errorf("zone %s: subzone %s not strictly beneath apex", z.Name, sub.Name)
		}
		if seen[sub.Name.Key()] {
			return fmt.Errorf("zone %s: duplicate subzone %s", z.Name, sub.Name)
		}
		seen[sub.Name.Key()] = true
		subSOA := haveSOA || sub.SOA != nil
		subNS := haveNS || len(sub.Nameservers) > 0
		if err := sub.validate(subSOA, subNS); err != nil {
			return err
		}
	}
	return nil
}

// OwnerNames returns the lowercase literal owner names present in this zone,
// including the apex and subzone apexes. Wildcard owners are excluded.
func (z *Zone) OwnerNames() []string {
	var out []string
	z.ownerNames(&out)
	return out
}

func (z *Zone) ownerNames(out *[]string) {
	*out = append(*out, z.Name.Key())
	for _, rr := range z.Records {
		if !rr.Name.IsWildcard() {
			*out = append(*out, rr.Name.Key())
		}
	}
	for _, sub := range z.Zones {
		sub.ownerNames(out)
	}
}

// HasWildcards reports whether any record in the tree has a wildcard owner.
func (z *Zone) HasWildcards() bool {
	for _, rr := range z.Records {
		if rr.Name.IsWildcard() {
			return true
		}
	}
	for _, sub := range z.Zones {
		if sub.HasWildcards() {
			return true
		}
	}
	return false
}

// String renders the apex for logging.
func (z *Zone) String() string {
	var b strings.Builder
	b.WriteString(z.Name.String())
	if z.Authoritative {
		b.WriteString(" (authoritative)")
	}
	return b.String()
}
