package domain

import (
	"errors"
	"fmt"
)

// ErrReadOnlyZone is returned by zone stores that cannot accept dynamic
// updates; the server answers such updates with REFUSED rather than
// SERVFAIL.
var ErrReadOnlyZone = errors.New("zone is read-only")

// UpdateOp is the kind of a single dynamic update action, derived from the
// class of the record in an update message's update section.
type UpdateOp int

const (
	// OpAdd adds a record (class IN in the message).
	OpAdd UpdateOp = iota
	// OpDeleteRRSet deletes an entire RRset, or all RRsets at a name when
	// the record type is ANY (class ANY in the message).
	OpDeleteRRSet
	// OpDeleteRecord deletes the single record whose RDATA matches exactly
	// (class NONE in the message).
	OpDeleteRecord
)

// UpdateAction is one entry of an update message's update section after
// validation.
type UpdateAction struct {
	Op     UpdateOp
	Record ResourceRecord
}

// ZoneUpdate is a validated batch of actions against a single zone. Apply
// is all-or-nothing at the caller's discretion: it is run against a Clone
// that is only published on success.
type ZoneUpdate struct {
	Zone Name
	// Prerequisites are re-evaluated by Apply against the state being
	// mutated. Updates race each other between request validation and
	// application, so the check at validation time is only a fast fail.
	Prerequisites []ResourceRecord
	Actions       []UpdateAction
}

// PrerequisiteError reports a prerequisite that no longer holds at
// application time, carrying the response code RFC2136 3.2 assigns it.
type PrerequisiteError struct {
	Code RCode
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite not satisfied: %s", e.Code)
}

// Apply runs the actions against the zone tree rooted at root, which must
// be a private clone. It reports whether any data actually changed, so the
// caller can decide whether a serial bump and persistence are warranted.
// Prerequisites that fail against root surface as a *PrerequisiteError
// before anything is touched.
func (u ZoneUpdate) Apply(root *Zone) (bool, error) {
	zone := root.FindZone(u.Zone)
	if zone == nil {
		return false, fmt.Errorf("no zone with apex %s", u.Zone)
	}
	if rcode := CheckPrerequisites(zone, u.Prerequisites); rcode != RCodeNoError {
		return false, &PrerequisiteError{Code: rcode}
	}
	changed := false
	for _, action := range u.Actions {
		switch action.Op {
		case OpAdd:
			changed = zone.applyAdd(action.Record) || changed
		case OpDeleteRRSet:
			changed = zone.applyDeleteRRSet(action.Record.Name, action.Record.Type) || changed
		case OpDeleteRecord:
			changed = zone.applyDeleteRecord(action.Record) || changed
		default:
			return changed, fmt.Errorf("unknown update op %d", action.Op)
		}
	}
	return changed, nil
}

// CheckPrerequisites evaluates an update's prerequisite section (RFC2136
// 3.2) against the zone. It never mutates the zone.
func CheckPrerequisites(zone *Zone, prereqs []ResourceRecord) RCode {
	// Value-dependent prerequisites are grouped per RRset and compared as
	// whole sets.
	type rrsetKey struct {
		name string
		t    RRType
	}
	valueSets := map[rrsetKey][]ResourceRecord{}

	for _, rr := range prereqs {
		if rr.TTL != 0 {
			return RCodeFormErr
		}
		if !rr.Name.EndsWith(zone.Name) {
			return RCodeNotZone
		}
		switch rr.Class {
		case ClassANY:
			if len(rr.Data) != 0 {
				return RCodeFormErr
			}
			if rr.Type == TypeANY {
				if !zone.NameExists(rr.Name) {
					return RCodeNXDomain
				}
			} else if len(prereqRRSet(zone, rr.Name, rr.Type)) == 0 {
				return RCodeNXRRSet
			}
		case ClassNONE:
			if len(rr.Data) != 0 {
				return RCodeFormErr
			}
			if rr.Type == TypeANY {
				if zone.NameExists(rr.Name) {
					return RCodeYXDomain
				}
			} else if len(prereqRRSet(zone, rr.Name, rr.Type)) != 0 {
				return RCodeYXRRSet
			}
		case ClassIN:
			if rr.Type.IsMeta() {
				return RCodeFormErr
			}
			key := rrsetKey{name: rr.Name.Key(), t: rr.Type}
			valueSets[key] = append(valueSets[key], rr)
		default:
			return RCodeFormErr
		}
	}

	for key, want := range valueSets {
		if !sameRRSetData(want, prereqRRSet(zone, Name(key.name), key.t)) {
			return RCodeNXRRSet
		}
	}
	return RCodeNoError
}

// prereqRRSet collects the RRset at a literal owner name, synthesizing the
// apex SOA and NS held in typed zone fields so prerequisites can reference
// them.
func prereqRRSet(zone *Zone, name Name, t RRType) []ResourceRecord {
	var out []ResourceRecord
	if name.Equal(zone.Name) {
		if (t == TypeSOA || t == TypeANY) && zone.SOA != nil {
			out = append(out, zone.SOA.Record(zone.Name, SOARecordTTL))
		}
		if t == TypeNS || t == TypeANY {
			for _, ns := range zone.Nameservers {
				out = append(out, ResourceRecord{
					Name: zone.Name, Type: TypeNS, Class: ClassIN,
					TTL: NSRecordTTL, Data: ns.Wire(),
				})
			}
		}
	}
	return append(out, zone.RRSet(name, t)...)
}

// sameRRSetData compares two RRsets as unordered sets of RDATA, ignoring
// TTLs.
func sameRRSetData(want, have []ResourceRecord) bool {
	if len(want) != len(have) {
		return false
	}
	matched := make([]bool, len(have))
outer:
	for _, w := range want {
		for i, h := range have {
			if !matched[i] && w.DataEqual(h) {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// SetsSOA reports whether the update explicitly replaces the zone's SOA,
// in which case the server must not bump the serial on top of it.
func (u ZoneUpdate) SetsSOA() bool {
	for _, action := range u.Actions {
		if action.Op == OpAdd && action.Record.Type == TypeSOA && action.Record.Name.Equal(u.Zone) {
			return true
		}
	}
	return false
}

// BumpSerial advances the zone serial per RFC1982, skipping zero. It is a
// no-op for zones without a SOA of their own.
func (z *Zone) BumpSerial() bool {
	if z.SOA == nil {
		return false
	}
	z.SOA.Serial = NextSerial(z.SOA.Serial)
	return true
}

func (z *Zone) applyAdd(rr ResourceRecord) bool {
	atApex := rr.Name.Equal(z.Name)
	switch {
	case rr.Type == TypeSOA && !atApex:
		// SOA data exists only at a zone apex.
		return false
	case rr.Type == TypeSOA && atApex:
		soa, err := ParseSOAData(rr.Data)
		if err != nil {
			return false
		}
		if z.SOA != nil && !SerialLater(soa.Serial, z.SOA.Serial) {
			return false
		}
		z.SOA = &soa
		return true
	case rr.Type == TypeNS && atApex:
		ns, _, err := readWireName(rr.Data)
		if err != nil {
			return false
		}
		for _, existing := range z.Nameservers {
			if existing.Equal(ns) {
				return false
			}
		}
		z.Nameservers = append(z.Nameservers, ns)
		return true
	}

	hasCNAME := false
	hasOther := false
	for _, existing := range z.Records {
		if !existing.Name.Equal(rr.Name) {
			continue
		}
		if existing.Type == TypeCNAME {
			hasCNAME = true
		} else {
			hasOther = true
		}
	}
	// CNAME exclusivity: adds that would mix CNAME with other data are
	// silently ignored per RFC2136 3.4.2.2.
	if rr.Type == TypeCNAME && hasOther {
		return false
	}
	if rr.Type != TypeCNAME && hasCNAME {
		return false
	}

	for i, existing := range z.Records {
		if !existing.Name.Equal(rr.Name) || existing.Type != rr.Type {
			continue
		}
		// Singleton types replace; identical RDATA refreshes the TTL.
		// New RDATA joins the set carrying its own TTL, so a set can hold
		// mixed TTLs after an add; RFC2136 3.4.2.2 leaves existing records
		// alone.
		if rr.Type == TypeCNAME || existing.DataEqual(rr) {
			if existing.TTL == rr.TTL && existing.DataEqual(rr) {
				return false
			}
			z.Records[i] = rr
			return true
		}
	}
	z.Records = append(z.Records, rr)
	return true
}

func (z *Zone) applyDeleteRRSet(name Name, t RRType) bool {
	atApex := name.Equal(z.Name)
	changed := false
	if atApex {
		// The apex SOA is never deletable and the apex NS set may not be
		// removed wholesale.
		if t == TypeSOA || t == TypeNS {
			return false
		}
	}
	kept := z.Records[:0]
	for _, rr := range z.Records {
		if rr.Name.Equal(name) && (t == TypeANY || rr.Type == t) {
			changed = true
			continue
		}
		kept = append(kept, rr)
	}
	z.Records = kept
	return changed
}

func (z *Zone) applyDeleteRecord(rr ResourceRecord) bool {
	if rr.Name.Equal(z.Name) {
		if rr.Type == TypeSOA {
			return false
		}
		if rr.Type == TypeNS {
			ns, _, err := readWireName(rr.Data)
			if err != nil || len(z.Nameservers) <= 1 {
				return false
			}
			for i, existing := range z.Nameservers {
				if existing.Equal(ns) {
					z.Nameservers = append(z.Nameservers[:i], z.Nameservers[i+1:]...)
					return true
				}
			}
			return false
		}
	}
	for i, existing := range z.Records {
		if existing.Name.Equal(rr.Name) && existing.DataEqual(rr) {
			z.Records = append(z.Records[:i], z.Records[i+1:]...)
			return true
		}
	}
	return false
}
