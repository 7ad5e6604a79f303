package zonestore

import (
	"context"
	"fmt"

	"github.com/Protryon/adns/internal/dns/domain"
)

// Merge overlays the zones of one provider onto another: where both sides
// define a zone apex, the top side's SOA, nameservers, keys, and RRsets
// (per owner and type) win. Dynamic updates are routed to the side named
// writable at construction and applied to that side's own zone data, never
// to the composed view, so the other side's records are not copied across.
type Merge struct {
	name        string
	top, bottom Provider
	updateTop   bool
}

// NewMerge builds an overlay of top onto bottom. updateTop selects which
// side receives Persist calls.
func NewMerge(name string, top, bottom Provider, updateTop bool) *Merge {
	return &Merge{name: name, top: top, bottom: bottom, updateTop: updateTop}
}

var _ Provider = (*Merge)(nil)
var _ UpdateRouter = (*Merge)(nil)

func (m *Merge) Name() string { return m.name }

func (m *Merge) Load(ctx context.Context) ([]*domain.Zone, error) {
	bottom, err := m.bottom.Load(ctx)
	if err != nil {
		return nil, err
	}
	top, err := m.top.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := bottom
	for _, zone := range top {
		merged := false
		for _, existing := range out {
			if existing.Name.Equal(zone.Name) {
				overlayZone(existing, zone)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, zone)
		}
	}
	return out, nil
}

// Persist is never the update path for a merge: accepting the composed
// zone set would bake the other side's records into one store.
func (m *Merge) Persist(context.Context, []*domain.Zone) error {
	return fmt.Errorf("merge provider %s: updates are routed, not persisted wholesale", m.name)
}

// RouteUpdate applies the update to the writable side's own zones and
// persists only that side. The zone apex must exist on that side; the
// caller checks prerequisites against the composed view beforehand.
func (m *Merge) RouteUpdate(ctx context.Context, u domain.ZoneUpdate, alwaysBump bool) (bool, error) {
	side := m.bottom
	if m.updateTop {
		side = m.top
	}
	zones, err := side.Load(ctx)
	if err != nil {
		return false, err
	}
	scratch := &domain.Zone{Zones: zones}
	changed, err := u.Apply(scratch)
	if err != nil {
		return false, err
	}
	if !changed && !alwaysBump {
		return false, nil
	}
	if !u.SetsSOA() {
		if zone := scratch.FindZone(u.Zone); zone != nil {
			zone.BumpSerial()
		}
	}
	if err := side.Persist(ctx, zones); err != nil {
		return false, err
	}
	return true, nil
}

// Watch forwards change signals from either side under this provider's
// name, so the hub reloads the whole overlay.
func (m *Merge) Watch(ctx context.Context, changed chan<- string) error {
	inner := make(chan string, 2)
	go m.watchSide(ctx, m.top, inner)
	go m.watchSide(ctx, m.bottom, inner)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-inner:
			select {
			case changed <- m.name:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (m *Merge) watchSide(ctx context.Context, side Provider, inner chan<- string) {
	_ = side.Watch(ctx, inner)
}

// overlayZone applies top's definitions over dst in place. RRsets replace
// whole owner+type groups; scalar zone fields replace only when top sets
// them; subzones merge recursively by apex.
func overlayZone(dst, top *domain.Zone) {
	if top.SOA != nil {
		dst.SOA = top.SOA
	}
	if len(top.Nameservers) > 0 {
		dst.Nameservers = top.Nameservers
	}
	if top.Authoritative {
		dst.Authoritative = true
	}
	if top.AllowMD5TSIG {
		dst.AllowMD5TSIG = true
	}
	for name, key := range top.TSIGKeys {
		if dst.TSIGKeys == nil {
			dst.TSIGKeys = map[string]domain.TSIGKey{}
		}
		dst.TSIGKeys[name] = key
	}

	type rrsetKey struct {
		name string
		t    domain.RRType
	}
	replaced := map[rrsetKey]bool{}
	for _, rr := range top.Records {
		replaced[rrsetKey{rr.Name.Key(), rr.Type}] = true
	}
	kept := dst.Records[:0]
	for _, rr := range dst.Records {
		if !replaced[rrsetKey{rr.Name.Key(), rr.Type}] {
			kept = append(kept, rr)
		}
	}
	dst.Records = append(kept, top.Records...)

	for _, sub := range top.Zones {
		merged := false
		for _, existing := range dst.Zones {
			if existing.Name.Equal(sub.Name) {
				overlayZone(existing, sub)
				merged = true
				break
			}
		}
		if !merged {
			dst.Zones = append(dst.Zones, sub)
		}
	}
}
