package zonestore

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
	"github.com/Protryon/adns/internal/dns/repos/nameindex"
)

// Snapshot is an immutable published view of the whole zone tree with its
// owner-name index.
type Snapshot struct {
	Root  *domain.Zone
	Index *nameindex.Index
}

type updateRequest struct {
	update domain.ZoneUpdate
	done   chan error
}

// Hub merges provider zones into one tree, publishes snapshots, and is the
// single writer for dynamic updates: every mutation happens on its
// goroutine, against a clone, and becomes visible only by snapshot swap.
type Hub struct {
	// AlwaysBumpSerial bumps the zone serial even for updates that change
	// nothing, so downstream secondaries see every accepted update. Set
	// before Start.
	AlwaysBumpSerial bool

	providers []Provider
	zones     map[string][]*domain.Zone
	current   atomic.Pointer[Snapshot]
	requests  chan updateRequest
	changed   chan string
	log       log.Logger
}

// NewHub builds a hub over the given providers.
func NewHub(providers []Provider, logger log.Logger) *Hub {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Hub{
		providers: providers,
		zones:     map[string][]*domain.Zone{},
		requests:  make(chan updateRequest),
		changed:   make(chan string, 8),
		log:       logger,
	}
}

// Start loads every provider, publishes the first snapshot, and launches
// the writer loop and file watchers. It fails fast when the initial zone
// data is unusable.
func (h *Hub) Start(ctx context.Context) error {
	for _, p := range h.providers {
		zones, err := p.Load(ctx)
		if err != nil {
			return fmt.Errorf("provider %s: %w", p.Name(), err)
		}
		h.zones[p.Name()] = zones
	}
	if err := h.publish(); err != nil {
		return err
	}
	for _, p := range h.providers {
		go func(p Provider) {
			if err := p.Watch(ctx, h.changed); err != nil && ctx.Err() == nil {
				h.log.Error(map[string]any{"provider": p.Name(), "error": err.Error()}, "zone watcher stopped")
			}
		}(p)
	}
	go h.run(ctx)
	return nil
}

// Snapshot returns the currently published view. It never blocks.
func (h *Hub) Snapshot() *Snapshot {
	return h.current.Load()
}

// ApplyUpdate routes a compiled update onto the writer goroutine and waits
// for durability.
func (h *Hub) ApplyUpdate(ctx context.Context, u domain.ZoneUpdate) error {
	req := updateRequest{update: u, done: make(chan error, 1)}
	select {
	case h.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			req.done <- h.handleUpdate(ctx, req.update)
		case name := <-h.changed:
			h.reload(ctx, name)
		}
	}
}

// handleUpdate applies one dynamic update: clone the owning provider's
// zones, apply, bump the serial unless the update replaced the SOA itself,
// persist, and only then publish. A failure at any stage leaves the
// published snapshot untouched.
func (h *Hub) handleUpdate(ctx context.Context, u domain.ZoneUpdate) error {
	provider, zones := h.owner(u.Zone)
	if provider == nil {
		return fmt.Errorf("no provider owns zone %s", u.Zone)
	}
	if router, ok := provider.(UpdateRouter); ok {
		return h.routeUpdate(ctx, provider, router, u)
	}
	clones := make([]*domain.Zone, len(zones))
	for i, zone := range zones {
		clones[i] = zone.Clone()
	}
	scratch := &domain.Zone{Zones: clones}
	changed, err := u.Apply(scratch)
	if err != nil {
		return err
	}
	if !changed && !h.AlwaysBumpSerial {
		return nil
	}
	if !u.SetsSOA() {
		if zone := scratch.FindZone(u.Zone); zone != nil {
			zone.BumpSerial()
		}
	}
	if err := provider.Persist(ctx, clones); err != nil {
		return err
	}
	old := h.zones[provider.Name()]
	h.zones[provider.Name()] = clones
	if err := h.publish(); err != nil {
		// The persisted state no longer builds a valid tree; keep serving
		// the old snapshot and surface the fault.
		h.zones[provider.Name()] = old
		return err
	}
	return nil
}

// routeUpdate hands the update to a composite provider, which writes it to
// one of its backing stores, then re-Loads the composed view and publishes
// it. Prerequisites are checked here against the composed view, since the
// receiving store alone cannot see records contributed by the other side.
func (h *Hub) routeUpdate(ctx context.Context, provider Provider, router UpdateRouter, u domain.ZoneUpdate) error {
	view := &domain.Zone{Zones: h.zones[provider.Name()]}
	if zone := view.FindZone(u.Zone); zone != nil {
		if rcode := domain.CheckPrerequisites(zone, u.Prerequisites); rcode != domain.RCodeNoError {
			return &domain.PrerequisiteError{Code: rcode}
		}
	}
	u.Prerequisites = nil
	changed, err := router.RouteUpdate(ctx, u, h.AlwaysBumpSerial)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	zones, err := provider.Load(ctx)
	if err != nil {
		return err
	}
	old := h.zones[provider.Name()]
	h.zones[provider.Name()] = zones
	if err := h.publish(); err != nil {
		h.zones[provider.Name()] = old
		return err
	}
	return nil
}

// reload re-reads one provider after its backing store changed externally.
// Failures keep the previous data in service.
func (h *Hub) reload(ctx context.Context, name string) {
	for _, p := range h.providers {
		if p.Name() != name {
			continue
		}
		zones, err := p.Load(ctx)
		if err != nil {
			h.log.Error(map[string]any{"provider": name, "error": err.Error()}, "zone reload failed")
			return
		}
		old := h.zones[name]
		h.zones[name] = zones
		if err := h.publish(); err != nil {
			h.zones[name] = old
			h.log.Error(map[string]any{"provider": name, "error": err.Error()}, "reloaded zones rejected")
			return
		}
		h.log.Info(map[string]any{"provider": name, "zones": len(zones)}, "zones reloaded")
		return
	}
}

// owner finds the provider whose zone set contains the apex.
func (h *Hub) owner(apex domain.Name) (Provider, []*domain.Zone) {
	for _, p := range h.providers {
		zones := h.zones[p.Name()]
		scratch := &domain.Zone{Zones: zones}
		if scratch.FindZone(apex) != nil {
			return p, zones
		}
	}
	return nil, nil
}

// publish assembles the provider zones into one validated tree and swaps it
// in with a fresh owner index.
func (h *Hub) publish() error {
	root := &domain.Zone{}
	var all []*domain.Zone
	// Clones, not the provider-owned structs: nesting appends children into
	// the tree, and that must never write through to provider state.
	for _, p := range h.providers {
		for _, z := range h.zones[p.Name()] {
			all = append(all, z.Clone())
		}
	}
	// Parents before children, so deeper apexes nest under enclosing zones
	// and inherit their SOA and NS.
	sort.Slice(all, func(i, j int) bool {
		return len(all[i].Name.Labels()) < len(all[j].Name.Labels())
	})
	for _, zone := range all {
		parent, _ := root.Locate(zone.Name)
		if parent.Name.Equal(zone.Name) && !zone.Name.IsRoot() {
			return fmt.Errorf("zone %s provided twice", zone.Name)
		}
		parent.Zones = append(parent.Zones, zone)
	}
	if err := root.Validate(); err != nil {
		return err
	}
	h.current.Store(&Snapshot{Root: root, Index: nameindex.Build(root)})
	return nil
}
