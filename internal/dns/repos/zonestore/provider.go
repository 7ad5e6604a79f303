package zonestore

import (
	"context"

	"github.com/Protryon/adns/internal/dns/domain"
)

// Provider supplies zones from one backing store. The hub is the only
// caller and serializes Load and Persist; Watch runs in its own goroutine
// and only signals.
type Provider interface {
	// Name identifies the provider in logs and routing.
	Name() string
	// Load reads the provider's zones from its backing store.
	Load(ctx context.Context) ([]*domain.Zone, error)
	// Persist durably stores the zones after a dynamic update. Read-only
	// providers return domain.ErrReadOnlyZone.
	Persist(ctx context.Context, zones []*domain.Zone) error
	// Watch blocks until ctx is done, sending the provider's name whenever
	// the backing store changed externally. Providers without external
	// change sources return immediately.
	Watch(ctx context.Context, changed chan<- string) error
}

// UpdateRouter is implemented by composite providers that apply a dynamic
// update to one of their backing stores themselves instead of accepting a
// Persist of the composed zone set. RouteUpdate reports whether anything
// was written, so the hub knows to re-Load and republish.
type UpdateRouter interface {
	RouteUpdate(ctx context.Context, u domain.ZoneUpdate, alwaysBump bool) (bool, error)
}
