package zonestore

import (
	"context"

	"github.com/Protryon/adns/internal/dns/domain"
)

// Static serves zones embedded in the server configuration. It never
// changes at runtime and rejects dynamic updates.
type Static struct {
	name  string
	zones []*domain.Zone
}

// NewStatic builds a static provider from already parsed zones.
func NewStatic(name string, zones []*domain.Zone) *Static {
	return &Static{name: name, zones: zones}
}

var _ Provider = (*Static)(nil)

func (s *Static) Name() string { return s.name }

func (s *Static) Load(context.Context) ([]*domain.Zone, error) {
	out := make([]*domain.Zone, len(s.zones))
	for i, zone := range s.zones {
		out[i] = zone.Clone()
	}
	return out, nil
}

func (s *Static) Persist(context.Context, []*domain.Zone) error {
	return domain.ErrReadOnlyZone
}

func (s *Static) Watch(context.Context, chan<- string) error {
	return nil
}
