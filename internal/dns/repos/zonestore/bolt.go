package zonestore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Protryon/adns/internal/dns/domain"
)

var zonesBucket = []byte("zones")

// Bolt persists zones in a bbolt database, one document per zone apex.
// It is the durable backend for dynamically updated zones.
type Bolt struct {
	name string
	db   *bolt.DB
}

// OpenBolt opens (creating if needed) a bolt-backed zone store. When the
// store is empty, seed zones are written in; an already populated store
// ignores the seed so updates survive restarts.
func OpenBolt(name, path string, seed []*domain.Zone) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt zone store %s: %w", path, err)
	}
	b := &Bolt{name: name, db: db}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(zonesBucket)
		if err != nil {
			return err
		}
		if bucket.Stats().KeyN > 0 || len(seed) == 0 {
			return nil
		}
		for _, zone := range seed {
			if err := putZone(bucket, zone); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

var _ Provider = (*Bolt)(nil)

func (b *Bolt) Name() string { return b.name }

// Close releases the underlying database file.
func (b *Bolt) Close() error { return b.db.Close() }

func putZone(bucket *bolt.Bucket, zone *domain.Zone) error {
	data, err := RenderZones([]*domain.Zone{zone})
	if err != nil {
		return err
	}
	return bucket.Put([]byte(zone.Name.Key()), data)
}

func (b *Bolt) Load(context.Context) ([]*domain.Zone, error) {
	var zones []*domain.Zone
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(zonesBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			parsed, err := ParseZones(v)
			if err != nil {
				return fmt.Errorf("stored zone %s: %w", k, err)
			}
			zones = append(zones, parsed...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return zones, nil
}

func (b *Bolt) Persist(_ context.Context, zones []*domain.Zone) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(zonesBucket)
		if err != nil {
			return err
		}
		keep := map[string]bool{}
		for _, zone := range zones {
			keep[zone.Name.Key()] = true
			if err := putZone(bucket, zone); err != nil {
				return err
			}
		}
		var stale [][]byte
		if err := bucket.ForEach(func(k, _ []byte) error {
			if !keep[string(k)] {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Watch(context.Context, chan<- string) error {
	return nil
}
