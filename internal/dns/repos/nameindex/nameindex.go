// Package nameindex provides a per-snapshot bloom filter over literal owner
// names, letting the resolver short-circuit definite name errors without
// scanning zone records.
package nameindex

import (
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Protryon/adns/internal/dns/domain"
)

// falsePositiveRate trades filter size against wasted full lookups; a miss
// on a false positive is only a slower path, never a wrong answer.
const falsePositiveRate = 0.01

// Index is an immutable owner-name filter built alongside a zone snapshot.
type Index struct {
	filter    *bloom.BloomFilter
	wildcards bool
}

// Build indexes every literal owner name in the snapshot. Zones containing
// wildcard owners disable the filter entirely, because a wildcard can own
// names the filter has never seen.
func Build(root *domain.Zone) *Index {
	owners := root.OwnerNames()
	n := uint(len(owners))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, falsePositiveRate)
	for _, owner := range owners {
		filter.AddString(owner)
	}
	return &Index{filter: filter, wildcards: root.HasWildcards()}
}

// MightExist reports whether name could be an owner in the snapshot. False
// means the name definitely has no literal owner.
func (i *Index) MightExist(name domain.Name) bool {
	if i == nil || i.wildcards {
		return true
	}
	return i.filter.TestString(name.Key())
}
