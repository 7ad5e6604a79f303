package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aRecord(name Name, ttl uint32, addr ...byte) ResourceRecord {
	return ResourceRecord{Name: name, Type: TypeA, Class: ClassIN, TTL: ttl, Data: addr}
}

func testTree() *Zone {
	return &Zone{
		Name:          "",
		Authoritative: false,
		Zones: []*Zone{
			{
				Name:          "example.com",
				Authoritative: true,
				SOA:           &SOA{MName: "ns1.example.com", RName: "admin.example.com", Serial: 100, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300},
				Nameservers:   []Name{"ns1.example.com", "ns2.example.com"},
				TSIGKeys:      map[string]TSIGKey{"update-key.example.com": {Secret: []byte("sekrit")}},
				Records: []ResourceRecord{
					aRecord("www.example.com", 300, 192, 0, 2, 10),
					aRecord("*.dyn.example.com", 60, 192, 0, 2, 20),
				},
				Zones: []*Zone{
					{
						Name:          "sub.example.com",
						Authoritative: true,
						Records: []ResourceRecord{
							aRecord("host.sub.example.com", 120, 192, 0, 2, 30),
						},
					},
				},
			},
		},
	}
}

func TestZoneLocate(t *testing.T) {
	root := testTree()

	zone, ancestors := root.Locate("host.sub.example.com")
	require.NotNil(t, zone)
	assert.Equal(t, Name("sub.example.com"), zone.Name)
	require.Len(t, ancestors, 2)
	assert.Equal(t, Name("example.com"), ancestors[0].Name)
	assert.Equal(t, Name(""), ancestors[1].Name)

	zone, ancestors = root.Locate("unrelated.org")
	require.NotNil(t, zone)
	assert.Equal(t, Name(""), zone.Name)
	assert.Empty(t, ancestors)
}

func TestZoneEffectiveSOAInherited(t *testing.T) {
	root := testTree()

	soa, apex, ok := root.EffectiveSOA("host.sub.example.com")
	require.True(t, ok)
	assert.Equal(t, Name("example.com"), apex)
	assert.Equal(t, uint32(100), soa.Serial)

	_, _, ok = root.EffectiveSOA("unrelated.org")
	assert.False(t, ok)

	ns, apex, ok := root.EffectiveNS("host.sub.example.com")
	require.True(t, ok)
	assert.Equal(t, Name("example.com"), apex)
	assert.Len(t, ns, 2)
}

func TestZoneLookupWildcard(t *testing.T) {
	root := testTree()
	zone, _ := root.Locate("www.example.com")

	records, exists := zone.Lookup("www.example.com")
	require.True(t, exists)
	require.Len(t, records, 1)
	assert.Equal(t, Name("www.example.com"), records[0].Name)

	records, exists = zone.Lookup("anything.dyn.example.com")
	require.True(t, exists)
	require.Len(t, records, 1)
	assert.Equal(t, Name("anything.dyn.example.com"), records[0].Name, "wildcard owner is rewritten to the qname")

	_, exists = zone.Lookup("missing.example.com")
	assert.False(t, exists)
}

func TestZoneFindKey(t *testing.T) {
	root := testTree()

	key, owner, ok := root.FindKey("host.sub.example.com", "update-key.example.com")
	require.True(t, ok, "keys are inherited from enclosing zones")
	assert.Equal(t, Name("example.com"), owner.Name)
	assert.Equal(t, []byte("sekrit"), key.Secret)

	_, _, ok = root.FindKey("www.example.com", "other-key.example.com")
	assert.False(t, ok)
}

func TestZoneCloneIsolation(t *testing.T) {
	root := testTree()
	clone := root.Clone()

	zone := clone.FindZone("example.com")
	require.NotNil(t, zone)
	zone.Records = append(zone.Records, aRecord("new.example.com", 60, 192, 0, 2, 99))
	zone.SOA.Serial = 999

	orig := root.FindZone("example.com")
	assert.Len(t, orig.Records, 2)
	assert.Equal(t, uint32(100), orig.SOA.Serial)
}

func TestZoneValidate(t *testing.T) {
	root := testTree()
	assert.NoError(t, root.Validate())

	t.Run("authoritative without SOA", func(t *testing.T) {
		bad := testTree()
		bad.FindZone("example.com").SOA = nil
		assert.Error(t, bad.Validate())
	})

	t.Run("CNAME alongside other data", func(t *testing.T) {
		bad := testTree()
		zone := bad.FindZone("example.com")
		zone.Records = append(zone.Records, ResourceRecord{
			Name: "www.example.com", Type: TypeCNAME, Class: ClassIN, TTL: 60,
			Data: Name("target.example.com").Wire(),
		})
		assert.Error(t, bad.Validate())
	})

	t.Run("record inside subzone scope", func(t *testing.T) {
		bad := testTree()
		zone := bad.FindZone("example.com")
		zone.Records = append(zone.Records, aRecord("stray.sub.example.com", 60, 192, 0, 2, 40))
		assert.Error(t, bad.Validate())
	})
}
