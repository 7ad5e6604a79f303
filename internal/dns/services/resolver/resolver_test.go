package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protryon/adns/internal/dns/common/rrdata"
	"github.com/Protryon/adns/internal/dns/domain"
)

func rec(t *testing.T, name domain.Name, rrType domain.RRType, ttl uint32, text string) domain.ResourceRecord {
	t.Helper()
	rr, err := rrdata.NewRecord(name, rrType, ttl, text)
	require.NoError(t, err)
	return rr
}

func snapshot(t *testing.T) *domain.Zone {
	t.Helper()
	z := &domain.Zone{
		Name:          "example.com",
		Authoritative: true,
		SOA:           &domain.SOA{MName: "ns1.example.com", RName: "admin.example.com", Serial: 7, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300},
		Nameservers:   []domain.Name{"ns1.example.com"},
		Records: []domain.ResourceRecord{
			rec(t, "www.example.com", domain.TypeA, 300, "192.0.2.10"),
			rec(t, "www.example.com", domain.TypeAAAA, 300, "2001:db8::10"),
			rec(t, "ns1.example.com", domain.TypeA, 300, "192.0.2.53"),
			rec(t, "alias.example.com", domain.TypeCNAME, 300, "www.example.com"),
			rec(t, "hop.example.com", domain.TypeCNAME, 300, "alias.example.com"),
			rec(t, "example.com", domain.TypeMX, 300, "10 mail.example.com"),
			rec(t, "mail.example.com", domain.TypeA, 300, "192.0.2.25"),
			rec(t, "*.dyn.example.com", domain.TypeA, 60, "192.0.2.99"),
		},
		Zones: []*domain.Zone{
			{
				Name:          "delegated.example.com",
				Authoritative: false,
				Nameservers:   []domain.Name{"ns1.elsewhere.net"},
			},
		},
	}
	return &domain.Zone{Zones: []*domain.Zone{z}}
}

func query(name domain.Name, qtype domain.RRType) *domain.Message {
	msg := &domain.Message{
		Header:    domain.Header{ID: 99, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: name, Type: qtype, Class: domain.ClassIN}},
	}
	msg.SyncCounts()
	return msg
}

func TestResolvePositive(t *testing.T) {
	r := New("test-version", nil)
	resp := r.Resolve(snapshot(t), nil, query("www.example.com", domain.TypeA))

	assert.True(t, resp.Header.Authoritative)
	assert.Equal(t, domain.RCodeNoError, resp.Header.RCode)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, domain.TypeA, resp.Answers[0].Type)
}

func TestResolveWildcard(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), nil, query("anything.dyn.example.com", domain.TypeA))

	require.Len(t, resp.Answers, 1)
	assert.Equal(t, domain.Name("anything.dyn.example.com"), resp.Answers[0].Name)
}

func TestResolveNXDomain(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), nil, query("missing.example.com", domain.TypeA))

	assert.Equal(t, domain.RCodeNXDomain, resp.Header.RCode)
	require.Len(t, resp.Authority, 1)
	assert.Equal(t, domain.TypeSOA, resp.Authority[0].Type)
	assert.Equal(t, uint32(domain.SOARecordTTL), resp.Authority[0].TTL)
}

func TestResolveNoData(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), nil, query("www.example.com", domain.TypeTXT))

	assert.Equal(t, domain.RCodeNoError, resp.Header.RCode, "owner exists, so no name error")
	assert.Empty(t, resp.Answers)
	require.Len(t, resp.Authority, 1)
	assert.Equal(t, domain.TypeSOA, resp.Authority[0].Type)
}

func TestResolveCNAMEChain(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), nil, query("hop.example.com", domain.TypeA))

	require.Len(t, resp.Answers, 3, "both CNAME hops plus the terminal A record")
	assert.Equal(t, domain.TypeCNAME, resp.Answers[0].Type)
	assert.Equal(t, domain.TypeCNAME, resp.Answers[1].Type)
	assert.Equal(t, domain.TypeA, resp.Answers[2].Type)
}

func TestResolveCNAMELoopBounded(t *testing.T) {
	z := &domain.Zone{
		Name:          "loop.test",
		Authoritative: true,
		SOA:           &domain.SOA{MName: "ns.loop.test", RName: "x.loop.test", Serial: 1},
		Nameservers:   []domain.Name{"ns.loop.test"},
		Records: []domain.ResourceRecord{
			rec(t, "a.loop.test", domain.TypeCNAME, 60, "b.loop.test"),
			rec(t, "b.loop.test", domain.TypeCNAME, 60, "a.loop.test"),
		},
	}
	root := &domain.Zone{Zones: []*domain.Zone{z}}

	r := New("", nil)
	resp := r.Resolve(root, nil, query("a.loop.test", domain.TypeA))
	assert.Equal(t, domain.RCodeServFail, resp.Header.RCode)
	assert.Empty(t, resp.Answers, "a looping chain yields no partial answers")
}

func TestResolveApexSOAAndNS(t *testing.T) {
	r := New("", nil)

	resp := r.Resolve(snapshot(t), nil, query("example.com", domain.TypeSOA))
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, domain.TypeSOA, resp.Answers[0].Type)

	resp = r.Resolve(snapshot(t), nil, query("example.com", domain.TypeNS))
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, domain.TypeNS, resp.Answers[0].Type)
	require.Len(t, resp.Additional, 1, "nameserver glue")
	assert.Equal(t, domain.Name("ns1.example.com"), resp.Additional[0].Name)
}

func TestResolveReferral(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), nil, query("host.delegated.example.com", domain.TypeA))

	assert.False(t, resp.Header.Authoritative)
	assert.Equal(t, domain.RCodeNoError, resp.Header.RCode)
	assert.Empty(t, resp.Answers)
	require.Len(t, resp.Authority, 1)
	assert.Equal(t, domain.TypeNS, resp.Authority[0].Type)
	assert.Equal(t, domain.Name("delegated.example.com"), resp.Authority[0].Name)
}

func TestResolveMXGlue(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), nil, query("example.com", domain.TypeMX))

	require.Len(t, resp.Answers, 1)
	require.Len(t, resp.Additional, 1)
	assert.Equal(t, domain.Name("mail.example.com"), resp.Additional[0].Name)
}

func TestResolveVersionBind(t *testing.T) {
	r := New("adns 1.0", nil)
	msg := query("version.bind", domain.TypeTXT)
	msg.Questions[0].Class = domain.ClassCH

	resp := r.Resolve(snapshot(t), nil, msg)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "adns 1.0", resp.Answers[0].Text)

	// Disabled when no version string is configured.
	r = New("", nil)
	resp = r.Resolve(snapshot(t), nil, msg)
	assert.Equal(t, domain.RCodeRefused, resp.Header.RCode)
}

func TestResolveOutsideAnyZone(t *testing.T) {
	z := &domain.Zone{Name: "example.com", Authoritative: true,
		SOA: &domain.SOA{MName: "ns1.example.com", RName: "a.example.com", Serial: 1}, Nameservers: []domain.Name{"ns1.example.com"}}
	root := &domain.Zone{Zones: []*domain.Zone{z}}
	// A root without records of its own is still located for any name, so
	// names outside example.com get a non-authoritative empty answer.
	r := New("", nil)
	resp := r.Resolve(root, nil, query("outside.org", domain.TypeA))
	assert.False(t, resp.Header.Authoritative)
}

type denyFilter struct{}

func (denyFilter) MightExist(domain.Name) bool { return false }

func TestResolveOwnerFilterShortCircuit(t *testing.T) {
	r := New("", nil)
	resp := r.Resolve(snapshot(t), denyFilter{}, query("www.example.com", domain.TypeA))

	assert.Equal(t, domain.RCodeNXDomain, resp.Header.RCode)
	assert.Empty(t, resp.Answers)
	require.Len(t, resp.Authority, 1, "name errors still carry the SOA")
}
