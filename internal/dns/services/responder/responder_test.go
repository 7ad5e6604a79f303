package responder

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protryon/adns/internal/dns/common/clock"
	"github.com/Protryon/adns/internal/dns/common/rrdata"
	"github.com/Protryon/adns/internal/dns/domain"
	"github.com/Protryon/adns/internal/dns/gateways/wire"
	"github.com/Protryon/adns/internal/dns/repos/nameindex"
	"github.com/Protryon/adns/internal/dns/repos/zonestore"
	"github.com/Protryon/adns/internal/dns/services/resolver"
	"github.com/Protryon/adns/internal/dns/services/transfer"
	"github.com/Protryon/adns/internal/dns/services/tsig"
	"github.com/Protryon/adns/internal/dns/services/update"
)

const testKeyName = domain.Name("update-key.example.com")

var testSecret = []byte("0123456789abcdef")

var testAddr = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 99), Port: 53535}

type fixedSnapshot struct {
	snap *zonestore.Snapshot
}

func (f *fixedSnapshot) Snapshot() *zonestore.Snapshot { return f.snap }

type captureApplier struct {
	applied []domain.ZoneUpdate
	fail    bool
}

func (c *captureApplier) ApplyUpdate(_ context.Context, u domain.ZoneUpdate) error {
	if c.fail {
		return errors.New("storage offline")
	}
	c.applied = append(c.applied, u)
	return nil
}

func rec(t *testing.T, name domain.Name, rrType domain.RRType, ttl uint32, text string) domain.ResourceRecord {
	t.Helper()
	rr, err := rrdata.NewRecord(name, rrType, ttl, text)
	require.NoError(t, err)
	return rr
}

func testSnapshot(t *testing.T) *zonestore.Snapshot {
	t.Helper()
	root := &domain.Zone{
		Zones: []*domain.Zone{
			{
				Name:          "example.com",
				Authoritative: true,
				SOA:           &domain.SOA{MName: "ns1.example.com", RName: "admin.example.com", Serial: 100, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300},
				Nameservers:   []domain.Name{"ns1.example.com"},
				TSIGKeys:      map[string]domain.TSIGKey{testKeyName.Key(): {Secret: testSecret}},
				Records: []domain.ResourceRecord{
					rec(t, "www.example.com", domain.TypeA, 300, "192.0.2.10"),
					rec(t, "ns1.example.com", domain.TypeA, 300, "192.0.2.1"),
				},
			},
			{
				Name:          "open.org",
				Authoritative: true,
				SOA:           &domain.SOA{MName: "ns1.open.org", RName: "admin.open.org", Serial: 7, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300},
				Nameservers:   []domain.Name{"ns1.open.org"},
				Records: []domain.ResourceRecord{
					rec(t, "ns1.open.org", domain.TypeA, 300, "192.0.2.2"),
					rec(t, "a.open.org", domain.TypeA, 300, "192.0.2.3"),
				},
			},
		},
	}
	require.NoError(t, root.Validate())
	return &zonestore.Snapshot{Root: root, Index: nameindex.Build(root)}
}

func testResponder(t *testing.T, applier update.Applier) (*Responder, *clock.MockClock) {
	t.Helper()
	clk := &clock.MockClock{CurrentTime: time.Unix(1_700_000_000, 0)}
	engine, err := tsig.NewEngine(clk)
	require.NoError(t, err)
	if applier == nil {
		applier = &captureApplier{}
	}
	r := New(
		&fixedSnapshot{snap: testSnapshot(t)},
		engine,
		resolver.New("", nil),
		update.NewProcessor(applier, nil),
		transfer.NewEngine(nil),
		nil,
	)
	return r, clk
}

func encodeRequest(t *testing.T, msg *domain.Message) []byte {
	t.Helper()
	msg.SyncCounts()
	data, err := wire.EncodeMessage(msg, 0)
	require.NoError(t, err)
	return data
}

func decodeResponse(t *testing.T, data []byte) *wire.Envelope {
	t.Helper()
	env, err := wire.DecodeMessage(data)
	require.NoError(t, err)
	require.True(t, env.Message.Header.Response)
	return env
}

// signWire plays the client side of a transaction signature.
func signWire(t *testing.T, clk clock.Clock, unsigned []byte, secret []byte) []byte {
	t.Helper()
	return signWireAt(t, uint64(clk.Now().Unix()), unsigned, secret)
}

func signWireAt(t *testing.T, when uint64, unsigned []byte, secret []byte) []byte {
	t.Helper()
	h, err := domain.UnpackHeader(unsigned)
	require.NoError(t, err)
	sig := domain.TSIG{
		Algorithm:  tsig.AlgHMACSHA256,
		TimeSigned: when,
		Fudge:      tsig.DefaultFudge,
		OriginalID: h.ID,
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(unsigned)
	mac.Write(sig.Variables(testKeyName, false))
	sig.MAC = mac.Sum(nil)
	return wire.AppendTSIG(unsigned, testKeyName, sig)
}

// verifyErrorMAC recomputes a signed error's MAC with the server's key.
func verifyErrorMAC(t *testing.T, env *wire.Envelope, secret []byte) {
	t.Helper()
	mac := hmac.New(sha256.New, secret)
	mac.Write(env.Prefix)
	mac.Write(env.TSIG.Variables(env.KeyName, false))
	assert.Equal(t, mac.Sum(nil), env.TSIG.MAC)
}

func updateRequest(t *testing.T, zone domain.Name, updates ...domain.ResourceRecord) []byte {
	t.Helper()
	msg := &domain.Message{
		Header:    domain.Header{ID: 0x2136, Opcode: domain.OpcodeUpdate},
		Questions: []domain.Question{{Name: zone, Type: domain.TypeSOA, Class: domain.ClassIN}},
		Authority: updates,
	}
	return encodeRequest(t, msg)
}

func TestHandleDatagramQuery(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x1111, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "www.example.com", Type: domain.TypeA, Class: domain.ClassIN}},
	})

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, uint16(0x1111), env.Message.Header.ID)
	assert.Equal(t, domain.RCodeNoError, env.Message.Header.RCode)
	assert.True(t, env.Message.Header.Authoritative)
	require.Len(t, env.Message.Answers, 1)
	assert.Equal(t, []byte{192, 0, 2, 10}, env.Message.Answers[0].Data)
}

func TestHandleDatagramGarbage(t *testing.T) {
	r, _ := testResponder(t, nil)

	// Too short for a header: dropped without a response.
	assert.Nil(t, r.HandleDatagram(context.Background(), []byte{0x12, 0x34}, testAddr))

	// Header claims a question that is not there: FORMERR echoing the ID.
	truncated := make([]byte, domain.HeaderLength)
	truncated[0], truncated[1] = 0xBE, 0xEF
	truncated[5] = 1 // QDCOUNT
	out := r.HandleDatagram(context.Background(), truncated, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, uint16(0xBEEF), env.Message.Header.ID)
	assert.Equal(t, domain.RCodeFormErr, env.Message.Header.RCode)
}

func TestHandleDatagramDropsResponses(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x1, Opcode: domain.OpcodeQuery, Response: true},
		Questions: []domain.Question{{Name: "www.example.com", Type: domain.TypeA, Class: domain.ClassIN}},
	})
	assert.Nil(t, r.HandleDatagram(context.Background(), req, testAddr))
}

func TestHandleDatagramUnknownOpcode(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header: domain.Header{ID: 0x2, Opcode: domain.OpcodeStatus},
	})
	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, domain.RCodeNotImp, env.Message.Header.RCode)
}

func TestUnsignedUpdateRefusedWhenZoneHasKeys(t *testing.T) {
	applier := &captureApplier{}
	r, _ := testResponder(t, applier)
	req := updateRequest(t, "example.com", rec(t, "new.example.com", domain.TypeA, 300, "192.0.2.50"))

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, domain.RCodeRefused, env.Message.Header.RCode)
	assert.Empty(t, applier.applied)
}

func TestUnsignedUpdateAllowedWhenZoneHasNoKeys(t *testing.T) {
	applier := &captureApplier{}
	r, _ := testResponder(t, applier)
	req := updateRequest(t, "open.org", rec(t, "b.open.org", domain.TypeA, 300, "192.0.2.60"))

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, domain.RCodeNoError, env.Message.Header.RCode)
	require.Len(t, applier.applied, 1)
	assert.Equal(t, domain.Name("open.org"), applier.applied[0].Zone)
}

func TestSignedUpdateAppliesAndSignsResponse(t *testing.T) {
	applier := &captureApplier{}
	r, clk := testResponder(t, applier)
	unsigned := updateRequest(t, "example.com", rec(t, "new.example.com", domain.TypeA, 300, "192.0.2.50"))
	req := signWire(t, clk, unsigned, testSecret)

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, domain.RCodeNoError, env.Message.Header.RCode)
	require.Len(t, applier.applied, 1)

	require.True(t, env.Signed(), "response to a signed request is signed")
	assert.Equal(t, testKeyName, env.KeyName)
	assert.Equal(t, domain.RCodeNoError, env.TSIG.Error)
	assert.NotEmpty(t, env.TSIG.MAC)
}

func TestSignedUpdateReplayRejected(t *testing.T) {
	applier := &captureApplier{}
	r, clk := testResponder(t, applier)
	unsigned := updateRequest(t, "example.com", rec(t, "new.example.com", domain.TypeA, 300, "192.0.2.50"))
	req := signWire(t, clk, unsigned, testSecret)

	first := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, first)
	assert.Equal(t, domain.RCodeNoError, decodeResponse(t, first).Message.Header.RCode)

	second := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, second)
	env := decodeResponse(t, second)
	assert.Equal(t, domain.RCodeNotAuth, env.Message.Header.RCode)
	require.True(t, env.Signed())
	assert.Equal(t, domain.RCodeBadSig, env.TSIG.Error)
	assert.NotEmpty(t, env.TSIG.MAC, "refusals for a held key are signed")
	verifyErrorMAC(t, env, testSecret)
	assert.Len(t, applier.applied, 1, "the replay never reaches the zone")
}

func TestSignedUpdateUnknownKey(t *testing.T) {
	applier := &captureApplier{}
	r, clk := testResponder(t, applier)
	unsigned := updateRequest(t, "open.org", rec(t, "b.open.org", domain.TypeA, 300, "192.0.2.60"))
	req := signWire(t, clk, unsigned, testSecret) // no key is configured for open.org

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, domain.RCodeNotAuth, env.Message.Header.RCode)
	require.True(t, env.Signed())
	assert.Equal(t, domain.RCodeBadKey, env.TSIG.Error)
	assert.Empty(t, env.TSIG.MAC, "a key the server does not hold cannot sign the refusal")
	assert.Empty(t, applier.applied)
}

func TestSignedQueryBadSignature(t *testing.T) {
	r, clk := testResponder(t, nil)
	unsigned := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x3333, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "www.example.com", Type: domain.TypeA, Class: domain.ClassIN}},
	})
	req := signWire(t, clk, unsigned, []byte("wrong secret"))

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	assert.Equal(t, domain.RCodeNotAuth, env.Message.Header.RCode)
	require.True(t, env.Signed())
	assert.Equal(t, domain.RCodeBadSig, env.TSIG.Error)
	assert.NotEmpty(t, env.TSIG.MAC, "the server holds the key and signs the refusal")
	verifyErrorMAC(t, env, testSecret)
	assert.Empty(t, env.Message.Answers, "zone data never accompanies an authentication failure")
}

func TestSignedRequestOutsideFudgeBadTime(t *testing.T) {
	r, clk := testResponder(t, nil)
	unsigned := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x4444, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "www.example.com", Type: domain.TypeA, Class: domain.ClassIN}},
	})
	now := uint64(clk.Now().Unix())
	req := signWireAt(t, now-2*tsig.DefaultFudge, unsigned, testSecret)

	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	env := decodeResponse(t, out)
	require.True(t, env.Signed())
	assert.Equal(t, domain.RCodeBadTime, env.TSIG.Error)
	require.NotEmpty(t, env.TSIG.MAC, "a BADTIME refusal must be signed")
	verifyErrorMAC(t, env, testSecret)

	require.Len(t, env.TSIG.OtherData, 6)
	got := uint64(binary.BigEndian.Uint16(env.TSIG.OtherData[0:2]))<<32 |
		uint64(binary.BigEndian.Uint32(env.TSIG.OtherData[2:6]))
	assert.Equal(t, now, got, "other-data carries the server clock")
}

func TestTransferOverUDPRefused(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x4, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "open.org", Type: domain.TypeAXFR, Class: domain.ClassIN}},
	})
	out := r.HandleDatagram(context.Background(), req, testAddr)
	require.NotNil(t, out)
	assert.Equal(t, domain.RCodeRefused, decodeResponse(t, out).Message.Header.RCode)
}

func TestTransferStream(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x5, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "open.org", Type: domain.TypeAXFR, Class: domain.ClassIN}},
	})

	frames := r.HandleStream(context.Background(), req, testAddr)
	require.NotEmpty(t, frames)

	var answers []domain.ResourceRecord
	for i, frame := range frames {
		env := decodeResponse(t, frame)
		assert.Equal(t, uint16(0x5), env.Message.Header.ID)
		assert.True(t, env.Message.Header.Authoritative)
		if i == 0 {
			require.Len(t, env.Message.Questions, 1)
		}
		answers = append(answers, env.Message.Answers...)
	}
	require.GreaterOrEqual(t, len(answers), 2)
	assert.Equal(t, domain.TypeSOA, answers[0].Type)
	assert.Equal(t, domain.TypeSOA, answers[len(answers)-1].Type)
}

func TestTransferStreamSigned(t *testing.T) {
	r, clk := testResponder(t, nil)
	unsigned := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x6, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "example.com", Type: domain.TypeAXFR, Class: domain.ClassIN}},
	})
	req := signWire(t, clk, unsigned, testSecret)

	frames := r.HandleStream(context.Background(), req, testAddr)
	require.NotEmpty(t, frames)
	for _, frame := range frames {
		env := decodeResponse(t, frame)
		require.True(t, env.Signed(), "every transfer message is signed")
		assert.Equal(t, domain.RCodeNoError, env.TSIG.Error)
		assert.NotEmpty(t, env.TSIG.MAC)
	}
}

func TestTransferRequiresKeyWhenZoneHasOne(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x7, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "example.com", Type: domain.TypeAXFR, Class: domain.ClassIN}},
	})
	frames := r.HandleStream(context.Background(), req, testAddr)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.RCodeRefused, decodeResponse(t, frames[0]).Message.Header.RCode)
}

func TestTransferUnknownZoneRefused(t *testing.T) {
	r, _ := testResponder(t, nil)
	req := encodeRequest(t, &domain.Message{
		Header:    domain.Header{ID: 0x8, Opcode: domain.OpcodeQuery},
		Questions: []domain.Question{{Name: "missing.net", Type: domain.TypeAXFR, Class: domain.ClassIN}},
	})
	frames := r.HandleStream(context.Background(), req, testAddr)
	require.Len(t, frames, 1)
	env := decodeResponse(t, frames[0])
	assert.Equal(t, domain.RCodeRefused, env.Message.Header.RCode)
	assert.Empty(t, env.Message.Answers)
}
