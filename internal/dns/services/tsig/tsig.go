// Package tsig implements RFC2845 transaction signatures: request
// verification, response signing, and the timers-only continuation mode
// used by multi-message zone transfers.
package tsig

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Protryon/adns/internal/dns/common/clock"
	"github.com/Protryon/adns/internal/dns/domain"
	"github.com/Protryon/adns/internal/dns/gateways/wire"
)

// DefaultFudge is the time window, in seconds, we sign responses with and
// the replay guard remembers MACs for.
const DefaultFudge = 300

// Supported algorithm names. MD5 is accepted only for zones that opt in.
const (
	AlgHMACMD5    = "hmac-md5.sig-alg.reg.int"
	AlgHMACSHA1   = "hmac-sha1"
	AlgHMACSHA224 = "hmac-sha224"
	AlgHMACSHA256 = "hmac-sha256"
	AlgHMACSHA384 = "hmac-sha384"
	AlgHMACSHA512 = "hmac-sha512"
)

// replayEntries bounds the MAC replay cache.
const replayEntries = 4096

// Error is a verification failure carrying the TSIG-level rcode that the
// signed error response must report.
type Error struct {
	Code   domain.RCode
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tsig %s: %s", e.Code, e.Detail)
}

func tsigErr(code domain.RCode, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Engine verifies and signs transaction signatures. It is safe for
// concurrent use.
type Engine struct {
	clock  clock.Clock
	replay *lru.Cache[string, uint64]
}

// NewEngine builds an engine with the given clock.
func NewEngine(clk clock.Clock) (*Engine, error) {
	replay, err := lru.New[string, uint64](replayEntries)
	if err != nil {
		return nil, err
	}
	return &Engine{clock: clk, replay: replay}, nil
}

// hasher resolves an algorithm name to its HMAC hash constructor.
func hasher(alg domain.Name, allowMD5 bool) (func() hash.Hash, error) {
	switch strings.ToLower(string(alg)) {
	case AlgHMACMD5:
		if !allowMD5 {
			return nil, tsigErr(domain.RCodeBadKey, "md5 signatures not permitted")
		}
		return md5.New, nil
	case AlgHMACSHA1:
		return sha1.New, nil
	case AlgHMACSHA224:
		return sha256.New224, nil
	case AlgHMACSHA256:
		return sha256.New, nil
	case AlgHMACSHA384:
		return sha512.New384, nil
	case AlgHMACSHA512:
		return sha512.New, nil
	default:
		return nil, tsigErr(domain.RCodeBadKey, "unknown algorithm %s", alg)
	}
}

func computeMAC(h func() hash.Hash, secret []byte, chunks ...[]byte) []byte {
	mac := hmac.New(h, secret)
	for _, chunk := range chunks {
		mac.Write(chunk)
	}
	return mac.Sum(nil)
}

// lengthPrefixed renders a prior MAC as it enters a digest: 16-bit length
// then the MAC bytes.
func lengthPrefixed(mac []byte) []byte {
	return append(binary.BigEndian.AppendUint16(nil, uint16(len(mac))), mac...)
}

// VerifyRequest checks a signed request against key material. The MAC is
// checked before the time window so that BADTIME responses are only sent to
// holders of the key; replayed MACs on state-changing operations are caught
// by CheckReplay separately.
func (e *Engine) VerifyRequest(env *wire.Envelope, key domain.TSIGKey, allowMD5 bool) error {
	sig := env.TSIG
	h, err := hasher(sig.Algorithm, allowMD5)
	if err != nil {
		return err
	}
	expect := computeMAC(h, key.Secret, env.Prefix, sig.Variables(env.KeyName, false))
	if !hmac.Equal(expect, sig.MAC) {
		return tsigErr(domain.RCodeBadSig, "signature mismatch for key %s", env.KeyName)
	}
	now := uint64(e.clock.Now().Unix())
	diff := now - sig.TimeSigned
	if sig.TimeSigned > now {
		diff = sig.TimeSigned - now
	}
	if diff > uint64(sig.Fudge) {
		return tsigErr(domain.RCodeBadTime, "signed time %d outside fudge %d", sig.TimeSigned, sig.Fudge)
	}
	return nil
}

// CheckReplay records the request MAC and reports whether it was already
// seen recently. Only state-changing operations consult this; benign UDP
// retries of queries must not be penalized.
func (e *Engine) CheckReplay(mac []byte) bool {
	now := uint64(e.clock.Now().Unix())
	key := string(mac)
	if seen, ok := e.replay.Get(key); ok && now-seen <= DefaultFudge {
		return true
	}
	e.replay.Add(key, now)
	return false
}

// SignResponse appends a verified TSIG to an encoded response. requestMAC
// is the MAC of the request being answered and enters the digest with a
// length prefix; pass nil when signing the first message of a transaction
// the server initiates.
func (e *Engine) SignResponse(msgWire []byte, keyName domain.Name, key domain.TSIGKey, alg domain.Name, allowMD5 bool, requestMAC []byte) ([]byte, []byte, error) {
	return e.sign(msgWire, keyName, key, alg, allowMD5, requestMAC, false)
}

// SignContinuation signs a follow-on message of a multi-message response
// (zone transfer) in timers-only mode, chaining from the previous
// message's MAC.
func (e *Engine) SignContinuation(msgWire []byte, keyName domain.Name, key domain.TSIGKey, alg domain.Name, allowMD5 bool, priorMAC []byte) ([]byte, []byte, error) {
	return e.sign(msgWire, keyName, key, alg, allowMD5, priorMAC, true)
}

func (e *Engine) sign(msgWire []byte, keyName domain.Name, key domain.TSIGKey, alg domain.Name, allowMD5 bool, priorMAC []byte, timersOnly bool) ([]byte, []byte, error) {
	h, err := hasher(alg, allowMD5)
	if err != nil {
		return nil, nil, err
	}
	sig := domain.TSIG{
		Algorithm:  alg,
		TimeSigned: uint64(e.clock.Now().Unix()),
		Fudge:      DefaultFudge,
		OriginalID: binary.BigEndian.Uint16(msgWire[0:2]),
	}
	var chunks [][]byte
	if priorMAC != nil {
		chunks = append(chunks, lengthPrefixed(priorMAC))
	}
	chunks = append(chunks, msgWire, sig.Variables(keyName, timersOnly))
	sig.MAC = computeMAC(h, key.Secret, chunks...)
	return wire.AppendTSIG(msgWire, keyName, sig), sig.MAC, nil
}

// AppendError attaches an unsigned TSIG record reporting a verification
// failure for a key the server does not hold. The MAC is empty per
// RFC2845 4.3; failures with a known key go through SignError instead.
func (e *Engine) AppendError(msgWire []byte, env *wire.Envelope, code domain.RCode) []byte {
	sig := domain.TSIG{
		Algorithm:  env.TSIG.Algorithm,
		TimeSigned: env.TSIG.TimeSigned,
		Fudge:      env.TSIG.Fudge,
		OriginalID: binary.BigEndian.Uint16(msgWire[0:2]),
		Error:      code,
	}
	if code == domain.RCodeBadTime {
		sig.OtherData = e.serverTime()
	}
	return wire.AppendTSIG(msgWire, env.KeyName, sig)
}

// SignError attaches a signed TSIG reporting a verification failure for a
// request whose key the server holds, so the client can authenticate the
// refusal. RFC8945 5.3 makes this mandatory for BADTIME, which also
// reports the server clock in the other-data field. The request MAC never
// verified and does not enter the digest.
func (e *Engine) SignError(msgWire []byte, env *wire.Envelope, key domain.TSIGKey, allowMD5 bool, code domain.RCode) ([]byte, error) {
	h, err := hasher(env.TSIG.Algorithm, allowMD5)
	if err != nil {
		return nil, err
	}
	sig := domain.TSIG{
		Algorithm:  env.TSIG.Algorithm,
		TimeSigned: uint64(e.clock.Now().Unix()),
		Fudge:      DefaultFudge,
		OriginalID: binary.BigEndian.Uint16(msgWire[0:2]),
		Error:      code,
	}
	if code == domain.RCodeBadTime {
		sig.OtherData = e.serverTime()
	}
	sig.MAC = computeMAC(h, key.Secret, msgWire, sig.Variables(env.KeyName, false))
	return wire.AppendTSIG(msgWire, env.KeyName, sig), nil
}

// serverTime renders the engine clock as the 48-bit seconds value BADTIME
// responses carry in other-data.
func (e *Engine) serverTime() []byte {
	now := uint64(e.clock.Now().Unix())
	other := make([]byte, 6)
	binary.BigEndian.PutUint16(other[0:2], uint16(now>>32))
	binary.BigEndian.PutUint32(other[2:6], uint32(now))
	return other
}
