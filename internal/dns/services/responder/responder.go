// Package responder routes decoded messages to the query, update, and
// transfer services, enforcing transaction signatures at entry and exit.
// It is the only layer that sees raw wire payloads on both sides; the
// services beneath it work purely with domain objects.
package responder

import (
	"context"
	"errors"
	"net"

	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
	"github.com/Protryon/adns/internal/dns/gateways/wire"
	"github.com/Protryon/adns/internal/dns/repos/zonestore"
	"github.com/Protryon/adns/internal/dns/services/resolver"
	"github.com/Protryon/adns/internal/dns/services/transfer"
	"github.com/Protryon/adns/internal/dns/services/tsig"
	"github.com/Protryon/adns/internal/dns/services/update"
)

// SnapshotSource provides the currently published zone snapshot. It must
// never block; every request reads exactly one snapshot for its lifetime.
type SnapshotSource interface {
	Snapshot() *zonestore.Snapshot
}

// tsigReserve is the wire space held back for a TSIG record when a signed
// response must fit a size limit: owner and algorithm names, the fixed
// record and rdata fields, and the largest MAC (SHA-512).
const tsigReserve = 256 + 10 + 32 + 16 + 64

// Responder dispatches one decoded request to the service matching its
// opcode and question type.
type Responder struct {
	snapshots SnapshotSource
	engine    *tsig.Engine
	resolver  *resolver.Resolver
	updates   *update.Processor
	transfers *transfer.Engine
	log       log.Logger
}

// New assembles a responder over the given services.
func New(snapshots SnapshotSource, engine *tsig.Engine, res *resolver.Resolver, upd *update.Processor, xfr *transfer.Engine, logger log.Logger) *Responder {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Responder{
		snapshots: snapshots,
		engine:    engine,
		resolver:  res,
		updates:   upd,
		transfers: xfr,
		log:       logger,
	}
}

// HandleDatagram processes one UDP payload and returns the response wire,
// or nil when the datagram must be dropped. Responses are truncated to the
// client's advertised payload size.
func (r *Responder) HandleDatagram(ctx context.Context, payload []byte, from net.Addr) []byte {
	frames := r.handle(ctx, payload, from, false)
	if len(frames) == 0 {
		return nil
	}
	return frames[0]
}

// HandleStream processes one TCP request payload and returns the ordered
// response frames; zone transfers produce several. The transport adds the
// length prefixes.
func (r *Responder) HandleStream(ctx context.Context, payload []byte, from net.Addr) [][]byte {
	return r.handle(ctx, payload, from, true)
}

// signer carries the verified key material a response must be signed with.
type signer struct {
	keyName  domain.Name
	key      domain.TSIGKey
	alg      domain.Name
	allowMD5 bool
	mac      []byte
}

func (r *Responder) handle(ctx context.Context, payload []byte, from net.Addr, viaTCP bool) [][]byte {
	env, err := wire.DecodeMessage(payload)
	if err != nil {
		return r.garbage(payload, from, err)
	}
	req := env.Message
	if req.Header.Response {
		return nil
	}

	snap := r.snapshots.Snapshot()
	maxSize := 0
	if !viaTCP {
		maxSize = int(req.UDPSize)
	}

	var sig *signer
	if env.Signed() {
		scope := env.KeyName
		if len(req.Questions) > 0 {
			scope = req.Questions[0].Name
		}
		key, keyZone, ok := snap.Root.FindKey(scope, env.KeyName)
		if !ok {
			r.log.Warn(map[string]any{
				"client": from.String(),
				"key":    env.KeyName.String(),
			}, "request signed with unknown key")
			return r.tsigFailure(env, maxSize, domain.RCodeBadKey, nil, false)
		}
		if err := r.engine.VerifyRequest(env, key, keyZone.AllowMD5TSIG); err != nil {
			return r.tsigFailure(env, maxSize, tsigCode(err), &key, keyZone.AllowMD5TSIG)
		}
		if req.Header.Opcode == domain.OpcodeUpdate && r.engine.CheckReplay(env.TSIG.MAC) {
			r.log.Warn(map[string]any{
				"client": from.String(),
				"key":    env.KeyName.String(),
			}, "replayed update signature")
			return r.tsigFailure(env, maxSize, domain.RCodeBadSig, &key, keyZone.AllowMD5TSIG)
		}
		sig = &signer{
			keyName:  env.KeyName,
			key:      key,
			alg:      env.TSIG.Algorithm,
			allowMD5: keyZone.AllowMD5TSIG,
			mac:      env.TSIG.MAC,
		}
	}

	switch req.Header.Opcode {
	case domain.OpcodeQuery:
		if len(req.Questions) == 1 && req.Questions[0].Type == domain.TypeAXFR {
			return r.handleTransfer(env, snap, sig, viaTCP, from)
		}
		resp := r.resolver.Resolve(snap.Root, snap.Index, req)
		return r.frames(sig, maxSize, resp)
	case domain.OpcodeUpdate:
		if sig == nil && zoneHasKeys(snap.Root, req) {
			return r.frames(sig, maxSize, refusal(req, domain.RCodeRefused))
		}
		resp := r.updates.Process(ctx, snap.Root, req)
		return r.frames(sig, maxSize, resp)
	default:
		return r.frames(sig, maxSize, refusal(req, domain.RCodeNotImp))
	}
}

// handleTransfer serves an AXFR question. Transfers require a stream
// transport, and a signed request when the zone declares keys; each
// emitted message is signed, the first in full and the rest in
// continuation mode.
func (r *Responder) handleTransfer(env *wire.Envelope, snap *zonestore.Snapshot, sig *signer, viaTCP bool, from net.Addr) [][]byte {
	req := env.Message
	if !viaTCP {
		return r.frames(sig, int(req.UDPSize), refusal(req, domain.RCodeRefused))
	}
	if sig == nil && zoneHasKeys(snap.Root, req) {
		return r.frames(sig, 0, refusal(req, domain.RCodeRefused))
	}
	messages, rcode := r.transfers.Build(snap.Root, req)
	if rcode != domain.RCodeNoError {
		return r.frames(sig, 0, refusal(req, rcode))
	}
	var frames [][]byte
	priorMAC := []byte(nil)
	if sig != nil {
		priorMAC = sig.mac
	}
	for i, msg := range messages {
		data, err := wire.EncodeMessage(msg, 0)
		if err != nil {
			r.log.Error(map[string]any{"client": from.String(), "error": err.Error()}, "transfer encode failed")
			return r.frames(sig, 0, refusal(req, domain.RCodeServFail))
		}
		if sig != nil {
			var mac []byte
			if i == 0 {
				data, mac, err = r.engine.SignResponse(data, sig.keyName, sig.key, sig.alg, sig.allowMD5, priorMAC)
			} else {
				data, mac, err = r.engine.SignContinuation(data, sig.keyName, sig.key, sig.alg, sig.allowMD5, priorMAC)
			}
			if err != nil {
				r.log.Error(map[string]any{"client": from.String(), "error": err.Error()}, "transfer signing failed")
				return nil
			}
			priorMAC = mac
		}
		frames = append(frames, data)
	}
	return frames
}

// frames encodes a single response message and signs it when the request
// was. Signed responses reserve wire space for the TSIG record before
// truncation so the signature never pushes the payload past the limit.
func (r *Responder) frames(sig *signer, maxSize int, resp *domain.Message) [][]byte {
	limit := maxSize
	if sig != nil && limit > 0 {
		limit -= tsigReserve
		if limit < domain.HeaderLength {
			limit = domain.HeaderLength
		}
	}
	data, err := wire.EncodeMessage(resp, limit)
	if err != nil {
		return nil
	}
	if sig != nil {
		data, _, err = r.engine.SignResponse(data, sig.keyName, sig.key, sig.alg, sig.allowMD5, sig.mac)
		if err != nil {
			return nil
		}
	}
	return [][]byte{data}
}

// tsigFailure answers a request whose signature was rejected: the rcode
// carries the TSIG error (collapsing to NOTAUTH in the header). When the
// server holds the key, the error itself is signed with it, as RFC8945 5.3
// mandates for BADTIME; without the key the appended TSIG record is
// unsigned with an empty MAC.
func (r *Responder) tsigFailure(env *wire.Envelope, maxSize int, code domain.RCode, key *domain.TSIGKey, allowMD5 bool) [][]byte {
	resp := refusal(env.Message, code)
	limit := maxSize
	if limit > 0 {
		limit -= tsigReserve
		if limit < domain.HeaderLength {
			limit = domain.HeaderLength
		}
	}
	data, err := wire.EncodeMessage(resp, limit)
	if err != nil {
		return nil
	}
	if key != nil {
		if signed, err := r.engine.SignError(data, env, *key, allowMD5, code); err == nil {
			return [][]byte{signed}
		}
		// The algorithm itself was unusable; fall through unsigned.
	}
	return [][]byte{r.engine.AppendError(data, env, code)}
}

// garbage answers an undecodable payload with FORMERR when at least the
// header parsed and the payload was a request; anything less is dropped.
func (r *Responder) garbage(payload []byte, from net.Addr, cause error) [][]byte {
	header, err := domain.UnpackHeader(payload)
	if err != nil || header.Response {
		return nil
	}
	r.log.Debug(map[string]any{
		"client": from.String(),
		"error":  cause.Error(),
	}, "malformed request")
	resp := &domain.Message{Header: domain.Header{
		ID:       header.ID,
		Response: true,
		Opcode:   header.Opcode,
		RCode:    domain.RCodeFormErr,
	}}
	data, err := wire.EncodeMessage(resp, 0)
	if err != nil {
		return nil
	}
	return [][]byte{data}
}

// refusal builds an empty response carrying just an rcode.
func refusal(req *domain.Message, code domain.RCode) *domain.Message {
	resp := domain.NewResponse(req)
	resp.Questions = req.Questions
	resp.Header.RCode = code
	resp.SyncCounts()
	return resp
}

// zoneHasKeys reports whether the zone named by the request's question, or
// any enclosing zone, declares TSIG keys. Such zones accept state-changing
// operations only over a verified signature.
func zoneHasKeys(root *domain.Zone, req *domain.Message) bool {
	if len(req.Questions) == 0 {
		return false
	}
	zone, ancestors := root.Locate(req.Questions[0].Name)
	if zone == nil {
		return false
	}
	for _, candidate := range append([]*domain.Zone{zone}, ancestors...) {
		if len(candidate.TSIGKeys) > 0 {
			return true
		}
	}
	return false
}

// tsigCode maps a verification error to its TSIG rcode.
func tsigCode(err error) domain.RCode {
	var terr *tsig.Error
	if errors.As(err, &terr) {
		return terr.Code
	}
	return domain.RCodeServFail
}
