// Package update implements RFC2136 dynamic update processing: zone section
// validation, prerequisite evaluation, update prescan, and compilation into
// actions applied by the zone provider.
package update

import (
	"context"
	"errors"

	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
)

// MinimumTTL is the floor applied to added records; updates may not inject
// effectively uncacheable data.
const MinimumTTL = 60

// Applier hands a compiled update to the single-writer zone provider, which
// applies it to a clone, persists it, and publishes the new snapshot.
type Applier interface {
	ApplyUpdate(ctx context.Context, u domain.ZoneUpdate) error
}

// Processor validates and executes dynamic update messages.
type Processor struct {
	applier Applier
	log     log.Logger
}

// NewProcessor builds an update processor.
func NewProcessor(applier Applier, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Processor{applier: applier, log: logger}
}

// Process evaluates an UPDATE-opcode request against the current snapshot
// and, when every check passes, applies the compiled actions through the
// provider. The snapshot is read-only here; prerequisite evaluation and
// application never mutate it.
func (p *Processor) Process(ctx context.Context, root *domain.Zone, req *domain.Message) *domain.Message {
	resp := domain.NewResponse(req)
	resp.Questions = req.Questions
	resp.Header.RCode = p.process(ctx, root, req)
	resp.SyncCounts()
	return resp
}

func (p *Processor) process(ctx context.Context, root *domain.Zone, req *domain.Message) domain.RCode {
	if len(req.Questions) != 1 {
		return domain.RCodeFormErr
	}
	zsec := req.Questions[0]
	if zsec.Type != domain.TypeSOA || zsec.Class != domain.ClassIN {
		return domain.RCodeFormErr
	}
	zone := root.FindZone(zsec.Name)
	if zone == nil || !zone.Authoritative {
		return domain.RCodeNotAuth
	}

	// Fast fail against the snapshot; the provider re-evaluates the
	// prerequisites under its write lock, where they are authoritative.
	if rcode := domain.CheckPrerequisites(zone, req.Answers); rcode != domain.RCodeNoError {
		return rcode
	}
	actions, rcode := compileActions(zone, req.Authority)
	if rcode != domain.RCodeNoError {
		return rcode
	}
	// Updates with no actions still go through the provider: serial-bump
	// policy is its call, not ours.
	u := domain.ZoneUpdate{Zone: zone.Name, Prerequisites: req.Answers, Actions: actions}
	if err := p.applier.ApplyUpdate(ctx, u); err != nil {
		var prereq *domain.PrerequisiteError
		if errors.As(err, &prereq) {
			return prereq.Code
		}
		if errors.Is(err, domain.ErrReadOnlyZone) {
			return domain.RCodeRefused
		}
		p.log.Error(map[string]any{"zone": zone.Name.String(), "error": err.Error()}, "update application failed")
		return domain.RCodeServFail
	}
	p.log.Info(map[string]any{"zone": zone.Name.String(), "actions": len(actions)}, "zone updated")
	return domain.RCodeNoError
}

// compileActions prescans the update section (RFC2136 3.4.1) and compiles
// it into zone actions.
func compileActions(zone *domain.Zone, updates []domain.ResourceRecord) ([]domain.UpdateAction, domain.RCode) {
	var actions []domain.UpdateAction
	for _, rr := range updates {
		if !rr.Name.EndsWith(zone.Name) {
			return nil, domain.RCodeNotZone
		}
		switch rr.Class {
		case domain.ClassIN:
			if rr.Type.IsMeta() {
				return nil, domain.RCodeFormErr
			}
			add := rr
			if add.TTL < MinimumTTL {
				add.TTL = MinimumTTL
			}
			actions = append(actions, domain.UpdateAction{Op: domain.OpAdd, Record: add})
		case domain.ClassANY:
			if rr.TTL != 0 || len(rr.Data) != 0 {
				return nil, domain.RCodeFormErr
			}
			if rr.Type != domain.TypeANY && rr.Type.IsMeta() {
				return nil, domain.RCodeFormErr
			}
			actions = append(actions, domain.UpdateAction{Op: domain.OpDeleteRRSet, Record: rr})
		case domain.ClassNONE:
			if rr.TTL != 0 {
				return nil, domain.RCodeFormErr
			}
			if rr.Type.IsMeta() {
				return nil, domain.RCodeFormErr
			}
			del := rr
			del.Class = domain.ClassIN
			actions = append(actions, domain.UpdateAction{Op: domain.OpDeleteRecord, Record: del})
		default:
			return nil, domain.RCodeFormErr
		}
	}
	return actions, domain.RCodeNoError
}
