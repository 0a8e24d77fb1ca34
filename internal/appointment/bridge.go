package appointment

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Bridge reacts to events from the consultation side. Its failures never
// reach the caller: a consultation must complete even if the appointment
// cannot be updated.
type Bridge struct {
	svc *Service
	log *zap.Logger
}

func NewBridge(svc *Service, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{svc: svc, log: log.Named("consultation-bridge")}
}

// OnConsultationCompleted marks the referenced appointment completed. ref may
// be an internal or an external id.
func (b *Bridge) OnConsultationCompleted(ctx context.Context, ref string) {
	lookups, err := LookupsFor(ref)
	if err != nil {
		b.log.Warn("consultation completed without appointment reference", zap.String("ref", ref))
		return
	}

	appt, err := b.svc.Resolve(ctx, lookups...)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			b.log.Warn("no appointment for completed consultation", zap.String("ref", ref))
		} else {
			b.log.Error("failed to resolve appointment for consultation", zap.String("ref", ref), zap.Error(err))
		}
		return
	}

	updated, err := b.svc.complete(ctx, appt.ID)
	if err != nil {
		b.log.Error("failed to complete appointment",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("status", string(appt.Status)),
			zap.Error(err))
		return
	}

	b.log.Info("appointment completed by consultation",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("external_id", updated.ExternalID))
}
