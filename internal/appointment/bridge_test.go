package appointment

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBridgeCompletesByEitherIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bridge := NewBridge(f.svc, zap.NewNop())

	byInternal, err := f.svc.Book(ctx, f.request("2025-03-03", "09:00"))
	if err != nil {
		t.Fatal(err)
	}
	byExternal, err := f.svc.Book(ctx, f.request("2025-03-03", "09:30"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Confirm(ctx, byExternal.ID); err != nil {
		t.Fatal(err)
	}

	bridge.OnConsultationCompleted(ctx, byInternal.ID.String())
	bridge.OnConsultationCompleted(ctx, byExternal.ExternalID)

	for _, id := range []*Appointment{byInternal, byExternal} {
		got, _ := f.repo.GetByID(ctx, id.ID)
		if got.Status != StatusCompleted {
			t.Fatalf("%s is %s, want completed", got.ExternalID, got.Status)
		}
	}
	if f.metrics.got["complete/ok"] != 2 {
		t.Fatalf("outcomes %v", f.metrics.got)
	}
}

func TestBridgeSwallowsMisses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	bridge := NewBridge(f.svc, zap.New(core))

	bridge.OnConsultationCompleted(ctx, "APT-0000000000000000")
	bridge.OnConsultationCompleted(ctx, "")

	if logs.FilterMessage("no appointment for completed consultation").Len() != 1 {
		t.Fatalf("miss was not logged: %v", logs.All())
	}
	if logs.FilterMessage("consultation completed without appointment reference").Len() != 1 {
		t.Fatalf("empty reference was not logged")
	}
}

func TestBridgeLeavesTerminalAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	bridge := NewBridge(f.svc, zap.New(core))

	appt, err := f.svc.Book(ctx, f.request("2025-03-03", "09:00"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatal(err)
	}

	bridge.OnConsultationCompleted(ctx, appt.ExternalID)

	got, _ := f.repo.GetByID(ctx, appt.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("cancelled appointment became %s", got.Status)
	}
	if logs.FilterMessage("failed to complete appointment").Len() != 1 {
		t.Fatalf("failure was not logged")
	}
}
