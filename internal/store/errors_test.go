package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_ordinal_key"}
	other := errors.New("boom")

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"unique violation", fmt.Errorf("insert: %w", unique), ErrConflict},
		{"deadline", context.DeadlineExceeded, ErrStorageUnavailable},
		{"already classified", ErrStorageUnavailable, ErrStorageUnavailable},
		{"unknown", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Classify(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
}

func TestCanceledIsNotTransient(t *testing.T) {
	if Transient(Classify(context.Canceled)) {
		t.Fatal("caller cancellation must not be retried")
	}
	if !Transient(Classify(context.DeadlineExceeded)) {
		t.Fatal("deadline should be transient")
	}
}
