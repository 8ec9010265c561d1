package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"appointment-scheduler/internal/auth"
	"appointment-scheduler/internal/booking"
	"appointment-scheduler/internal/config"
)

const secret = "test-secret-test-secret-test-secret"

func newContext(t *testing.T) (*Context, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	ctx := &Context{
		Ctx:      context.Background(),
		Database: filepath.Join(t.TempDir(), "cli.db"),
		Config: &config.Config{
			Booking: config.BookingConfig{Location: time.UTC, OpenHour: 9, CloseHour: 17},
			Admin:   config.AdminConfig{Secret: secret, TokenTTL: time.Minute},
		},
		Out: out,
		Log: zap.NewNop(),
		// Wednesday
		Now: func() time.Time { return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) },
	}
	t.Cleanup(func() { ctx.Close() })
	return ctx, out
}

func TestBookListClear(t *testing.T) {
	ctx, out := newContext(t)

	if err := (&BookCmd{At: "2025-03-17T14:00", Details: "checkup"}).Run(ctx); err != nil {
		t.Fatalf("book: %v", err)
	}
	if !strings.Contains(out.String(), "Booked #1 at 2025-03-17T14:00") {
		t.Errorf("book output: %q", out.String())
	}

	err := (&BookCmd{At: "2025-03-17T14:45", Details: "again"}).Run(ctx)
	if !errors.Is(err, booking.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	out.Reset()
	if err := (&ListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"ID", "2025-03-17T14:00", "2025-03-17T14", "checkup"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := (&ClearCmd{}).Run(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out.String(), "Removed 1 appointment(s)") {
		t.Errorf("clear output: %q", out.String())
	}

	out.Reset()
	(&ListCmd{}).Run(ctx)
	if !strings.Contains(out.String(), "No appointments booked.") {
		t.Errorf("empty list output: %q", out.String())
	}
}

func TestHashPasswordDoesNotOpenStore(t *testing.T) {
	ctx, out := newContext(t)

	cmd := &HashPasswordCmd{Password: "correct horse"}
	if err := cmd.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if !auth.CheckPassword(hash, "correct horse") {
		t.Error("printed hash does not verify")
	}
	if ctx.st != nil {
		t.Error("store opened for hash-password")
	}

	if err := (&HashPasswordCmd{Password: "short"}).Validate(); err == nil {
		t.Error("expected short password to fail validation")
	}
}

func TestToken(t *testing.T) {
	ctx, out := newContext(t)
	if err := (&TokenCmd{}).Run(ctx); err != nil {
		t.Fatalf("token: %v", err)
	}
	if err := auth.CheckAdmin(strings.TrimSpace(out.String()), secret); err != nil {
		t.Errorf("minted token rejected: %v", err)
	}

	ctx.Config.Admin.Secret = ""
	if err := (&TokenCmd{}).Run(ctx); err == nil {
		t.Error("expected error without ADMIN_SECRET")
	}
}
