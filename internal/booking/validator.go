package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"appointment-scheduler/internal/model"
	"appointment-scheduler/internal/store"
)

type Option func(*base)

// WithClock replaces time.Now, mostly for tests that need a fixed "today".
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *base) { b.log = l }
}

type base struct {
	store  store.Store
	policy Policy
	now    func() time.Time
	log    *zap.Logger
}

func newBase(st store.Store, p Policy, opts []Option) base {
	b := base{store: st, policy: p, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// slotsOf parses stored times into slots. Rows that no longer parse are
// skipped; they cannot be compared and must not block the whole calendar.
func (b *base) slotsOf(existing []model.Appointment) map[Slot]bool {
	out := make(map[Slot]bool, len(existing))
	for _, a := range existing {
		t, err := ParseTime(a.AppointmentTime, b.policy.Location)
		if err != nil {
			b.log.Warn("skipping unparseable appointment time",
				zap.Int64("id", a.ID), zap.String("appointment_time", a.AppointmentTime))
			continue
		}
		out[SlotOf(t)] = true
	}
	return out
}

// Validator books appointments after checking them against the date policy
// and the existing bookings.
type Validator struct {
	base
}

func NewValidator(st store.Store, p Policy, opts ...Option) *Validator {
	return &Validator{base: newBase(st, p, opts)}
}

func (v *Validator) Policy() Policy { return v.policy }

// Book validates candidate and, if its hour is free, stores it. The slot scan
// and the insert run inside the store's exclusive section, so two concurrent
// bookings of one hour cannot both succeed.
func (v *Validator) Book(ctx context.Context, candidate, details string) (*model.Appointment, error) {
	t, err := ParseTime(candidate, v.policy.Location)
	if err != nil {
		return nil, err
	}
	if err := v.policy.Check(t, v.now()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(details) == "" {
		return nil, ErrMissingDetails
	}

	want := SlotOf(t)
	a := &model.Appointment{AppointmentTime: candidate, Details: details}

	err = v.store.Exclusive(ctx, func(tx store.Tx) error {
		existing, err := tx.List(ctx)
		if err != nil {
			return err
		}
		if v.slotsOf(existing)[want] {
			return ErrSlotTaken
		}
		return tx.Insert(ctx, a)
	})
	switch {
	case errors.Is(err, ErrSlotTaken):
		v.log.Info("slot already booked", zap.String("slot", want.Key()))
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("book slot %s: %w", want.Key(), err)
	}

	v.log.Info("appointment booked", zap.Int64("id", a.ID), zap.String("slot", want.Key()))
	return a, nil
}
