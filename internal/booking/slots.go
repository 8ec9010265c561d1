package booking

import (
	"context"
	"fmt"
	"time"

	"appointment-scheduler/internal/store"
)

type HourStatus struct {
	Hour   int    `json:"hour"`
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}

// DayAvailability is what the booking page needs to grey out hours and days.
type DayAvailability struct {
	Date        string       `json:"date"`
	Closed      bool         `json:"closed"`
	Past        bool         `json:"past"`
	FullyBooked bool         `json:"fully_booked"`
	Hours       []HourStatus `json:"hours"`
}

// SlotQuery is the read side: it never writes and never caches.
type SlotQuery struct {
	base
}

func NewSlotQuery(st store.Store, p Policy, opts ...Option) *SlotQuery {
	return &SlotQuery{base: newBase(st, p, opts)}
}

func (q *SlotQuery) Policy() Policy { return q.policy }

// BookedSlots returns every stored appointment time as it was submitted.
func (q *SlotQuery) BookedSlots(ctx context.Context) ([]string, error) {
	all, err := q.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, a.AppointmentTime)
	}
	return out, nil
}

func (q *SlotQuery) DefaultDate() time.Time {
	return q.policy.DefaultDate(q.now())
}

// DayAvailability reports which of the policy's hours are taken on day.
func (q *SlotQuery) DayAvailability(ctx context.Context, day time.Time) (*DayAvailability, error) {
	all, err := q.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	taken := q.slotsOf(all)

	d := &DayAvailability{
		Date:   day.Format("2006-01-02"),
		Closed: q.policy.IsClosed(day),
		Past:   q.policy.IsPast(day, q.now()),
	}
	booked := 0
	for _, h := range q.policy.Hours() {
		s := Slot{Year: day.Year(), Month: day.Month(), Day: day.Day(), Hour: h}
		hs := HourStatus{
			Hour:   h,
			Time:   fmt.Sprintf("%sT%02d:00", d.Date, h),
			Booked: taken[s],
		}
		if hs.Booked {
			booked++
		}
		d.Hours = append(d.Hours, hs)
	}
	d.FullyBooked = !d.Closed && !d.Past && len(d.Hours) > 0 && booked == len(d.Hours)
	return d, nil
}
