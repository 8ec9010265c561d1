package booking

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// isoShape is the accepted ISO 8601 subset: zero-padded fields, then an
// optional hour with minutes, seconds and fraction each optional, and an
// optional offset.
var isoShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}(:\d{2}(:\d{2}(\.\d{1,9})?)?)?(Z|[+-]\d{2}:\d{2})?)?$`)

// layouts accepted once the shape matches, tried in order. Zoned layouts
// come first so an offset is never silently dropped.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseTime parses an ISO-like timestamp. Times without an offset are read in
// loc. The wall clock of the result is what the slot is taken from.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !isoShape.MatchString(s) {
		return time.Time{}, ErrInvalidFormat
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidFormat
}

// Slot identifies a one-hour window.
type Slot struct {
	Year  int
	Month time.Month
	Day   int
	Hour  int
}

func SlotOf(t time.Time) Slot {
	return Slot{Year: t.Year(), Month: t.Month(), Day: t.Day(), Hour: t.Hour()}
}

// Key renders the slot as YYYY-MM-DDTHH.
func (s Slot) Key() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d", s.Year, int(s.Month), s.Day, s.Hour)
}

// Policy holds the calendar rules: which days accept bookings and which hours
// the form offers.
type Policy struct {
	Location  *time.Location
	OpenHour  int
	CloseHour int
	ClosedOn  time.Weekday
}

func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.Local
	}
	return Policy{Location: loc, OpenHour: 9, CloseHour: 17, ClosedOn: time.Sunday}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsPast reports whether t's date is strictly before now's date in the
// policy location. Earlier hours of today are not past.
func (p Policy) IsPast(t, now time.Time) bool {
	return dateOf(t).Before(dateOf(now.In(p.Location)))
}

func (p Policy) IsClosed(t time.Time) bool {
	return t.Weekday() == p.ClosedOn
}

// Check applies the date rules in order: past first, then closed day.
func (p Policy) Check(t, now time.Time) error {
	if p.IsPast(t, now) {
		return ErrPastDate
	}
	if p.IsClosed(t) {
		return ErrClosedDay
	}
	return nil
}

// DefaultDate is the day the booking form opens on: today, or the next day
// that accepts bookings.
func (p Policy) DefaultDate(now time.Time) time.Time {
	now = now.In(p.Location)
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.Location)
	for p.IsClosed(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// Hours lists the hours the form offers for a day.
func (p Policy) Hours() []int {
	out := make([]int, 0, p.CloseHour-p.OpenHour)
	for h := p.OpenHour; h < p.CloseHour; h++ {
		out = append(out, h)
	}
	return out
}
