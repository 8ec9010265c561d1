package grpcapi

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	"appointment-scheduler/internal/model"
)

// Wire types for booking.v1 (see api/booking/v1/booking.proto). They are
// encoded by hand with protowire, so field numbers here must match the proto.

var errParse = errors.New("malformed protobuf message")

type Message interface {
	Marshal() []byte
	Unmarshal(b []byte) error
}

type Empty struct{}

func (*Empty) Marshal() []byte { return nil }

func (*Empty) Unmarshal(b []byte) error {
	return eachField(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return -1, nil })
}

type Appointment struct {
	Id              int64
	AppointmentTime string
	Details         string
}

func appointmentFromModel(a *model.Appointment) *Appointment {
	return &Appointment{Id: a.ID, AppointmentTime: a.AppointmentTime, Details: a.Details}
}

func (a *Appointment) Marshal() []byte {
	var out []byte
	if a.Id != 0 {
		out = protowire.AppendTag(out, 1, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(a.Id))
	}
	out = appendString(out, 2, a.AppointmentTime)
	out = appendString(out, 3, a.Details)
	return out
}

func (a *Appointment) Unmarshal(b []byte) error {
	*a = Appointment{}
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			a.Id = int64(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &a.AppointmentTime)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &a.Details)
		}
		return -1, nil
	})
}

type BookRequest struct {
	AppointmentTime string
	Details         string
}

func (r *BookRequest) Marshal() []byte {
	var out []byte
	out = appendString(out, 1, r.AppointmentTime)
	out = appendString(out, 2, r.Details)
	return out
}

func (r *BookRequest) Unmarshal(b []byte) error {
	*r = BookRequest{}
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &r.AppointmentTime)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &r.Details)
		}
		return -1, nil
	})
}

type BookResponse struct {
	Appointment *Appointment
}

func (r *BookResponse) Marshal() []byte {
	if r.Appointment == nil {
		return nil
	}
	out := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendBytes(out, r.Appointment.Marshal())
}

func (r *BookResponse) Unmarshal(b []byte) error {
	*r = BookResponse{}
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return -1, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, errParse
		}
		r.Appointment = &Appointment{}
		return n, r.Appointment.Unmarshal(v)
	})
}

type ListBookedSlotsResponse struct {
	AppointmentTimes []string
}

func (r *ListBookedSlotsResponse) Marshal() []byte {
	var out []byte
	for _, s := range r.AppointmentTimes {
		out = protowire.AppendTag(out, 1, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}
	return out
}

func (r *ListBookedSlotsResponse) Unmarshal(b []byte) error {
	*r = ListBookedSlotsResponse{}
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return -1, nil
		}
		var s string
		n, err := consumeString(b, &s)
		r.AppointmentTimes = append(r.AppointmentTimes, s)
		return n, err
	})
}

type ClearSlotsResponse struct {
	Deleted int64
}

func (r *ClearSlotsResponse) Marshal() []byte {
	if r.Deleted == 0 {
		return nil
	}
	out := protowire.AppendTag(nil, 1, protowire.VarintType)
	return protowire.AppendVarint(out, uint64(r.Deleted))
}

func (r *ClearSlotsResponse) Unmarshal(b []byte) error {
	*r = ClearSlotsResponse{}
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.VarintType {
			return -1, nil
		}
		v, n := protowire.ConsumeVarint(b)
		r.Deleted = int64(v)
		return n, nil
	})
}

// eachField walks b calling fn for every field. fn returns how many bytes of
// the value it consumed, or -1 (with a nil error) to have the field skipped.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errParse
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == -1 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errParse
		}
		b = b[n:]
	}
	return nil
}

func appendString(out []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return out
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendString(out, s)
}

func consumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return n, errParse
	}
	*dst = v
	return n, nil
}
