package model

// Appointment is one booked hour. AppointmentTime keeps the submitted text
// verbatim; only its (year, month, day, hour) matters for conflicts.
type Appointment struct {
	ID              int64  `json:"id"`
	AppointmentTime string `json:"appointment_time"`
	Details         string `json:"details"`
}
