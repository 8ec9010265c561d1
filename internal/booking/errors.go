package booking

import "errors"

// Rejections returned by Validator.Book. The messages are shown to users as-is.
var (
	ErrInvalidFormat  = errors.New("Invalid datetime format")
	ErrPastDate       = errors.New("Cannot book a date in the past")
	ErrClosedDay      = errors.New("Appointments are not available on Sundays")
	ErrSlotTaken      = errors.New("Time slot already booked")
	ErrMissingDetails = errors.New("Details are required")
)

var rejections = []error{
	ErrInvalidFormat,
	ErrPastDate,
	ErrClosedDay,
	ErrSlotTaken,
	ErrMissingDetails,
}

// IsRejection reports whether err is a policy rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
