package meeting

import (
	"net/http"
	"time"

	"github.com/tutorbridge/backend/internal/apperrors"
)

// graceWindow tolerates clock skew and queueing delay between client
// submission and server-side validation.
const graceWindow = 30 * time.Second

// TimeSlot is a validated (start, end) pair.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

// ValidateTimeSlot validates a proposed (scheduledTime, durationMinutes)
// pair against the booking rules. scheduledTime must be RFC 3339. Pure:
// the caller supplies the wall clock.
func ValidateTimeSlot(scheduledTime string, durationMinutes int, now time.Time) (TimeSlot, error) {
	start, err := time.Parse(time.RFC3339, scheduledTime)
	if err != nil {
		return TimeSlot{}, apperrors.Wrap(apperrors.CodeInvalidTimeSlot, http.StatusBadRequest,
			"Invalid scheduledTime", err)
	}

	if durationMinutes <= 0 {
		return TimeSlot{}, apperrors.New(apperrors.CodeInvalidTimeSlot, http.StatusBadRequest,
			"Invalid durationMinutes")
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	if !end.After(start) {
		return TimeSlot{}, apperrors.New(apperrors.CodeInvalidTimeSlot, http.StatusBadRequest,
			"Invalid time range")
	}

	if !start.After(now.Add(-graceWindow)) {
		return TimeSlot{}, apperrors.New(apperrors.CodeInvalidTimeSlot, http.StatusBadRequest,
			"Scheduled time must be in the future")
	}

	return TimeSlot{Start: start, End: end}, nil
}
