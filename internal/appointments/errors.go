package appointments

import "github.com/carecircle/hub/internal/apperrors"

var (
	ErrAppointmentIDNotFound = apperrors.NotFound("appointment id not found")
	ErrAppointmentOverlaps   = apperrors.Conflict("appointment overlaps an existing appointment")
	ErrInvalidTimeRange      = apperrors.InvalidArg("appointment start must be before end")
	ErrRecordingNotFound     = apperrors.NotFound("recording id not found")
)
