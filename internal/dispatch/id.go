package dispatch

import "strings"

// Content keys the hub sends on its own.
const (
	ContentAppointmentRequest        = "appointmentRequest"
	ContentAppointmentReminder       = "appointmentReminder"
	ContentAppointmentLongReminder   = "appointmentLongReminder"
	ContentAppointmentSubmitReminder = "appointmentSubmitReminder"
)

// DispatchID builds the deterministic id "<contentKey>_<recipientId>" with
// "_<correlationId>" appended when a correlation id is set. Creation and
// deletion both derive the id here, so a dispatch can be replaced or
// cancelled without a lookup.
func DispatchID(contentKey, recipientID, correlationID string) string {
	parts := []string{contentKey, recipientID}
	if correlationID != "" {
		parts = append(parts, correlationID)
	}
	return strings.Join(parts, "_")
}
