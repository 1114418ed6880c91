package domain

import "time"

// ActivityType enumerates event-log entry kinds.
type ActivityType string

const (
	ActivityIntake          ActivityType = "intake"
	ActivityStatusUpdate    ActivityType = "status_update"
	ActivityNote            ActivityType = "note"
	ActivityDiagnosis       ActivityType = "diagnosis"
	ActivityCustomerContact ActivityType = "customer_contact"
	ActivityWorkshop        ActivityType = "workshop"
	ActivityRejected        ActivityType = "rejected"
	ActivityReturned        ActivityType = "returned"
	ActivityPickedUp        ActivityType = "picked_up"
	ActivityDeviceNote      ActivityType = "device_note"
	ActivityAssignment      ActivityType = "assignment"
	ActivityReady           ActivityType = "ready"
)

// TaskActivity is an append-only audit trail entry. Entries are never
// updated or deleted; ordering is by timestamp with insertion id breaking
// ties.
type TaskActivity struct {
	ID        int64
	TaskID    string
	UserID    *string
	Type      ActivityType
	Message   string
	Timestamp time.Time
}
