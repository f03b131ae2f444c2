package helpdesk

// Event types published on the request events channel.
const (
	EventRequestCreated    = "request_created"
	EventRequestResolved   = "request_resolved"
	EventRequestUnresolved = "request_unresolved"
)

// Notification kinds published on the notifications channel.
const (
	NotificationSupervisor = "supervisor_new_request"
	NotificationCustomer   = "customer_resolution"
)

// RequestEvent is published whenever a request is created or closed.
// Request is populated for creation events; transitions carry only the ID.
type RequestEvent struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id"`
	Status    Status       `json:"status"`
	AtMs      int64        `json:"at_ms"`
	Request   *HelpRequest `json:"request,omitempty"`
}

// Notification is a simulated outbound message. Nothing is delivered; the
// record is published so a supervisor console or test harness can observe it.
type Notification struct {
	Kind           string `json:"kind"`
	RequestID      string `json:"request_id,omitempty"`
	CallerIdentity string `json:"caller_identity"`
	Question       string `json:"question,omitempty"`
	Message        string `json:"message,omitempty"`
	SentAtMs       int64  `json:"sent_at_ms"`
}

// EventTypeForStatus maps a terminal status to its event type.
func EventTypeForStatus(status Status) string {
	switch status {
	case StatusResolved:
		return EventRequestResolved
	case StatusUnresolved:
		return EventRequestUnresolved
	default:
		return EventRequestCreated
	}
}
