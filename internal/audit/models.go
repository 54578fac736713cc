// Package audit records who did what to which donation. Events are emitted
// from the lifecycle engine and identity service and fanned out to a store
// and, when configured, a Kafka topic for downstream consumers.
package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    string
	// ActorDID identifies who performed the action; empty for anonymous
	// operations such as a failed login.
	ActorDID  string
	ActorName string
	// Subject is the document acted on, usually a donation DID.
	Subject   string
	Detail    string
	RequestID string
}

type AuditEvent string

const (
	// Identity events
	EventAccountRegistered AuditEvent = "account_registered"
	EventLoginSucceeded    AuditEvent = "login_succeeded"
	EventLoginFailed       AuditEvent = "login_failed"

	// Registry events
	EventDriverRegistered    AuditEvent = "driver_registered"
	EventRecipientRegistered AuditEvent = "recipient_registered"

	// Donation lifecycle events
	EventDonationCreated   AuditEvent = "donation_created"
	EventUpdateAdded       AuditEvent = "update_added"
	EventCollaboratorAdded AuditEvent = "collaborator_added"
	EventJobAccepted       AuditEvent = "job_accepted"
	EventDonationPickedUp  AuditEvent = "donation_picked_up"
	EventJobCompleted      AuditEvent = "job_completed"
)
