// Package events publishes CRM entity changes to Kafka and consumes them back.
package events

import "time"

type EventType string

const (
	VendorCreated        EventType = "vendor_created"
	VendorUpdated        EventType = "vendor_updated"
	VendorDeleted        EventType = "vendor_deleted"
	ResourceCreated      EventType = "resource_created"
	ResourceUpdated      EventType = "resource_updated"
	ResourceDeleted      EventType = "resource_deleted"
	JobCreated           EventType = "job_created"
	JobUpdated           EventType = "job_updated"
	JobDeleted           EventType = "job_deleted"
	ProcessFlowCreated   EventType = "process_flow_created"
	ProcessFlowUpdated   EventType = "process_flow_updated"
	ProcessStatusChanged EventType = "process_status_changed"
	ProcessFlowDeleted   EventType = "process_flow_deleted"
	CategoryCreated      EventType = "file_category_created"
	CategoryUpdated      EventType = "file_category_updated"
	CategoryDeleted      EventType = "file_category_deleted"
	FileUploaded         EventType = "file_uploaded"
	FileUpdated          EventType = "file_updated"
	FileDeleted          EventType = "file_deleted"
	SkillAdded           EventType = "skill_added"
	SnapshotReloaded     EventType = "snapshot_reloaded"
)

// Event is the message value written to Kafka. The message key is EntityID.
type Event struct {
	Type     EventType `json:"type"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// Discard drops every event. It stands in for the producer when no brokers
// are configured.
type Discard struct{}

func (Discard) Produce(EventType, string, any) {}
