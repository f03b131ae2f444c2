package helpdesk

import "fmt"

// Redis key pattern helpers
//
// Key pattern: frontdesk:{instance_name}:{entity}:{id}
// Channel pattern: frontdesk:{instance_name}:{event_type}

// RequestKey returns the Redis key for a help request hash.
// Pattern: frontdesk:{instance_name}:request:{request_id}
func RequestKey(instanceName, requestID string) string {
	return fmt.Sprintf("frontdesk:%s:request:%s", instanceName, requestID)
}

// RequestKeyPrefix returns the prefix shared by all request hashes.
// Used with SCAN for short-ID resolution.
func RequestKeyPrefix(instanceName string) string {
	return fmt.Sprintf("frontdesk:%s:request:", instanceName)
}

// RequestTimelineKey returns the Redis key for the zset of all request IDs
// scored by creation time.
// Pattern: frontdesk:{instance_name}:requests
func RequestTimelineKey(instanceName string) string {
	return fmt.Sprintf("frontdesk:%s:requests", instanceName)
}

// StatusIndexKey returns the Redis key for the set of request IDs in a status.
// Pattern: frontdesk:{instance_name}:requests:{status}
func StatusIndexKey(instanceName string, status Status) string {
	return fmt.Sprintf("frontdesk:%s:requests:%s", instanceName, status)
}

// KnowledgeKey returns the Redis key for a knowledge entry hash.
// Pattern: frontdesk:{instance_name}:knowledge:{entry_id}
func KnowledgeKey(instanceName, entryID string) string {
	return fmt.Sprintf("frontdesk:%s:knowledge:%s", instanceName, entryID)
}

// KnowledgeOrderKey returns the Redis key for the list of entry IDs in insertion order.
// Pattern: frontdesk:{instance_name}:knowledge_order
func KnowledgeOrderKey(instanceName string) string {
	return fmt.Sprintf("frontdesk:%s:knowledge_order", instanceName)
}

// RequestEventsChannel returns the Pub/Sub channel for request lifecycle events.
// Pattern: frontdesk:{instance_name}:request_events
func RequestEventsChannel(instanceName string) string {
	return fmt.Sprintf("frontdesk:%s:request_events", instanceName)
}

// NotificationsChannel returns the Pub/Sub channel for supervisor and caller notifications.
// Pattern: frontdesk:{instance_name}:notifications
func NotificationsChannel(instanceName string) string {
	return fmt.Sprintf("frontdesk:%s:notifications", instanceName)
}
