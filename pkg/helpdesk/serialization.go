package helpdesk

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes.
//
// Redis hashes are string-to-string maps. Timestamps are stored as decimal Unix
// milliseconds; a zero resolved_at_ms and an empty supervisor_answer stand for null.

// RequestToHash converts a HelpRequest to a Redis hash.
func RequestToHash(r *HelpRequest) map[string]interface{} {
	return map[string]interface{}{
		"id":                r.ID,
		"question":          r.Question,
		"caller_identity":   r.CallerIdentity,
		"status":            string(r.Status),
		"created_at_ms":     r.CreatedAtMs,
		"resolved_at_ms":    r.ResolvedAtMs,
		"supervisor_answer": r.SupervisorAnswer,
	}
}

// HashToRequest converts a Redis hash to a HelpRequest.
func HashToRequest(hash map[string]string) (*HelpRequest, error) {
	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	var resolvedAtMs int64
	if raw := hash["resolved_at_ms"]; raw != "" {
		resolvedAtMs, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid resolved_at_ms field: %w", err)
		}
	}

	status := Status(hash["status"])
	if err := status.Validate(); err != nil {
		return nil, err
	}

	return &HelpRequest{
		ID:               hash["id"],
		Question:         hash["question"],
		CallerIdentity:   hash["caller_identity"],
		Status:           status,
		CreatedAtMs:      createdAtMs,
		ResolvedAtMs:     resolvedAtMs,
		SupervisorAnswer: hash["supervisor_answer"],
	}, nil
}

// EntryToHash converts a KnowledgeEntry to a Redis hash.
func EntryToHash(e *KnowledgeEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":                      e.ID,
		"question":                e.Question,
		"answer":                  e.Answer,
		"learned_from_request_id": e.LearnedFromRequestID,
		"created_at_ms":           e.CreatedAtMs,
	}
}

// HashToEntry converts a Redis hash to a KnowledgeEntry.
func HashToEntry(hash map[string]string) (*KnowledgeEntry, error) {
	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	return &KnowledgeEntry{
		ID:                   hash["id"],
		Question:             hash["question"],
		Answer:               hash["answer"],
		LearnedFromRequestID: hash["learned_from_request_id"],
		CreatedAtMs:          createdAtMs,
	}, nil
}

// hashArgs flattens a hash map into alternating field/value arguments for
// Lua scripts that call HSET.
func hashArgs(hash map[string]interface{}, fields []string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		args = append(args, field, hash[field])
	}
	return args
}

var entryFields = []string{"id", "question", "answer", "learned_from_request_id", "created_at_ms"}
