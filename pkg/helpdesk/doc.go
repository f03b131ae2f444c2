// Package helpdesk provides the data model, Redis schema, and store clients for
// frontdesk help requests and the learned knowledge base.
//
// # Overview
//
// Two collections make up the shared state of a frontdesk instance:
//
// Help requests are escalations raised when a caller's question has no reusable
// answer. A request starts pending and is closed exactly once, either by a
// supervisor answer (resolved) or by the timeout sweep (unresolved).
//
// Knowledge entries are question/answer pairs learned from resolved requests.
// Entries are append-only: nothing in this package mutates or deletes one.
//
// # Redis Schema
//
// All keys are namespaced by instance name: frontdesk:{instance}:{entity}...
//
// Requests: frontdesk:{instance}:request:{request_id} (hash)
// Request timeline: frontdesk:{instance}:requests (zset, score = created_at_ms)
// Status index: frontdesk:{instance}:requests:{status} (set of request ids)
// Knowledge entries: frontdesk:{instance}:knowledge:{entry_id} (hash)
// Knowledge order: frontdesk:{instance}:knowledge_order (list, insertion order)
//
// Pub/Sub channels:
//
// Request events: frontdesk:{instance}:request_events
// Notifications: frontdesk:{instance}:notifications
//
// # Atomicity
//
// Status changes go through Transition, a Lua compare-and-set on the request's
// current status. ResolveWithEntry performs the resolve transition and the
// knowledge entry append in a single script so an observer never sees a
// resolved request without its learned entry.
//
// # Usage Example
//
//	client, err := helpdesk.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	id, err := client.CreateRequest(ctx, &helpdesk.HelpRequest{
//		Question:       "Do you offer keratin treatments?",
//		CallerIdentity: "+15550100",
//		Status:         helpdesk.StatusPending,
//		CreatedAtMs:    time.Now().UnixMilli(),
//	})
package helpdesk
