// Package broadcaster runs the dailystoic node: it waits for the relay to
// report enough peers, then publishes a random quote on a schedule and in
// answer to every well-formed request.
//
// Lifecycle:
//
//	Initializing -> Connecting -> Ready -> Running -> ShuttingDown
//	                    |
//	                    +-> Failed (ErrNotReady)
//
// Inbound messages never run business logic on the transport's delivery
// goroutine: the handler filters by topic, copies the payload and queues
// it. A separate drain activity decodes requests in arrival order.
package broadcaster
