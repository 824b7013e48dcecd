/*
Package events provides an in-memory, buffered pub/sub broker used to notify
in-process listeners of engine events without coupling the publisher to its
subscribers. pkg/txn publishes transaction commit/abort events and
pkg/vectortxn publishes vector-transaction commit/abort and deadlock-broken
events; the snapshot, checkpoint and segment event types are declared but
no code publishes them. pkg/natsutil can re-publish broker events to an
external NATS subject for out-of-process watchers.

Publish is non-blocking for the publisher: events are buffered on an
internal channel and fanned out to subscribers on a dedicated goroutine, and
a slow or stalled subscriber only drops its own events rather than
back-pressuring the broker.
*/
package events
