package natsutil

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/graphmind/codegraph/pkg/events"
)

// EventSubject is the subject engine events are published to for
// out-of-process observers (audit logs, dashboards, other services).
const EventSubject = "codegraph.events"

// ProgressSubject names a subject for orchestrator progress notifications;
// no code in this module publishes to it.
const ProgressSubject = "codegraph.orchestrator.progress"

// PublishEvent fans an engine event out over NATS, for deployments that
// want commit/merge/deadlock notifications visible outside the process.
func PublishEvent(ctx context.Context, nc *nats.Conn, ev *events.Event) error {
	return Publish(ctx, nc, EventSubject, ev)
}

// BridgeBroker subscribes to every event on a broker and republishes it to
// NATS, until ctx is cancelled.
func BridgeBroker(ctx context.Context, nc *nats.Conn, broker *events.Broker) {
	sub := broker.Subscribe()
	go func() {
		defer broker.Unsubscribe(sub)
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				_ = PublishEvent(ctx, nc, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}
