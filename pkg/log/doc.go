/*
Package log provides structured logging for the codegraph engine using
zerolog.

A single process-wide logger is built once via Init and configured with a
level and an output format (JSON for production, console for local
development). Every subsystem derives a child logger from it with one of the
With* helpers, so every log line a subsystem emits carries the structured
field a reader debugging that subsystem will want: WithComponent for a
package name, WithTxID/WithNodeID/WithSnapshotID for storage and transaction
operations, WithToolName/WithSessionID for the tool executor and
orchestrator.
*/
package log
