// Package persistence provides durable storage for the provisioner
// registry.
//
// The registry itself only emits write-through notifications; this package
// turns them into state on disk. [SinkAdapter] implements registry.Sink by
// mirroring each notification into an in-memory snapshot and rewriting the
// snapshot file. [SnapshotStore] owns the file: a single CBOR document with
// integer-keyed structs. [Restore] replays a loaded snapshot into a fresh
// store at startup.
//
// Write failures are logged through log/slog and never surfaced to the
// registry's callers; the sink contract is fire-and-forget.
package persistence
