// Package log provides structured event logging for the provisioner
// registry.
//
// The registry emits an [Event] for every committing mutation: node
// admissions and resets, key adds and deletes, cascade deletions, binding
// changes. Applications receive events through the [Logger] interface and
// decide what to do with them: discard ([NoopLogger]), forward to log/slog
// ([SlogAdapter]), write a compact CBOR stream to disk ([FileLogger]) or
// fan out to several of these ([MultiLogger]).
//
// Events never carry key material; indices and addresses only.
package log
