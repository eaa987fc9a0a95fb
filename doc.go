// Package quillback implements the consumer side of an asynchronous
// structured-logging pipeline: a single backend worker goroutine that
// drains byte queues from many producer threads, reconstructs and formats
// log events, merges them into global timestamp order, and dispatches them
// to sinks.
//
// Producers push fixed-layout records onto a queue.Queue; the backend
// (package backend) decodes them through transit.DrainProducer, resolves
// metadata/loggers/decoders through the registry package, converts TSC
// timestamps through clock.Clock, and writes formatted lines to whatever
// registry.Sink implementations are attached (package sinks has file,
// network, and in-memory reference sinks). Producer-side argument encoding,
// concrete queue byte layout beyond the fixed header, and the message
// placeholder-expansion engine are deliberately out of scope; this module
// consumes those through collaborator interfaces.
package quillback
