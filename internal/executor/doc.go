// Package executor evaluates a parsed GraphQL operation against a schema
// and a Runtime, producing a response tree shaped exactly like the request.
//
// Execution is demand-driven and breadth-first. Fields are collected from
// the requested selection set (honoring aliases, fragments and
// @skip/@include); a field that is not requested is never resolved, so a
// relationship fetch only happens when the caller asked for that field.
// Synchronous fields resolve inline from the parent value. Fields marked
// Async in the schema are queued, and each depth is flushed with a single
// BatchResolveAsync call whose implementation may fan out concurrently.
//
// Errors are attached to the response path of the failing field and never
// abort sibling fields. A null produced for a Non-Null field nulls the
// top-level field that owns it; queued work under a nullified prefix is
// discarded before the next flush.
package executor
