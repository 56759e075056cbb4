// Package bridge owns the event-to-macro bridging core.
//
// Ownership boundary:
// - per-session macro registry
// - recursive field-to-macro mapping
// - spool event handling and dispatch ordering
// - session supervision and reconnect
//
// Lifecycle order per session:
// - connect -> enumerate macros -> subscribe -> drain events
//
// - the registry is immutable within a session and rebuilt on reconnect.
//
// - events are handled one at a time; the load-complete macro fires only
//   after every field invocation of its event.
package bridge
