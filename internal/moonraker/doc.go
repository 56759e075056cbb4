// Package moonraker owns the control-plane event-bus collaborator.
//
// Ownership boundary:
// - websocket JSON-RPC session lifecycle
// - request/response correlation and named-notification dispatch
// - fire-and-forget script submission
//
// One reader goroutine per session; notification handlers run on it, so
// a single registered handler observes events serially.
package moonraker
