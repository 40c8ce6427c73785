// Package sse streams scheduler events to HTTP clients as Server-Sent Events.
//
// A Hub fans frames out to registered clients by glob pattern on the client
// id. Subscribers of a run use ids of the form run:<runId>:<uuid>, and an
// EventSink attached to a Coordinator broadcasts each event to RunPattern.
package sse
