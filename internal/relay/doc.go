// Package relay implements the room membership registry and the message
// fan-out engine of the relay, together with the per-connection session loop
// that ties a live connection to a room.
//
// The Registry is the single source of truth for room membership. Fanout
// takes a snapshot of a room's members and delivers one message to each of
// them concurrently; a failed delivery removes that member. Sessions run one
// loop per connection: join, receive, broadcast, leave.
package relay
