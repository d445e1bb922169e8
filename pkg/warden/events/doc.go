// Package events receives infractions pushed by the Warden authority.
//
// The authority notifies subscribed clients as soon as it records an
// infraction, so suspensions take effect before the next pull. Two
// transports are supported:
//
//   - tcp: each connection carries a stream of concatenated JSON
//     infraction objects
//   - udp: each datagram carries exactly one JSON infraction
//
// Every decoded infraction is handed to a Sink, normally the client's
// InfractionCache. Nothing is sent back. A malformed message is logged
// and dropped; on TCP the offending connection is closed because the
// stream can no longer be framed.
package events
