// Package hub is the distribution and access-control substrate the gateway
// ships with.
//
// A Hub fans published messages out to in-process subscriptions and issues
// HS256 JWT read credentials scoped to a channel list. Subscribers attach
// over HTTP:
//
//	GET /hub/events?subscribeKey=K&channels=a,b   server-sent events
//	GET /hub/ws?subscribeKey=K&channels=a,b       WebSocket, one JSON Event per frame
//
// The credential travels in an "Authorization: Bearer" header or, for
// browser EventSource clients that cannot set headers, in the token query
// parameter. Streams end when the credential expires.
package hub
