// Package dispatch carries typed requests between execution contexts.
//
// # Messages
//
// A request is an Envelope {id, type, payload}; its answer is a Reply
// {id, ok, answer, error} with the same id. Types are EXPLAIN, QUICK_ACTION and
// SHOW_FROM_MENU.
//
// # Ports
//
// A Conn is the requesting end of a port and a ServerConn the handling end.
// NewPipe connects both in-process. HTTPConn is a Conn that posts envelopes to a
// gateway's /api/dispatch endpoint.
//
// # Correlation
//
// Client assigns a fresh uuid to every call and parks a single-slot channel under
// it. A reader goroutine routes each reply to its channel and removes the entry,
// so a reply settles its call at most once. Calls settle on the reply, on their
// timeout (30s by default) or when the connection closes; the last two surface
// as *TransportError. Replies with ok=false surface as *RemoteError.
//
// Server answers every envelope exactly once, from its own goroutine. Unknown
// types and panicking handlers produce failure replies.
package dispatch
