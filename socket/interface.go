/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package socket defines the shared contract implemented by every
// protocol-specific client and server in this module: the connection
// lifecycle, the per-connection Context handed to handlers, and the
// hooks a caller registers to observe errors and state transitions.
//
// The non-blocking TCP+TLS bridge lives in socket/client/tcp and
// socket/server/tcp; this package only carries the vocabulary both
// sides, and every other protocol variant, are built from.
package socket

import (
	"context"
	"net"
	"time"
)

// UpdateConn lets a caller tune a freshly dialed or accepted net.Conn
// (deadlines, keep-alive, buffer sizes) before it is handed to the
// TLS/handshake layer.
type UpdateConn func(conn net.Conn)

// FuncError receives the errors a connection produces during its
// lifetime, already passed through ErrorFilter by the caller.
type FuncError func(errs ...error)

// FuncInfo is called on every ConnState transition for a connection.
type FuncInfo func(local, remote net.Addr, state ConnState)

// Context is the per-connection handle passed to a Handler. It exposes
// the raw stream plus the bookkeeping a handler needs: liveness,
// addressing, and cancellation.
type Context interface {
	net.Conn

	// IsConnected reports whether the connection is still usable.
	IsConnected() bool

	// LocalHost and RemoteHost return the string form of the local and
	// remote addresses, or "" if unknown. RemoteHost is backed by a
	// peer-name cache (§3 invariant 5): it is invalidated only by an
	// explicit SetPeerName call or by Close, never by merely reading it
	// again.
	LocalHost() string
	RemoteHost() string

	// SetPeerName overrides the cached peer name RemoteHost reports,
	// e.g. once a higher layer resolves a name the raw socket address
	// cannot express (a virtual host behind a proxy protocol header). An
	// empty name clears the override and falls back to the address-
	// derived cache.
	SetPeerName(name string)

	// Done, Err, and Value mirror context.Context, canceled when the
	// connection's handler should stop (including when the server's
	// own Listen context is canceled).
	Done() <-chan struct{}
	Err() error
	Value(key any) any

	// Deadline applies a read/write deadline relative to now; zero
	// disables it.
	Deadline(d time.Duration) error
}

// Handler processes one accepted or dialed connection.
type Handler interface {
	Handle(ctx Context)
}

// HandlerFunc is a Handler implemented as a plain function, the shape
// every server and client package in this module expects.
type HandlerFunc func(ctx Context)

func (f HandlerFunc) Handle(ctx Context) {
	if f != nil {
		f(ctx)
	}
}

// Response is invoked with the raw reply stream after Client.Once
// writes a request; it lets a caller consume a response without
// standing up a full Handler.
type Response func(r net.Conn)

// Server is implemented by every protocol-specific server
// (socket/server/tcp and friends) and by the dispatching constructor
// in socket/server.
type Server interface {
	// RegisterFuncError registers the sink for connection errors.
	RegisterFuncError(f FuncError)

	// RegisterFuncInfo registers the sink for connection state
	// transitions.
	RegisterFuncInfo(f FuncInfo)

	// Listen binds (if needed) and serves until ctx is canceled or an
	// unrecoverable error occurs.
	Listen(ctx context.Context) error

	// Shutdown stops accepting new connections and waits, up to ctx's
	// deadline, for in-flight connections to finish.
	Shutdown(ctx context.Context) error

	// IsRunning reports whether Listen is currently serving.
	IsRunning() bool

	// IsGone reports whether the server has fully stopped after a
	// Shutdown/Listen exit.
	IsGone() bool

	// OpenConnections returns the number of connections currently
	// being served.
	OpenConnections() int64

	// Listener returns the underlying net.Listener (nil for
	// connectionless protocols) and the server's address: the configured
	// one for the TCP and unix servers, the bound one for the UDP server
	// once it listens. The TCP and unix servers return an error if they
	// have not started listening yet; the UDP server never does.
	Listener() (net.Listener, string, error)
}

// Client is implemented by the clients the dispatching constructor in
// socket/client returns. socket/client/tcp's ClientTCP does not satisfy
// it directly (its Once takes an io.Reader); socket/client wraps it in
// an adapter.
type Client interface {
	net.Conn

	// Connect dials the configured address; a TLS client performs the
	// handshake as part of this call.
	Connect(ctx context.Context) error

	// RegisterFuncError registers the sink for connection errors.
	RegisterFuncError(f FuncError)

	// Once writes p and passes the reply stream to fct, performing a
	// one-shot Connect/Write/response/Close cycle.
	Once(ctx context.Context, p []byte, fct Response) (int, error)
}
