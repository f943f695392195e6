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

package socket

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	libaddr "github.com/nabbar/socket-tls/network/addr"
)

// connContext is the concrete Context every protocol-specific server and
// client in this module hands to a Handler. It wraps a single net.Conn
// (plain or already TLS-wrapped by the caller) with the liveness and
// cancellation bookkeeping Context promises. Done/Err/Value are backed
// by a context.Context derived from whatever parent was passed to
// NewContext (typically the one given to Server.Listen), so canceling
// the server's listen context tears down every live handler's Context
// exactly like any other context.Context consumer would expect; Close,
// from either side, cancels the same derived context.
type connContext struct {
	net.Conn

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	err       error
	closeOnce sync.Once

	// peer-name cache (§3 invariant 5): peerOverride wins when set
	// explicitly via SetPeerName; otherwise peerCache is reused as long
	// as the live RemoteAddr compares equal to peerCacheAddr, so a
	// handler calling RemoteHost in a tight loop never reformats.
	peerOverride  string
	peerCache     string
	peerCacheAddr net.Addr
}

// NewContext wraps conn into a Context whose cancellation is derived
// from parent. socket/server/tcp, socket/server/udp and socket/server/unix
// call this once a connection (plain or TLS) is ready to be handed to a Handler;
// parent is typically the context passed to Server.Listen, so a server
// shutdown via context cancellation propagates to every open handler.
// A nil parent defaults to context.Background().
func NewContext(conn net.Conn, parent context.Context) Context {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)
	return &connContext{
		Conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *connContext) IsConnected() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

func (c *connContext) LocalHost() string {
	if a := c.Conn.LocalAddr(); a != nil {
		return a.String()
	}
	return ""
}

// RemoteHost returns the peer-name cache's current value: an explicit
// SetPeerName override if one is active, otherwise a numeric host:port
// form derived from RemoteAddr and reused as long as the live address
// still compares equal (network/addr.Compare) to the one the cache was
// built from.
func (c *connContext) RemoteHost() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peerOverride != "" {
		return c.peerOverride
	}

	a := c.Conn.RemoteAddr()
	if a == nil {
		return ""
	}

	if c.peerCacheAddr != nil && libaddr.Compare(a, c.peerCacheAddr) == 0 {
		return c.peerCache
	}

	c.peerCacheAddr = a
	if port := libaddr.Port(a); port >= 0 {
		c.peerCache = net.JoinHostPort(libaddr.NumericHost(a), strconv.Itoa(port))
	} else {
		c.peerCache = libaddr.NumericHost(a)
	}

	return c.peerCache
}

// SetPeerName overrides the peer-name cache (§3 invariant 5): it stays
// in effect until cleared with an empty name or the Context is closed.
func (c *connContext) SetPeerName(name string) {
	c.mu.Lock()
	c.peerOverride = name
	if name == "" {
		c.peerCache = ""
		c.peerCacheAddr = nil
	}
	c.mu.Unlock()
}

func (c *connContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *connContext) Err() error {
	c.mu.Lock()
	e := c.err
	c.mu.Unlock()

	if e != nil {
		return e
	}

	return c.ctx.Err()
}

// Value forwards to the parent context given to NewContext, letting a
// handler read request-scoped values the same way any context.Context
// consumer would.
func (c *connContext) Value(key any) any {
	return c.ctx.Value(key)
}

func (c *connContext) Deadline(d time.Duration) error {
	if d <= 0 {
		return c.Conn.SetDeadline(time.Time{})
	}
	return c.Conn.SetDeadline(time.Now().Add(d))
}

// Close marks the context done on its first call and closes the
// underlying connection; later calls return the error the first close
// produced, matching net.Conn's documented double-close behavior.
func (c *connContext) Close() error {
	var e error

	c.closeOnce.Do(func() {
		e = c.Conn.Close()

		c.mu.Lock()
		c.err = e
		c.peerOverride = ""
		c.peerCache = ""
		c.peerCacheAddr = nil
		c.mu.Unlock()

		c.cancel()
	})

	c.mu.Lock()
	e = c.err
	c.mu.Unlock()

	return e
}
