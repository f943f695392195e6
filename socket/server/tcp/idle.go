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

package tcp

import (
	"net"
	"sync/atomic"
	"time"

	libsck "github.com/nabbar/socket-tls/socket"
)

// idleConn stamps the time of the last Read or Write so watchIdle can
// tell how long a connection has sat without activity. This is the
// per-accept substitute for a dedicated timeout wheel (§1 Non-goals).
type idleConn struct {
	net.Conn
	last atomic.Int64
}

func newIdleConn(c net.Conn) *idleConn {
	ic := &idleConn{Conn: c}
	ic.touch()
	return ic
}

func (c *idleConn) touch() {
	c.last.Store(time.Now().UnixNano())
}

func (c *idleConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.touch()
	return n, err
}

func (c *idleConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.touch()
	return n, err
}

func (c *idleConn) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.last.Load()))
}

// watchIdle closes ctx once ic has sat idle for timeout, independent of
// whatever the handler is doing with ctx (it may be blocked on Done()
// alone, never touching Read/Write). It exits as soon as ctx is closed
// by any other path.
func watchIdle(ctx libsck.Context, ic *idleConn, timeout time.Duration) {
	interval := timeout / 4
	if interval <= 0 || interval > 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}

	tck := time.NewTicker(interval)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tck.C:
			if ic.idleFor() >= timeout {
				_ = ctx.Close()
				return
			}
		}
	}
}
