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

package govern

import (
	"crypto/tls"
	"net"
)

// Conn wraps a handshaked *tls.Conn and fragments every Write into
// record-governed slices before handing each one to the TLS engine,
// instead of a single unbounded Write call. crypto/tls itself splits any
// single Write into whole records capped at MaxRecord; choosing a
// smaller slice per call is this module's equivalent of choosing a
// smaller TLS record boundary, since each call produces at least one
// record sized to fit what was given to it.
type Conn struct {
	*tls.Conn

	gov          *Governor
	minimumRTT   uint32
	writeErrLock bool
}

// Wrap returns conn with its Write path routed through a fresh record-
// size Governor. Handshake must already be complete: the governor's
// first Prepare call reads the live cipher suite off conn's
// ConnectionState.
func Wrap(conn *tls.Conn, minimumRTT uint32) *Conn {
	return &Conn{
		Conn:       conn,
		gov:        New(),
		minimumRTT: minimumRTT,
	}
}

// Governor exposes the wrapped connection's record-size governor, e.g.
// for a caller implementing prepare_for_latency_optimized_write.
func (c *Conn) Governor() *Governor {
	return c.gov
}

// Write fragments p into record-sized chunks chosen by the governor and
// feeds each chunk to the underlying TLS engine in turn. A short write
// reported by the engine without an error (the only way crypto/tls
// signals a write was interrupted by a prior fatal record on the read
// side) is treated as a write-time engine failure: the error flag
// latches so the caller's next operation observes failure too.
func (c *Conn) Write(p []byte) (int, error) {
	if c.writeErrLock {
		return 0, net.ErrClosed
	}

	nc := c.Conn.NetConn()
	c.gov.Prepare(nc, c.Conn.ConnectionState().CipherSuite, c.minimumRTT)

	// Decide resamples TCP_INFO and promotes the mode to TINY or LARGE
	// before RecordSize consumes it; without this, every write would
	// size off the post-Prepare NEEDS_UPDATE state and LARGE could
	// never be reached.
	c.gov.Decide(nc)

	size := c.gov.RecordSize()
	if size <= 0 {
		size = 1400
	}

	total := 0
	for total < len(p) {
		start := total
		end := start + size
		if end > len(p) {
			end = len(p)
		}

		n, err := c.Conn.Write(p[start:end])
		total += n

		if err != nil {
			return total, err
		}

		if n != end-start {
			// A short write with no error would desync record
			// boundaries from the caller's view of progress; the
			// engine only does this after a fatal read-side error.
			c.writeErrLock = true
			return total, net.ErrClosed
		}
	}

	return total, nil
}

// PrepareForLatencyOptimizedWrite samples live TCP state and returns the
// suggested write ceiling for the next write, or govern.NoHint if no cap
// should be applied.
func (c *Conn) PrepareForLatencyOptimizedWrite() int {
	return c.gov.Decide(c.Conn.NetConn())
}
