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

// DefaultBufferSize is the size of the read buffer allocated per
// connection when a caller does not provide its own.
const DefaultBufferSize = 32 * 1024

// EOL is the line terminator used by the line-oriented Once helpers.
const EOL = byte('\n')

// ConnState marks a point in a connection's lifecycle, reported to a
// FuncInfo callback.
type ConnState uint8

const (
	// ConnectionDial is emitted by a client immediately before dialing.
	ConnectionDial ConnState = iota
	// ConnectionNew is emitted once a connection (dialed or accepted) is established.
	ConnectionNew
	// ConnectionRead is emitted while a connection's incoming stream is being read.
	ConnectionRead
	// ConnectionCloseRead is emitted when the incoming half of a connection is closed.
	ConnectionCloseRead
	// ConnectionHandler is emitted while the registered HandlerFunc runs.
	ConnectionHandler
	// ConnectionWrite is emitted while a connection's outgoing stream is being written.
	ConnectionWrite
	// ConnectionCloseWrite is emitted when the outgoing half of a connection is closed.
	ConnectionCloseWrite
	// ConnectionClose is emitted once a connection is fully closed.
	ConnectionClose
)

// String returns a human-readable label for s, or "unknown connection
// state" for any value outside the defined range.
func (s ConnState) String() string {
	switch s {
	case ConnectionDial:
		return "Dial Connection"
	case ConnectionNew:
		return "New Connection"
	case ConnectionRead:
		return "Read Incoming Stream"
	case ConnectionCloseRead:
		return "Close Incoming Stream"
	case ConnectionHandler:
		return "Run HandlerFunc"
	case ConnectionWrite:
		return "Write Outgoing Steam"
	case ConnectionCloseWrite:
		return "Close Outgoing Stream"
	case ConnectionClose:
		return "Close Connection"
	default:
		return "unknown connection state"
	}
}
