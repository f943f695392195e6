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

// Package server dispatches a declarative config.Server to the
// protocol-specific server implementation (socket/server/tcp,
// socket/server/udp, socket/server/unix) that can serve it.
package server

import (
	libsck "github.com/nabbar/socket-tls/socket"
	sckcfg "github.com/nabbar/socket-tls/socket/config"
	scktcp "github.com/nabbar/socket-tls/socket/server/tcp"
	sckudp "github.com/nabbar/socket-tls/socket/server/udp"
	sckunx "github.com/nabbar/socket-tls/socket/server/unix"
)

// Server is the interface returned by New: the shared libsck.Server
// contract plus the immediate, non-graceful Close every protocol-
// specific server implementation in this module also exposes.
type Server interface {
	libsck.Server

	// Close stops the server immediately, without waiting for
	// in-flight connections to finish; Shutdown is the graceful
	// counterpart.
	Close() error
}

// New validates cfg and returns the protocol-specific Server
// implementation selected by cfg.Network: socket/server/tcp for any
// TCP variant, socket/server/udp for any UDP variant, socket/server/
// unix for unix/unixgram. update, when non-nil, is forwarded to the
// chosen implementation to tune each accepted net.Conn before it is
// handed to the TLS/handshake layer.
func New(update libsck.UpdateConn, handler libsck.Handler, cfg sckcfg.Server) (Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var h libsck.HandlerFunc
	if handler != nil {
		h = handler.Handle
	}

	switch {
	case cfg.Network.IsTCP():
		return scktcp.New(update, h, cfg)
	case cfg.Network.IsUDP():
		return sckudp.New(update, h, cfg)
	case cfg.Network.IsUnix():
		return sckunx.New(update, h, cfg)
	default:
		return nil, sckcfg.ErrInvalidProtocol
	}
}
