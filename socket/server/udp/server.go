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

// Package udp is the connectionless fallback server for the datagram UDP
// variants: no handshake, no record governor, one Handler invocation per
// datagram received.
package udp

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/socket-tls/socket"
	sckcfg "github.com/nabbar/socket-tls/socket/config"
)

// ServerUdp serves one Handler invocation per datagram received on a
// single net.PacketConn.
type ServerUdp interface {
	libsck.Server

	// Close stops the listener immediately.
	Close() error
}

type serverUDP struct {
	mu sync.Mutex

	network libptc.NetworkProtocol
	address string

	update  libsck.UpdateConn
	handler libsck.Handler

	pc           net.PacketConn
	listenCancel context.CancelFunc
	wg           sync.WaitGroup

	running atomic.Bool
	gone    atomic.Bool
	conns   atomic.Int64

	fctErr  atomic.Value // libsck.FuncError
	fctInfo atomic.Value // libsck.FuncInfo
}

// New validates cfg, resolving it to a bindable UDP endpoint, and returns
// an unstarted server. handler runs once per received datagram.
func New(upd libsck.UpdateConn, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerUdp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Network.IsUDP() {
		return nil, ErrInvalidAddress
	}

	s := &serverUDP{
		network: cfg.Network,
		address: cfg.Address,
		update:  upd,
		handler: handler,
	}
	s.gone.Store(true)

	return s, nil
}

func (s *serverUDP) emitErr(errs ...error) {
	if f, ok := s.fctErr.Load().(libsck.FuncError); ok && f != nil {
		f(errs...)
	}
}

func (s *serverUDP) emitInfo(local, remote net.Addr, state libsck.ConnState) {
	if f, ok := s.fctInfo.Load().(libsck.FuncInfo); ok && f != nil {
		f(local, remote, state)
	}
}

func (s *serverUDP) RegisterFuncError(f libsck.FuncError) {
	s.fctErr.Store(f)
}

func (s *serverUDP) RegisterFuncInfo(f libsck.FuncInfo) {
	s.fctInfo.Store(f)
}

func (s *serverUDP) IsRunning() bool {
	return s.running.Load()
}

func (s *serverUDP) IsGone() bool {
	return s.gone.Load()
}

func (s *serverUDP) OpenConnections() int64 {
	return s.conns.Load()
}

func (s *serverUDP) Listener() (net.Listener, string, error) {
	s.mu.Lock()
	pc := s.pc
	addr := s.address
	s.mu.Unlock()

	if pc != nil {
		addr = pc.LocalAddr().String()
	}

	return nil, addr, nil
}

// Listen binds the configured address and reads datagrams until ctx is
// canceled or ReadFrom returns an unrecoverable error. Each datagram is
// handed to its own Handler goroutine over a one-shot net.Conn adapter.
func (s *serverUDP) Listen(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		s.emitErr(err)
		return err
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, s.network.Code(), s.address)
	if err != nil {
		s.emitErr(err)
		return err
	}

	lctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.pc = pc
	s.listenCancel = cancel
	s.mu.Unlock()

	s.running.Store(true)
	s.gone.Store(false)

	stop := make(chan struct{})
	go func() {
		select {
		case <-lctx.Done():
			_ = pc.Close()
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		cancel()

		s.mu.Lock()
		s.pc = nil
		s.listenCancel = nil
		s.mu.Unlock()

		_ = pc.Close()
		s.running.Store(false)

		s.wg.Wait()
		s.gone.Store(true)
	}()

	buf := make([]byte, 65507)
	for {
		n, remote, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-lctx.Done():
				return lctx.Err()
			default:
				s.emitErr(err)
				return err
			}
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		s.wg.Add(1)
		go s.handle(lctx, pc, pc.LocalAddr(), remote, payload)
	}
}

// Shutdown stops reading new datagrams and waits, up to ctx's deadline,
// for every in-flight handler to finish.
func (s *serverUDP) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.listenCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the listener immediately. Safe to call more than once.
func (s *serverUDP) Close() error {
	s.mu.Lock()
	cancel := s.listenCancel
	pc := s.pc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pc != nil {
		_ = pc.Close()
	}

	return nil
}

func (s *serverUDP) handle(parent context.Context, pc net.PacketConn, local, remote net.Addr, payload []byte) {
	s.conns.Add(1)
	defer s.conns.Add(-1)
	defer s.wg.Done()

	dc := &datagramConn{pc: pc, local: local, remote: remote, buf: payload}

	if s.update != nil {
		s.update(dc)
	}

	s.emitInfo(local, remote, libsck.ConnectionNew)

	sckCtx := libsck.NewContext(dc, parent)

	defer func() {
		_ = sckCtx.Close()
		s.emitInfo(local, remote, libsck.ConnectionClose)
	}()

	if s.handler != nil {
		s.emitInfo(local, remote, libsck.ConnectionHandler)
		s.handler.Handle(sckCtx)
	}
}

// datagramConn adapts a single received datagram to net.Conn: Read drains
// the buffered payload once and returns io.EOF after, Write replies to
// the datagram's source address on the shared net.PacketConn.
type datagramConn struct {
	pc     net.PacketConn
	local  net.Addr
	remote net.Addr
	buf    []byte
	off    int
	mu     sync.Mutex
}

func (c *datagramConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.off >= len(c.buf) {
		return 0, io.EOF
	}

	n := copy(p, c.buf[c.off:])
	c.off += n
	return n, nil
}

func (c *datagramConn) Write(p []byte) (int, error) {
	return c.pc.WriteTo(p, c.remote)
}

func (c *datagramConn) Close() error                       { return nil }
func (c *datagramConn) LocalAddr() net.Addr                { return c.local }
func (c *datagramConn) RemoteAddr() net.Addr               { return c.remote }
func (c *datagramConn) SetDeadline(t time.Time) error      { return nil }
func (c *datagramConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *datagramConn) SetWriteDeadline(t time.Time) error { return nil }
