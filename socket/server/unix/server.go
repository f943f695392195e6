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

// Package unix is the stream-oriented fallback server for unix domain
// sockets: the same per-connection goroutine model as socket/server/tcp,
// without TLS or the record-size governor, plus ownership/permission
// handling for the socket file.
package unix

import (
	"context"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/socket-tls/socket"
	sckcfg "github.com/nabbar/socket-tls/socket/config"
)

type ServerUnix interface {
	libsck.Server

	// Close stops the listener and removes the socket file.
	Close() error
}

type serverUnix struct {
	mu sync.Mutex

	network   libptc.NetworkProtocol
	address   string
	permFile  os.FileMode
	groupPerm int32

	update  libsck.UpdateConn
	handler libsck.Handler

	idleTimeout time.Duration

	listener     net.Listener
	listenCancel context.CancelFunc
	wg           sync.WaitGroup

	running atomic.Bool
	gone    atomic.Bool
	conns   atomic.Int64

	fctErr  atomic.Value // libsck.FuncError
	fctInfo atomic.Value // libsck.FuncInfo
}

// New validates cfg, resolving it to a unix socket path, and returns an
// unstarted server for unix or unixgram. Listen serves stream
// connections only; for unixgram it returns an error without serving
// any datagram.
func New(upd libsck.UpdateConn, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerUnix, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Network.IsUnix() {
		return nil, ErrInvalidAddress
	}

	s := &serverUnix{
		network:     cfg.Network,
		address:     cfg.Address,
		permFile:    cfg.PermFile.FileMode(),
		groupPerm:   cfg.GroupPerm,
		update:      upd,
		handler:     handler,
		idleTimeout: cfg.ConIdleTimeout.Time(),
	}
	s.gone.Store(true)

	return s, nil
}

func (s *serverUnix) emitErr(errs ...error) {
	if f, ok := s.fctErr.Load().(libsck.FuncError); ok && f != nil {
		f(errs...)
	}
}

func (s *serverUnix) emitInfo(local, remote net.Addr, state libsck.ConnState) {
	if f, ok := s.fctInfo.Load().(libsck.FuncInfo); ok && f != nil {
		f(local, remote, state)
	}
}

func (s *serverUnix) RegisterFuncError(f libsck.FuncError) {
	s.fctErr.Store(f)
}

func (s *serverUnix) RegisterFuncInfo(f libsck.FuncInfo) {
	s.fctInfo.Store(f)
}

func (s *serverUnix) IsRunning() bool {
	return s.running.Load()
}

func (s *serverUnix) IsGone() bool {
	return s.gone.Load()
}

func (s *serverUnix) OpenConnections() int64 {
	return s.conns.Load()
}

func (s *serverUnix) Listener() (net.Listener, string, error) {
	s.mu.Lock()
	ln := s.listener
	addr := s.address
	s.mu.Unlock()

	if ln == nil {
		return nil, addr, ErrNotListening
	}

	return ln, addr, nil
}

// Listen binds the socket file, applies PermFile/GroupPerm, and accepts
// connections until ctx is canceled or Accept returns an unrecoverable
// error. The socket file is removed when Listen returns.
func (s *serverUnix) Listen(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		s.emitErr(err)
		return err
	}

	_ = os.Remove(s.address)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, s.network.Code(), s.address)
	if err != nil {
		s.emitErr(err)
		return err
	}

	if s.permFile != 0 {
		_ = os.Chmod(s.address, s.permFile)
	}
	if s.groupPerm > 0 {
		_ = os.Chown(s.address, -1, int(s.groupPerm))
	}

	lctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.listener = ln
	s.listenCancel = cancel
	s.mu.Unlock()

	s.running.Store(true)
	s.gone.Store(false)

	stop := make(chan struct{})
	go func() {
		select {
		case <-lctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		cancel()

		s.mu.Lock()
		s.listener = nil
		s.listenCancel = nil
		s.mu.Unlock()

		_ = ln.Close()
		_ = os.Remove(s.address)
		s.running.Store(false)

		s.wg.Wait()
		s.gone.Store(true)
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-lctx.Done():
				return lctx.Err()
			default:
				s.emitErr(err)
				return err
			}
		}

		s.wg.Add(1)
		go s.handle(lctx, conn)
	}
}

// Shutdown stops accepting new connections and waits, up to ctx's
// deadline, for every in-flight handler to finish.
func (s *serverUnix) Shutdown(ctx context.Context) error {
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
func (s *serverUnix) Close() error {
	s.mu.Lock()
	cancel := s.listenCancel
	ln := s.listener
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		_ = ln.Close()
	}

	return nil
}

func (s *serverUnix) handle(parent context.Context, conn net.Conn) {
	s.conns.Add(1)
	defer s.conns.Add(-1)
	defer s.wg.Done()

	if s.update != nil {
		s.update(conn)
	}

	local, remote := conn.LocalAddr(), conn.RemoteAddr()
	s.emitInfo(local, remote, libsck.ConnectionNew)

	var raw net.Conn = conn

	var ic *idleConn
	if s.idleTimeout > 0 {
		ic = newIdleConn(raw)
		raw = ic
	}

	sckCtx := libsck.NewContext(raw, parent)

	defer func() {
		_ = sckCtx.Close()
		s.emitInfo(local, remote, libsck.ConnectionClose)
	}()

	if ic != nil {
		go watchIdle(sckCtx, ic, s.idleTimeout)
	}

	if s.handler != nil {
		s.emitInfo(local, remote, libsck.ConnectionHandler)
		s.handler.Handle(sckCtx)
	}
}
