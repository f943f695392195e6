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

// Package tcp is the non-blocking TCP+TLS server half of the bridge
// described by the socket package: Listen accepts connections on a
// single net.Listener and hands each one its own goroutine, optionally
// driving a TLS handshake and wrapping the session's writes through
// socket/internal/govern the same way socket/client/tcp does for the
// dial side.
package tcp

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libtls "github.com/nabbar/golib/certificates"
	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/socket-tls/socket"
	sckcfg "github.com/nabbar/socket-tls/socket/config"
	"github.com/nabbar/socket-tls/socket/internal/govern"
)

// minimumRTT mirrors socket/client/tcp's governor floor: links under
// this RTT get no benefit from packet-aligned records.
const minimumRTT = 2000 // microseconds

// ServerTcp is a non-blocking TCP server with optional TLS on top. A
// zero-value instance is never valid; always obtain one via New.
type ServerTcp interface {
	libsck.Server

	// Close stops the listener immediately and cancels every open
	// connection's Context, without waiting for in-flight handlers to
	// finish; it does not close the connections itself. Shutdown is the
	// graceful alternative.
	Close() error

	// SetTLS enables or disables TLS for the next Listen call. cfg must
	// carry at least one certificate pair whenever enabled is true.
	SetTLS(enabled bool, cfg libtls.TLSConfig) error

	// SetProtocols configures this server's ALPN preference order
	// (§6): the first entry appearing in a client's offer wins.
	SetProtocols(protocols []string)

	// SetSessionStore registers the backing store for this server's
	// asynchronous session-ticket issuance and resolution (§4.2/§4.3,
	// §6 ssl_resume_server_handshake). A nil store restores the
	// in-process default; session resumption stays active either way
	// whenever TLS is enabled.
	SetSessionStore(store SessionStore)

	// RegisterFuncInfoServer registers the sink for listener-level
	// lifecycle events, reported as a plain label ("listening", ...).
	RegisterFuncInfoServer(f func(state string))
}

type serverTCP struct {
	mu sync.Mutex

	network libptc.NetworkProtocol
	address string

	update  libsck.UpdateConn
	handler libsck.Handler

	idleTimeout time.Duration

	tlsEnabled   bool
	tlsConfig    libtls.TLSConfig
	protocols    []string
	sessionStore SessionStore

	listener     net.Listener
	listenCancel context.CancelFunc
	wg           sync.WaitGroup

	running atomic.Bool
	gone    atomic.Bool
	conns   atomic.Int64

	fctErr     atomic.Value // libsck.FuncError
	fctInfo    atomic.Value // libsck.FuncInfo
	fctInfoSrv atomic.Value // func(string)
}

// New validates cfg, resolving it to a listenable TCP endpoint, and
// returns an unstarted server. handler runs once per accepted
// connection, in its own goroutine; upd, when non-nil, tunes the raw
// net.Conn before any TLS handshake.
func New(upd libsck.UpdateConn, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerTcp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidAddress
	}

	if !cfg.Network.IsTCP() || cfg.Address == "" {
		return nil, ErrInvalidAddress
	}

	s := &serverTCP{
		network:      cfg.Network,
		address:      cfg.Address,
		update:       upd,
		handler:      handler,
		idleTimeout:  cfg.ConIdleTimeout.Time(),
		sessionStore: newMemorySessionStore(),
	}
	s.gone.Store(true)

	if enabled, tcfg := cfg.GetTLS(); enabled {
		if tcfg == nil || tcfg.LenCertificatePair() == 0 {
			return nil, ErrInvalidTLSConfig
		}
		s.tlsEnabled = true
		s.tlsConfig = tcfg
	}
	s.protocols = cfg.GetProtocols()

	return s, nil
}

func (s *serverTCP) emitErr(errs ...error) {
	if f, ok := s.fctErr.Load().(libsck.FuncError); ok && f != nil {
		f(errs...)
	}
}

func (s *serverTCP) emitInfo(local, remote net.Addr, state libsck.ConnState) {
	if f, ok := s.fctInfo.Load().(libsck.FuncInfo); ok && f != nil {
		f(local, remote, state)
	}
}

func (s *serverTCP) emitServerInfo(state string) {
	if f, ok := s.fctInfoSrv.Load().(func(string)); ok && f != nil {
		f(state)
	}
}

func (s *serverTCP) RegisterFuncError(f libsck.FuncError) {
	s.fctErr.Store(f)
}

func (s *serverTCP) RegisterFuncInfo(f libsck.FuncInfo) {
	s.fctInfo.Store(f)
}

func (s *serverTCP) RegisterFuncInfoServer(f func(state string)) {
	s.fctInfoSrv.Store(f)
}

func (s *serverTCP) SetTLS(enabled bool, cfg libtls.TLSConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled && (cfg == nil || cfg.LenCertificatePair() == 0) {
		return ErrInvalidTLSConfig
	}

	s.tlsEnabled = enabled
	s.tlsConfig = cfg

	return nil
}

// SetProtocols configures this server's ALPN preference order (§6).
func (s *serverTCP) SetProtocols(protocols []string) {
	s.mu.Lock()
	s.protocols = protocols
	s.mu.Unlock()
}

// SetSessionStore registers store as the backing collaborator for this
// server's WrapSession/UnwrapSession hooks (§4.2/§4.3). A nil argument
// reverts to the in-process default store used when none was ever set.
func (s *serverTCP) SetSessionStore(store SessionStore) {
	if store == nil {
		store = newMemorySessionStore()
	}

	s.mu.Lock()
	s.sessionStore = store
	s.mu.Unlock()
}

func (s *serverTCP) IsRunning() bool {
	return s.running.Load()
}

func (s *serverTCP) IsGone() bool {
	return s.gone.Load()
}

func (s *serverTCP) OpenConnections() int64 {
	return s.conns.Load()
}

func (s *serverTCP) Listener() (net.Listener, string, error) {
	s.mu.Lock()
	ln := s.listener
	addr := s.address
	s.mu.Unlock()

	if ln == nil {
		return nil, addr, ErrNotListening
	}

	return ln, addr, nil
}

// Listen binds the configured address and accepts connections until ctx
// is canceled, the listener is closed by Close/Shutdown, or Accept
// returns an unrecoverable error. Each accepted connection is served in
// its own goroutine (§5's per-event-loop concurrency model, rendered as
// one goroutine per session).
func (s *serverTCP) Listen(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		s.emitErr(err)
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, s.network.Code(), s.address)
	if err != nil {
		s.emitErr(err)
		return err
	}

	lctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.listener = ln
	s.listenCancel = cancel
	s.mu.Unlock()

	s.running.Store(true)
	s.gone.Store(false)
	s.emitServerInfo("listening")

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
		s.running.Store(false)
		s.emitServerInfo("stopping")

		s.wg.Wait()
		s.gone.Store(true)
		s.emitServerInfo("stopped")
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
func (s *serverTCP) Shutdown(ctx context.Context) error {
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

// Close stops the listener immediately and cancels the listener context
// every open connection's Context derives from; each connection is
// closed when its handler returns, not synchronously from Close itself.
// Safe to call more than once.
func (s *serverTCP) Close() error {
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

// handle drives one accepted connection: optional idle-timeout
// tracking, optional TLS handshake, then the registered Handler over
// the resulting socket.Context. parent is the listener's own context,
// so canceling Listen's ctx tears down every live handler's Context
// (§4.7's shutdown propagation rendered through context.Context).
func (s *serverTCP) handle(parent context.Context, conn net.Conn) {
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

	s.mu.Lock()
	tlsEnabled := s.tlsEnabled
	tlsConfig := s.tlsConfig
	protocols := s.protocols
	store := s.sessionStore
	s.mu.Unlock()

	var gc *govern.Conn
	if tlsEnabled {
		conf := tlsConfig.TLS("")
		if len(protocols) > 0 {
			conf.NextProtos = protocols
		}
		if store != nil {
			// §4.2/§4.3: issue and resolve session tickets out of band
			// through store instead of crypto/tls's default in-memory
			// ticket encryption, so resumption survives a restart or is
			// shared across a server fleet when store is backed by
			// something external.
			conf.WrapSession = wrapSession(store)
			conf.UnwrapSession = unwrapSession(store)
		}
		tc := tls.Server(raw, conf)
		if err := tc.HandshakeContext(parent); err != nil {
			s.emitErr(libsck.MapHandshakeError(err))
			_ = conn.Close()
			s.emitInfo(local, remote, libsck.ConnectionClose)
			return
		}

		gc = govern.Wrap(tc, minimumRTT)
		raw = tc
	}

	sc := &serverConn{Conn: raw, gov: gc}
	sckCtx := libsck.NewContext(sc, parent)

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

// serverConn routes Write through the record-size governor (§4.4/§4.5)
// and Read through the sentinel-error mapper (§4.6) when TLS is
// active; every other net.Conn method passes straight through to the
// embedded connection.
type serverConn struct {
	net.Conn
	gov *govern.Conn
}

func (c *serverConn) Write(p []byte) (int, error) {
	if c.gov != nil {
		return c.gov.Write(p)
	}
	return c.Conn.Write(p)
}

// Read maps decode and renegotiation errors from the TLS engine into
// the stable sentinel categories (§4.6); the session is not auto-
// closed, matching §7's "the session is not auto-closed - the owner
// decides".
func (c *serverConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil && c.gov != nil && err != io.EOF {
		return n, libsck.MapReadError(err)
	}
	return n, err
}
