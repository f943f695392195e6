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

// Package tcp is the non-blocking TCP+TLS client half of the bridge
// described by the socket package: Connect drives a plain dial or a full
// TLS handshake (record framing, ALPN, session resumption) on top of a
// single net.Conn, and Write fragments TLS application data into
// latency-governed record sizes via socket/internal/govern.
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
	tlsvrs "github.com/nabbar/golib/certificates/tlsversion"
	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/socket-tls/socket"
	"github.com/nabbar/socket-tls/socket/internal/govern"
)

// ClientTCP is a non-blocking TCP client with optional TLS on top. A
// zero-value instance is never valid; always obtain one via New.
type ClientTCP interface {
	net.Conn

	// Connect dials the configured address; if TLS is enabled, the
	// handshake (including ALPN and hostname validation) completes
	// before Connect returns.
	Connect(ctx context.Context) error

	// IsConnected reports whether the underlying connection is live.
	IsConnected() bool

	// Once dials, writes every byte of r, hands the raw reply stream to
	// fct, then closes the connection. It returns the number of bytes
	// written.
	Once(ctx context.Context, r io.Reader, fct libsck.Response) (int, error)

	// RegisterFuncError registers the sink for connection errors.
	RegisterFuncError(f libsck.FuncError)
	// RegisterFuncInfo registers the sink for connection state
	// transitions.
	RegisterFuncInfo(f libsck.FuncInfo)

	// SetTLS enables or disables TLS for the next Connect/Once call.
	// cfg is required whenever enabled is true; serverName is sent as
	// SNI and validated against the peer certificate.
	SetTLS(enabled bool, cfg libtls.TLSConfig, serverName string) error

	// SetProtocols configures the ordered ALPN offer (§6) sent by the
	// next Connect call.
	SetProtocols(protocols []string)

	// GetSelectedProtocol returns the negotiated ALPN protocol, or ""
	// outside a completed TLS session (§6 ssl_get_selected_protocol).
	GetSelectedProtocol() string
	// GetCipher returns the negotiated cipher suite name (§6
	// ssl_get_cipher).
	GetCipher() string
	// GetProtocolVersion returns the negotiated TLS version string
	// (§6 ssl_get_protocol_version).
	GetProtocolVersion() string
	// GetSessionReused reports whether the handshake resumed a cached
	// session (§6 ssl_get_session_reused).
	GetSessionReused() bool

	// SetSessionCache overrides the tls.ClientSessionCache consulted and
	// populated by the next Connect call (§4.2's client-side half of
	// async session resumption). A nil cache restores the built-in
	// default, used automatically once TLS is enabled.
	SetSessionCache(cache tls.ClientSessionCache)
}

// minimumRTT is the record-size governor's RTT floor below which it
// disables itself (§4.4): sub-millisecond links get no benefit from
// packet-aligned records and the extra syscalls are pure overhead.
const minimumRTT = 2000 // microseconds

type clientTCP struct {
	mu sync.Mutex

	address string

	tlsEnabled   bool
	tlsConfig    libtls.TLSConfig
	serverName   string
	protocols    []string
	sessionCache tls.ClientSessionCache

	conn   net.Conn
	tlsCon *govern.Conn
	tlsRaw *tls.Conn

	connected atomic.Bool

	fctErr  atomic.Value // libsck.FuncError
	fctInfo atomic.Value // libsck.FuncInfo
}

// New validates address as a dialable TCP endpoint and returns an
// unconnected client.
func New(address string) (ClientTCP, error) {
	if address == "" {
		return nil, ErrAddress
	}

	if _, err := net.ResolveTCPAddr(libptc.NetworkTCP.Code(), address); err != nil {
		return nil, ErrAddress
	}

	return &clientTCP{
		address:      address,
		sessionCache: tls.NewLRUClientSessionCache(defaultSessionCacheCapacity),
	}, nil
}

// defaultSessionCacheCapacity is the ticket count tls.NewLRUClientSessionCache
// keeps for this client by default (§4.2's client-side async resumption
// hook), sized for a client that dials one server repeatedly rather than
// a fleet of distinct peers.
const defaultSessionCacheCapacity = 32

func (c *clientTCP) emitErr(errs ...error) {
	if f, ok := c.fctErr.Load().(libsck.FuncError); ok && f != nil {
		f(errs...)
	}
}

func (c *clientTCP) emitInfo(state libsck.ConnState) {
	f, ok := c.fctInfo.Load().(libsck.FuncInfo)
	if !ok || f == nil {
		return
	}

	var local, remote net.Addr
	c.mu.Lock()
	if c.conn != nil {
		local = c.conn.LocalAddr()
		remote = c.conn.RemoteAddr()
	}
	c.mu.Unlock()

	f(local, remote, state)
}

func (c *clientTCP) RegisterFuncError(f libsck.FuncError) {
	c.fctErr.Store(f)
}

func (c *clientTCP) RegisterFuncInfo(f libsck.FuncInfo) {
	c.fctInfo.Store(f)
}

func (c *clientTCP) SetTLS(enabled bool, cfg libtls.TLSConfig, serverName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled && cfg == nil {
		return ErrInstance
	}

	c.tlsEnabled = enabled
	c.tlsConfig = cfg
	c.serverName = serverName

	return nil
}

// SetProtocols configures the ordered ALPN offer (§6) sent by the next
// Connect call. A nil or empty list disables ALPN.
func (c *clientTCP) SetProtocols(protocols []string) {
	c.mu.Lock()
	c.protocols = protocols
	c.mu.Unlock()
}

// SetSessionCache overrides the tls.ClientSessionCache consulted and
// populated by the next Connect call (§4.2). A nil cache restores the
// default LRU cache.
func (c *clientTCP) SetSessionCache(cache tls.ClientSessionCache) {
	if cache == nil {
		cache = tls.NewLRUClientSessionCache(defaultSessionCacheCapacity)
	}

	c.mu.Lock()
	c.sessionCache = cache
	c.mu.Unlock()
}

// GetSelectedProtocol returns the ALPN protocol negotiated during the
// handshake (ALPN takes precedence per §6), or "" when TLS is disabled,
// the handshake has not completed, or no protocol was negotiated.
func (c *clientTCP) GetSelectedProtocol() string {
	c.mu.Lock()
	tc := c.tlsRaw
	c.mu.Unlock()
	if tc == nil {
		return ""
	}
	return tc.ConnectionState().NegotiatedProtocol
}

// GetCipher returns the negotiated cipher suite name, or "" outside a
// completed TLS session.
func (c *clientTCP) GetCipher() string {
	c.mu.Lock()
	tc := c.tlsRaw
	c.mu.Unlock()
	if tc == nil {
		return ""
	}
	return tls.CipherSuiteName(tc.ConnectionState().CipherSuite)
}

// GetProtocolVersion returns the negotiated TLS version string (e.g.
// "TLS 1.3"), or "" outside a completed TLS session.
func (c *clientTCP) GetProtocolVersion() string {
	c.mu.Lock()
	tc := c.tlsRaw
	c.mu.Unlock()
	if tc == nil {
		return ""
	}
	return tlsvrs.Version(tc.ConnectionState().Version).String()
}

// GetSessionReused reports whether the handshake resumed a cached
// session instead of performing a full negotiation.
func (c *clientTCP) GetSessionReused() bool {
	c.mu.Lock()
	tc := c.tlsRaw
	c.mu.Unlock()
	if tc == nil {
		return false
	}
	return tc.ConnectionState().DidResume
}

// Connect dials the configured address and, when TLS is enabled, drives
// the handshake to completion (§4.3): a failure at any point surfaces
// the engine's certificate-verification detail when one is available,
// matching on_handshake_complete's contract.
func (c *clientTCP) Connect(ctx context.Context) error {
	c.mu.Lock()
	addr := c.address
	tlsEnabled := c.tlsEnabled
	tlsCfg := c.tlsConfig
	serverName := c.serverName
	protocols := c.protocols
	sessionCache := c.sessionCache
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	c.emitInfo(libsck.ConnectionDial)

	var d net.Dialer
	raw, err := d.DialContext(ctx, libptc.NetworkTCP.Code(), addr)
	if err != nil {
		c.emitErr(err)
		return err
	}

	if !tlsEnabled {
		c.mu.Lock()
		c.conn = raw
		c.tlsCon = nil
		c.tlsRaw = nil
		c.mu.Unlock()
		c.connected.Store(true)
		c.emitInfo(libsck.ConnectionNew)
		return nil
	}

	conf := tlsCfg.TlsConfig(serverName)
	if len(protocols) > 0 {
		conf.NextProtos = protocols
	}
	if sessionCache != nil {
		conf.ClientSessionCache = sessionCache
	}

	tc := tls.Client(raw, conf)
	if err = tc.HandshakeContext(ctx); err != nil {
		mapped := libsck.MapHandshakeError(err)
		c.emitErr(mapped)
		_ = raw.Close()
		return mapped
	}

	if err = libsck.MapNoCertificate(tc.ConnectionState()); err != nil {
		c.emitErr(err)
		_ = tc.Close()
		return err
	}

	gc := govern.Wrap(tc, minimumRTT)

	c.mu.Lock()
	c.conn = tc
	c.tlsCon = gc
	c.tlsRaw = tc
	c.mu.Unlock()
	c.connected.Store(true)
	c.emitInfo(libsck.ConnectionNew)

	return nil
}

func (c *clientTCP) IsConnected() bool {
	return c.connected.Load()
}

func (c *clientTCP) Read(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	isTLS := c.tlsCon != nil
	c.mu.Unlock()

	if conn == nil {
		c.emitErr(ErrConnection)
		return 0, ErrConnection
	}

	c.emitInfo(libsck.ConnectionRead)
	n, err := conn.Read(p)
	if err != nil {
		if isTLS && err != io.EOF {
			mapped := libsck.MapReadError(err)
			c.emitErr(libsck.ErrorFilter(mapped))
			return n, mapped
		}
		c.emitErr(libsck.ErrorFilter(err))
	}

	return n, err
}

// Write hands p to the underlying connection. For a TLS session this
// routes through the record-size governor (socket/internal/govern),
// which fragments p per §4.4/§4.5 before each chunk reaches the TLS
// engine.
func (c *clientTCP) Write(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	gc := c.tlsCon
	c.mu.Unlock()

	if conn == nil {
		c.emitErr(ErrConnection)
		return 0, ErrConnection
	}

	c.emitInfo(libsck.ConnectionWrite)

	var (
		n   int
		err error
	)
	if gc != nil {
		n, err = gc.Write(p)
	} else {
		n, err = conn.Write(p)
	}

	if err != nil {
		c.emitErr(libsck.ErrorFilter(err))
	}

	return n, err
}

func (c *clientTCP) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.tlsCon = nil
	c.tlsRaw = nil
	c.mu.Unlock()

	c.connected.Store(false)

	if conn == nil {
		c.emitErr(ErrConnection)
		return ErrConnection
	}

	c.emitInfo(libsck.ConnectionClose)
	return conn.Close()
}

func (c *clientTCP) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *clientTCP) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func (c *clientTCP) SetDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrConnection
	}
	return conn.SetDeadline(t)
}

func (c *clientTCP) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrConnection
	}
	return conn.SetReadDeadline(t)
}

func (c *clientTCP) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrConnection
	}
	return conn.SetWriteDeadline(t)
}

// Once performs a one-shot Connect/Write/response/Close cycle: dial,
// write every byte of r, hand the live connection to fct, then close.
func (c *clientTCP) Once(ctx context.Context, r io.Reader, fct libsck.Response) (int, error) {
	if err := c.Connect(ctx); err != nil {
		return 0, err
	}
	defer func() {
		_ = c.Close()
	}()

	n, err := io.Copy(c, r)
	if err != nil {
		return int(n), err
	}

	if fct != nil {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		fct(conn)
	}

	return int(n), nil
}
