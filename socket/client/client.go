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

// Package client dispatches a declarative config.Client to the
// protocol-specific client implementation that can dial it: the
// latency-optimized TLS bridge in socket/client/tcp for any TCP
// variant, or a plain net.Conn for UDP/unix, none of which carry TLS
// or the record-size governor (§1's scope is the TCP+TLS bridge only).
package client

import (
	"bytes"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libsck "github.com/nabbar/socket-tls/socket"
	scktcp "github.com/nabbar/socket-tls/socket/client/tcp"
	sckcfg "github.com/nabbar/socket-tls/socket/config"
)

// New validates cfg and returns the protocol-specific Client
// implementation selected by cfg.Network. update, when non-nil, is
// invoked on the dialed net.Conn before it is returned from Connect.
func New(cfg sckcfg.Client, update libsck.UpdateConn) (libsck.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Network.IsTCP() {
		return newTCPClient(cfg, update)
	}

	return newRawClient(cfg, update), nil
}

// newTCPClient wraps socket/client/tcp.ClientTCP, adapting its
// io.Reader-based Once to the []byte-based libsck.Client.Once and
// wiring TLS from cfg.GetTLS() when enabled.
func newTCPClient(cfg sckcfg.Client, update libsck.UpdateConn) (libsck.Client, error) {
	c, err := scktcp.New(cfg.Address)
	if err != nil {
		return nil, err
	}

	if enabled, tlsCfg, serverName := cfg.GetTLS(); enabled {
		if err = c.SetTLS(true, tlsCfg, serverName); err != nil {
			return nil, err
		}
		if protos := cfg.GetProtocols(); len(protos) > 0 {
			c.SetProtocols(protos)
		}
	}

	return &tcpClientAdapter{cli: c, update: update}, nil
}

type tcpClientAdapter struct {
	cli    scktcp.ClientTCP
	update libsck.UpdateConn
}

func (a *tcpClientAdapter) Connect(ctx context.Context) error {
	if err := a.cli.Connect(ctx); err != nil {
		return err
	}
	if a.update != nil {
		a.update(a.cli)
	}
	return nil
}

func (a *tcpClientAdapter) Read(p []byte) (int, error)  { return a.cli.Read(p) }
func (a *tcpClientAdapter) Write(p []byte) (int, error) { return a.cli.Write(p) }
func (a *tcpClientAdapter) Close() error                { return a.cli.Close() }
func (a *tcpClientAdapter) LocalAddr() net.Addr         { return a.cli.LocalAddr() }
func (a *tcpClientAdapter) RemoteAddr() net.Addr        { return a.cli.RemoteAddr() }

func (a *tcpClientAdapter) SetDeadline(t time.Time) error      { return a.cli.SetDeadline(t) }
func (a *tcpClientAdapter) SetReadDeadline(t time.Time) error  { return a.cli.SetReadDeadline(t) }
func (a *tcpClientAdapter) SetWriteDeadline(t time.Time) error { return a.cli.SetWriteDeadline(t) }

func (a *tcpClientAdapter) RegisterFuncError(f libsck.FuncError) {
	a.cli.RegisterFuncError(f)
}

func (a *tcpClientAdapter) Once(ctx context.Context, p []byte, fct libsck.Response) (int, error) {
	return a.cli.Once(ctx, bytes.NewReader(p), fct)
}

// rawClient is the connectionless/dial-only fallback used for UDP and
// unix-domain variants: a plain net.Conn with no TLS, no handshake, no
// record governor, matching socket/server/udp and socket/server/unix's
// scope decision on the accept side.
type rawClient struct {
	mu sync.Mutex

	network string
	address string
	update  libsck.UpdateConn

	conn net.Conn

	connected atomic.Bool
	fctErr    atomic.Value // libsck.FuncError
}

func newRawClient(cfg sckcfg.Client, update libsck.UpdateConn) *rawClient {
	return &rawClient{network: cfg.Network.Code(), address: cfg.Address, update: update}
}

func (c *rawClient) emitErr(errs ...error) {
	if f, ok := c.fctErr.Load().(libsck.FuncError); ok && f != nil {
		f(errs...)
	}
}

func (c *rawClient) RegisterFuncError(f libsck.FuncError) {
	c.fctErr.Store(f)
}

func (c *rawClient) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, c.network, c.address)
	if err != nil {
		c.emitErr(err)
		return err
	}

	if c.update != nil {
		c.update(conn)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	return nil
}

func (c *rawClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *rawClient) Read(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, net.ErrClosed
	}

	n, err := conn.Read(p)
	if err != nil {
		c.emitErr(libsck.ErrorFilter(err))
	}
	return n, err
}

func (c *rawClient) Write(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, net.ErrClosed
	}

	n, err := conn.Write(p)
	if err != nil {
		c.emitErr(libsck.ErrorFilter(err))
	}
	return n, err
}

func (c *rawClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.connected.Store(false)

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *rawClient) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *rawClient) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func (c *rawClient) SetDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	return conn.SetDeadline(t)
}

func (c *rawClient) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	return conn.SetReadDeadline(t)
}

func (c *rawClient) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	return conn.SetWriteDeadline(t)
}

// Once dials, writes p, hands the live connection to fct, then closes.
func (c *rawClient) Once(ctx context.Context, p []byte, fct libsck.Response) (int, error) {
	if err := c.Connect(ctx); err != nil {
		return 0, err
	}
	defer func() {
		_ = c.Close()
	}()

	n, err := c.Write(p)
	if err != nil {
		return n, err
	}

	if fct != nil {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		fct(conn)
	}

	return n, nil
}
