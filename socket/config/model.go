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

// Package config carries the declarative Client and Server
// configuration consumed by socket/client and socket/server: which
// protocol and address to use, and the TLS settings layered on top of
// a stream protocol.
package config

import (
	"net"

	libtls "github.com/nabbar/golib/certificates"
	libdur "github.com/nabbar/golib/duration"
	libprm "github.com/nabbar/golib/file/perm"
	libptc "github.com/nabbar/golib/network/protocol"
)

// MaxGID is the highest unix group id accepted for Server.GroupPerm.
const MaxGID = 32767

// ClientTLS configures TLS for an outbound connection.
type ClientTLS struct {
	// Enabled turns on TLS for the dial; only valid when Network is a
	// TCP variant.
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	// Config is the certificate/cipher/version configuration used to
	// build the stdlib *tls.Config via Config.New().
	Config libtls.Config `mapstructure:"config" json:"config" yaml:"config" toml:"config"`
	// ServerName is sent as SNI and checked against the peer
	// certificate; required whenever Enabled is true.
	ServerName string `mapstructure:"serverName" json:"serverName" yaml:"serverName" toml:"serverName"`
	// Protocols is the ordered ALPN offer sent during the handshake
	// (§6 "client offers an ordered list"); nil disables ALPN.
	Protocols []string `mapstructure:"protocols" json:"protocols" yaml:"protocols" toml:"protocols"`
}

// Client is the configuration for a dialed connection.
type Client struct {
	Network libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address string                 `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	TLS     ClientTLS              `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	def libtls.TLSConfig
}

// Validate checks that Network/Address form a dialable endpoint and,
// when TLS is enabled, that the TLS settings are coherent.
func (c Client) Validate() error {
	if !c.Network.IsValid() {
		return ErrInvalidProtocol
	}

	if err := validateAddress(c.Network, c.Address); err != nil {
		return err
	}

	if c.TLS.Enabled {
		if !c.Network.IsTCP() {
			return ErrInvalidTLSConfig
		}
		if c.TLS.ServerName == "" {
			return ErrInvalidTLSConfig
		}
	}

	return nil
}

// DefaultTLS registers a fallback TLSConfig merged under the client's
// own TLS.Config whenever a field is left at its zero value.
func (c *Client) DefaultTLS(def libtls.TLSConfig) {
	c.def = def
}

// GetTLS returns whether TLS is enabled, the resolved TLSConfig ready
// for TLS(serverName), and the SNI server name to dial with.
func (c Client) GetTLS() (bool, libtls.TLSConfig, string) {
	if !c.TLS.Enabled {
		return false, nil, ""
	}

	cfg := c.TLS.Config
	var t libtls.TLSConfig
	if c.def != nil {
		t = cfg.NewFrom(c.def)
	} else {
		t = cfg.New()
	}

	return true, t, c.TLS.ServerName
}

// GetProtocols returns the ALPN offer configured for this client.
func (c Client) GetProtocols() []string {
	return c.TLS.Protocols
}

// ServerTLS configures TLS for an accepted connection.
type ServerTLS struct {
	// Enabled turns on TLS for the listener; only valid when Network
	// is a TCP variant.
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	// Config is the certificate/cipher/version configuration used to
	// build the stdlib *tls.Config via Config.New(); at least one
	// certificate is required whenever Enabled is true.
	Config libtls.Config `mapstructure:"config" json:"config" yaml:"config" toml:"config"`
	// Protocols is this server's ALPN preference order (§6 "server
	// selects the first protocol from its own ordered list that
	// appears anywhere in the client's offer"); nil disables ALPN.
	Protocols []string `mapstructure:"protocols" json:"protocols" yaml:"protocols" toml:"protocols"`
}

// Server is the configuration for an accepting listener.
type Server struct {
	Network libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address string                 `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	// PermFile is applied to a unix socket file after it is created.
	PermFile libprm.Perm `mapstructure:"permFile" json:"permFile" yaml:"permFile" toml:"permFile"`
	// GroupPerm chowns a unix socket file to this group id; -1 (or 0,
	// meaning unset) leaves the group unchanged.
	GroupPerm int32     `mapstructure:"groupPerm" json:"groupPerm" yaml:"groupPerm" toml:"groupPerm"`
	TLS       ServerTLS `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
	// ConIdleTimeout bounds how long an accepted connection may sit
	// without any read/write activity before the server closes it; zero
	// disables the idle timeout.
	ConIdleTimeout libdur.Duration `mapstructure:"conIdleTimeout" json:"conIdleTimeout" yaml:"conIdleTimeout" toml:"conIdleTimeout"`

	def libtls.TLSConfig
}

// Validate checks that Network/Address form a listenable endpoint,
// that GroupPerm is a plausible unix group id, and that TLS settings
// are coherent when enabled.
func (s Server) Validate() error {
	if !s.Network.IsValid() {
		return ErrInvalidProtocol
	}

	if err := validateAddress(s.Network, s.Address); err != nil {
		return err
	}

	if s.GroupPerm < -1 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}

	if s.TLS.Enabled {
		if !s.Network.IsTCP() {
			return ErrInvalidTLSConfig
		}
		if len(s.TLS.Config.Certs) == 0 {
			return ErrInvalidTLSConfig
		}
	}

	return nil
}

// DefaultTLS registers a fallback TLSConfig merged under the server's
// own TLS.Config whenever a field is left at its zero value.
func (s *Server) DefaultTLS(def libtls.TLSConfig) {
	s.def = def
}

// GetTLS returns whether TLS is enabled and the resolved TLSConfig
// ready for TLS(""), i.e. with no SNI override.
func (s Server) GetTLS() (bool, libtls.TLSConfig) {
	if !s.TLS.Enabled {
		return false, nil
	}

	cfg := s.TLS.Config
	var t libtls.TLSConfig
	if s.def != nil {
		t = cfg.NewFrom(s.def)
	} else {
		t = cfg.New()
	}

	return true, t
}

// GetProtocols returns the ALPN preference order configured for this
// server.
func (s Server) GetProtocols() []string {
	return s.TLS.Protocols
}

func validateAddress(n libptc.NetworkProtocol, addr string) error {
	switch {
	case n.IsTCP():
		_, err := net.ResolveTCPAddr(n.String(), addr)
		return err
	case n.IsUDP():
		_, err := net.ResolveUDPAddr(n.String(), addr)
		return err
	case n.IsUnix():
		_, err := net.ResolveUnixAddr(n.String(), addr)
		return err
	default:
		return ErrInvalidProtocol
	}
}
