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

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
)

// Sentinel errors with stable string identities, the categories the
// handshake driver and read pipeline surface to callers instead of raw
// engine error codes.
var (
	ErrOutOfMemory   = errors.New("out of memory")
	ErrIO            = errors.New("i/o error")
	ErrClosedByPeer  = errors.New("closed by peer")
	ErrConnFailure   = errors.New("connection failure")
	ErrNoCertificate = errors.New("ssl no certificate")
	ErrCertInvalid   = errors.New("ssl certificate invalid")
	ErrCertMismatch  = errors.New("ssl certificate name mismatch")
	ErrSSLDecode     = errors.New("ssl decode error")
	ErrRenegotiation = errors.New("ssl renegotiation not supported")
	ErrHandshake     = errors.New("ssl handshake failure")
)

// MapHandshakeError translates a crypto/tls handshake error into the
// stable sentinel categories §6 defines: the engine's X509
// verification detail, when one is present, is surfaced in place of
// the generic handshake failure (§4.3 step 4, §7).
func MapHandshakeError(err error) error {
	if err == nil {
		return nil
	}

	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return ErrCertMismatch
	}

	var certVerifyErr *tls.CertificateVerificationError
	if errors.As(err, &certVerifyErr) {
		if errors.As(certVerifyErr.Err, &hostErr) {
			return ErrCertMismatch
		}
		return ErrCertInvalid
	}

	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return ErrCertInvalid
	}

	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return ErrCertInvalid
	}

	if errors.Is(err, io.EOF) {
		return ErrConnFailure
	}

	return ErrHandshake
}

// MapNoCertificate returns ErrNoCertificate when a client-role
// handshake completed without the peer presenting any certificate
// (§4.3 step 6: "fetch the peer certificate; if absent, error is 'no
// certificate'"), nil otherwise.
func MapNoCertificate(state tls.ConnectionState) error {
	if len(state.PeerCertificates) == 0 {
		return ErrNoCertificate
	}
	return nil
}

// noRenegotiationAlertText is the exact text crypto/tls's unexported
// alert(100) type formats to (alert.go's alertNoRenegotiation); there is
// no exported type for it outside the QUIC path, so it is matched by
// exact equality against the wrapped alert's own Error() rather than by
// scanning err.Error() for a substring.
const noRenegotiationAlertText = "tls: no renegotiation"

// isNoRenegotiationAlert reports whether err is the alert crypto/tls
// sends or receives when a peer attempts a TLS 1.2 renegotiation this
// module never opts into (this module never sets
// tls.Config.Renegotiation, matching §1's "detection and teardown
// only"). Both directions surface as *net.OpError: "local error" when
// this side rejects an incoming HelloRequest, "remote error" when the
// peer rejected one of ours.
func isNoRenegotiationAlert(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	if opErr.Op != "local error" && opErr.Op != "remote error" {
		return false
	}
	return opErr.Err != nil && opErr.Err.Error() == noRenegotiationAlertText
}

// MapReadError translates an error from the decode pipeline (§4.6)
// into the stable read-path sentinel categories.
func MapReadError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return ErrClosedByPeer
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosedByPeer
	}
	if isNoRenegotiationAlert(err) {
		return ErrRenegotiation
	}
	return ErrSSLDecode
}
