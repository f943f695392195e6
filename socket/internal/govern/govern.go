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

// Package govern picks the TLS record size a write should use, based on
// live TCP congestion-control state, to reduce head-of-line latency: when
// the congestion window is small, a record is sized to fit inside a single
// packet so the receiver can decrypt it as soon as that packet arrives;
// once the window is large, oversized records amortize better.
package govern

import (
	"crypto/tls"
	"net"
	"sync"
)

// Mode is the record-size governor's current phase for one connection.
type Mode uint8

const (
	// ModeUnknown is the initial state, before the first write has ever
	// sampled TCP_INFO.
	ModeUnknown Mode = iota
	// ModeDisabled means the platform, cipher, or RTT made sizing advice
	// unavailable; writes always get "no hint".
	ModeDisabled
	// ModeNeedsUpdate means a prior write consumed the last sample; the
	// next Decide call must refresh TCP_INFO before advising.
	ModeNeedsUpdate
	// ModeTiny means the congestion window is small enough that records
	// should be sized to fit a single unacknowledged packet.
	ModeTiny
	// ModeLarge means the congestion window is large enough that full
	// 16KiB records amortize overhead better than packet-sized ones.
	ModeLarge
)

// NoHint is returned by Decide when no write-size cap should be applied.
const NoHint = -1

// MaxRecord is the largest TLS record payload (RFC 8446 §5.2).
const MaxRecord = 16384

// overhead returns the per-record framing overhead for a cipher suite, or
// -1 if the suite is not one the governor recognizes (disables sizing).
//
// The known AES-GCM suites are charged 25 bytes per record.
// ChaCha20-Poly1305 records carry a header (5) plus a 16-byte tag and no
// explicit nonce (21 bytes), but they share the AES-GCM branch below and
// are charged 25 bytes too.
func overhead(cipherSuite uint16) int {
	switch cipherSuite {
	case tls.TLS_AES_128_GCM_SHA256, tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:
		return 25
	default:
		return -1
	}
}

// tcpInfo is the subset of TCP_INFO this package reads; platform-specific
// files fill it in or report ok=false when unavailable.
type tcpInfo struct {
	rttMicros uint32
	cwnd      uint32
	unacked   uint32
	mss       uint32
}

// Governor tracks per-connection latency-optimization state: the record
// size mode, cached MSS and cipher overhead, and the last suggestion.
type Governor struct {
	mu          sync.Mutex
	mode        Mode
	mss         uint32
	overhead    int
	minRTT      uint32
	initialized bool
}

// New returns a Governor in its initial (unknown) state.
func New() *Governor {
	return &Governor{mode: ModeUnknown}
}

// Prepare runs the one-time TBD sizing probe for conn and cipherSuite:
// it samples TCP_INFO, rejects connections with RTT below minimumRTT
// (in microseconds), resolves cipher overhead, attempts to arm
// TCP_NOTSENT_LOWAT, and caches MSS. minimumRTT of zero disables the
// RTT floor.
func (g *Governor) Prepare(conn net.Conn, cipherSuite uint16, minimumRTT uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return
	}
	g.initialized = true

	ov := overhead(cipherSuite)
	if ov < 0 {
		g.mode = ModeDisabled
		return
	}

	info, ok := readTCPInfo(conn)
	if !ok {
		g.mode = ModeDisabled
		return
	}

	if minimumRTT > 0 && info.rttMicros < minimumRTT {
		g.mode = ModeDisabled
		return
	}

	if !setNotSentLowWat(conn, 1) {
		g.mode = ModeDisabled
		return
	}

	g.overhead = ov
	g.mss = info.mss
	g.minRTT = minimumRTT
	g.mode = ModeNeedsUpdate
}

// Decide returns the suggested plaintext size for the next write, or
// NoHint if no cap should be applied. conn must be the same connection
// passed to Prepare (or a connection sharing its underlying fd/socket).
func (g *Governor) Decide(conn net.Conn) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.mode {
	case ModeDisabled:
		return NoHint
	case ModeUnknown:
		return NoHint
	}

	info, ok := readTCPInfo(conn)
	if !ok {
		return NoHint
	}

	inFlight := uint64(info.cwnd) * uint64(info.mss)
	if inFlight >= 65536 {
		g.mode = ModeLarge
		return NoHint
	}

	g.mode = ModeTiny
	sendable := int64(info.cwnd) - int64(info.unacked)
	if sendable < 0 {
		sendable = 0
	}
	return int((sendable + 1)) * (int(info.mss) - g.overhead)
}

// RecordSize returns the record payload size a write pipeline should
// fragment application data into, demoting the mode to ModeNeedsUpdate
// as a side effect (mirrors §4.5: "after any write in TINY or LARGE
// mode, demote to NEEDS_UPDATE").
func (g *Governor) RecordSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.mode {
	case ModeTiny, ModeNeedsUpdate:
		g.mode = ModeNeedsUpdate
		if g.mss == 0 {
			return 1400
		}
		return int(g.mss)
	case ModeLarge:
		g.mode = ModeNeedsUpdate
		return MaxRecord - g.overhead
	default:
		return 1400
	}
}

// Mode returns the governor's current mode.
func (g *Governor) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}
