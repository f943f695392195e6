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

package tcp

import (
	"crypto/rand"
	"crypto/tls"
	"sync"
)

// SessionStore persists the wire-serialized tls.SessionState blobs this
// server's WrapSession/UnwrapSession hooks produce and consume (§4.2's
// asynchronous ticket issuance, §4.3's out-of-band ticket resolution,
// §6 ssl_resume_server_handshake, §8 property 4, scenario S4). Store is
// called once per full handshake to record a freshly issued ticket;
// Lookup is called once per abbreviated handshake attempt to resolve
// the identity the client presents back. Both run on the handshake's
// own per-connection goroutine (§5's one-goroutine-per-session model),
// so a blocking call into an external store - a database, a
// distributed cache - only ever suspends that one handshake, which is
// this module's rendering of §4.3's REQUEST_SENT suspend-and-resume
// substate: the goroutine itself is the suspension point, not a hand-
// rolled callback state machine.
type SessionStore interface {
	Store(identity []byte, state []byte) error
	Lookup(identity []byte) (state []byte, ok bool, err error)
}

// memorySessionStore is the SessionStore New's server falls back to
// when a caller never supplies one. It keeps every server in this
// module exercising the same WrapSession/UnwrapSession path regardless
// of whether a caller wired an external store.
type memorySessionStore struct {
	mu    sync.Mutex
	state map[string][]byte
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{state: make(map[string][]byte)}
}

func (m *memorySessionStore) Store(identity []byte, state []byte) error {
	m.mu.Lock()
	m.state[string(identity)] = state
	m.mu.Unlock()
	return nil
}

func (m *memorySessionStore) Lookup(identity []byte) ([]byte, bool, error) {
	m.mu.Lock()
	s, ok := m.state[string(identity)]
	m.mu.Unlock()
	return s, ok, nil
}

// sessionIdentityLen is the size of the random identity wrapSession
// hands the client as its opaque ticket; the client returns it
// unmodified on a later handshake and unwrapSession uses it as the
// SessionStore lookup key.
const sessionIdentityLen = 32

// wrapSession adapts a SessionStore into tls.Config's WrapSession hook:
// it serializes cs via (*tls.SessionState).Bytes, stores the result
// under a fresh random identity, and returns that identity as the
// ticket the client will present on a future handshake.
func wrapSession(store SessionStore) func(tls.ConnectionState, *tls.SessionState) ([]byte, error) {
	return func(_ tls.ConnectionState, ss *tls.SessionState) ([]byte, error) {
		b, err := ss.Bytes()
		if err != nil {
			return nil, err
		}

		identity := make([]byte, sessionIdentityLen)
		if _, err = rand.Read(identity); err != nil {
			return nil, err
		}

		if err = store.Store(identity, b); err != nil {
			return nil, err
		}

		return identity, nil
	}
}

// unwrapSession adapts a SessionStore into tls.Config's UnwrapSession
// hook: a store miss or lookup error both return (nil, nil), which
// crypto/tls treats as "ignore this ticket, fall back to a full
// handshake" rather than aborting the connection (§8 property 4: a
// resumption failure never tears down the session, it only forgoes the
// abbreviated handshake).
func unwrapSession(store SessionStore) func(identity []byte, cs tls.ConnectionState) (*tls.SessionState, error) {
	return func(identity []byte, _ tls.ConnectionState) (*tls.SessionState, error) {
		b, ok, err := store.Lookup(identity)
		if err != nil || !ok {
			return nil, nil
		}

		return tls.ParseSessionState(b)
	}
}
