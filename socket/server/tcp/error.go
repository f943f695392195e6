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

import "errors"

var (
	// ErrInvalidAddress is returned by New when cfg fails validation
	// (for any reason, TLS settings included), names a non-TCP network,
	// or has an empty address.
	ErrInvalidAddress = errors.New("invalid or unresolvable server address")

	// ErrInvalidTLSConfig is returned by SetTLS, or by New once cfg has
	// passed validation, when TLS is enabled without at least one
	// certificate pair.
	ErrInvalidTLSConfig = errors.New("invalid TLS configuration: at least one certificate is required")

	// ErrNotListening is returned by Listener before the server's first
	// successful Listen call.
	ErrNotListening = errors.New("server is not currently listening")
)
