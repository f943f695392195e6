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
	"errors"
	"net"

	liberr "github.com/nabbar/golib/errors"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgSocket
	ErrorConfigInvalid
	ErrorListenerInit
	ErrorListenerAccept
	ErrorDial
	ErrorHandshake
	ErrorConnClosed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorParamEmpty)
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case liberr.UNK_ERROR:
		return ""
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorConfigInvalid:
		return "socket configuration is invalid"
	case ErrorListenerInit:
		return "cannot initialize listener"
	case ErrorListenerAccept:
		return "cannot accept incoming connection"
	case ErrorDial:
		return "cannot dial remote address"
	case ErrorHandshake:
		return "TLS handshake failed"
	case ErrorConnClosed:
		return "connection is closed"
	}

	return ""
}

// closedConnMsg is the exact string net.ErrClosed renders as; a fair
// number of callers still build it with fmt.Errorf instead of wrapping
// net.ErrClosed, so ErrorFilter matches on both.
const closedConnMsg = "use of closed network connection"

// ErrorFilter drops errors that merely signal an already-expected
// shutdown (a closed listener or connection) so callers can report the
// rest through FuncError without logging noise on every Close. Errors
// that only mention the closed-connection text as part of a larger
// message are passed through unchanged.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	if err.Error() == closedConnMsg {
		return nil
	}

	return err
}
