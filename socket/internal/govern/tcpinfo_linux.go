//go:build linux

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

package govern

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func syscallConn(conn net.Conn) (syscall.RawConn, bool) {
	sc, ok := conn.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return nil, false
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}

	return raw, true
}

func readTCPInfo(conn net.Conn) (tcpInfo, bool) {
	raw, ok := syscallConn(conn)
	if !ok {
		return tcpInfo{}, false
	}

	var (
		info *unix.TCPInfo
		gerr error
	)

	cerr := raw.Control(func(fd uintptr) {
		info, gerr = unix.GetsockoptTCPInfo(int(fd), unix.SOL_TCP, unix.TCP_INFO)
	})
	if cerr != nil || gerr != nil || info == nil {
		return tcpInfo{}, false
	}

	mss := info.Snd_mss
	if mss == 0 {
		mss = 1460
	}

	return tcpInfo{
		rttMicros: info.Rtt,
		cwnd:      info.Snd_cwnd,
		unacked:   info.Unacked,
		mss:       mss,
	}, true
}

func setNotSentLowWat(conn net.Conn, bytes int) bool {
	raw, ok := syscallConn(conn)
	if !ok {
		return false
	}

	var serr error
	cerr := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_TCP, unix.TCP_NOTSENT_LOWAT, bytes)
	})

	return cerr == nil && serr == nil
}
