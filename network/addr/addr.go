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

// Package addr provides the small set of address-comparison and
// formatting helpers the socket package uses to key its per-connection
// peer-name cache and to render endpoints consistently across unix,
// IPv4 and IPv6 sockets.
package addr

import (
	"bytes"
	"net"
)

// family classifies an address the way Compare needs to: unix paths
// sort before IPv4, IPv4 before IPv6, so the total order below is
// stable regardless of which families a given comparison mixes.
func family(a net.Addr) int {
	switch v := a.(type) {
	case *net.UnixAddr:
		return 0
	case *net.TCPAddr:
		if v.IP.To4() != nil {
			return 1
		}
		return 2
	case *net.UDPAddr:
		if v.IP.To4() != nil {
			return 1
		}
		return 2
	default:
		return 3
	}
}

// Compare imposes a total order over net.Addr values so they can be
// used as map/cache keys or sorted deterministically: unix addresses
// compare by path, IPv4/IPv6 addresses compare by address bytes then
// port, and IPv6 breaks remaining ties with the zone (scope) id.
func Compare(a, b net.Addr) int {
	fa, fb := family(a), family(b)
	if fa != fb {
		return fa - fb
	}

	switch fa {
	case 0:
		pa, pb := unixPath(a), unixPath(b)
		return bytes.Compare([]byte(pa), []byte(pb))
	case 1, 2:
		ipa, porta, zonea := hostPort(a)
		ipb, portb, zoneb := hostPort(b)

		if c := bytes.Compare(ipa, ipb); c != 0 {
			return c
		}
		if porta != portb {
			return porta - portb
		}
		return bytes.Compare([]byte(zonea), []byte(zoneb))
	default:
		return bytes.Compare([]byte(a.String()), []byte(b.String()))
	}
}

func unixPath(a net.Addr) string {
	if u, ok := a.(*net.UnixAddr); ok {
		return u.Name
	}
	return a.String()
}

func hostPort(a net.Addr) (ip net.IP, port int, zone string) {
	switch v := a.(type) {
	case *net.TCPAddr:
		return normalizeIP(v.IP), v.Port, v.Zone
	case *net.UDPAddr:
		return normalizeIP(v.IP), v.Port, v.Zone
	default:
		return nil, 0, ""
	}
}

func normalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip.To16()
}

// NumericHost returns the numeric (no-DNS) string form of the host
// part of a, e.g. "127.0.0.1" or "::1". It never blocks on a resolver:
// unlike net.LookupAddr it only ever formats bytes already carried by
// a, so it is safe to call from latency-sensitive logging paths.
func NumericHost(a net.Addr) string {
	ip, _, _ := hostPort(a)
	if ip == nil {
		if u, ok := a.(*net.UnixAddr); ok {
			return u.Name
		}
		return ""
	}
	return ip.String()
}

// Port returns the numeric port carried by a, or -1 for a family
// (unix) that has none.
func Port(a net.Addr) int {
	switch v := a.(type) {
	case *net.TCPAddr:
		return v.Port
	case *net.UDPAddr:
		return v.Port
	default:
		return -1
	}
}
