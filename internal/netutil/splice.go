// Package netutil holds small TCP helpers shared by the server and client
// cores: socket tuning and the bidirectional byte splice used once a data
// connection has been matched up with its peer.
package netutil

import (
	"io"
	"net"
	"sync"
	"time"
)

const bufSize = 32 * 1024

// bufPool reduces allocations for the io.CopyBuffer calls inside Splice.
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, bufSize)
		return &buf
	},
}

// TuneTCPConn applies keepalive and latency settings appropriate for a
// proxied data connection. Non-TCP connections (e.g. net.Pipe in tests) are
// left untouched.
func TuneTCPConn(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetNoDelay(true)
	_ = tc.SetKeepAlive(true)
	_ = tc.SetKeepAlivePeriod(30 * time.Second)
}

// Splice copies bytes bidirectionally between a and b until either
// direction's copy ends (EOF, reset, or explicit close), then closes both
// ends and waits for the other direction to unwind. It returns once both
// copies have stopped.
func Splice(a, b net.Conn) {
	done := make(chan struct{}, 2)

	go func() {
		bp := bufPool.Get().(*[]byte)
		_, _ = io.CopyBuffer(a, b, *bp)
		bufPool.Put(bp)
		done <- struct{}{}
	}()
	go func() {
		bp := bufPool.Get().(*[]byte)
		_, _ = io.CopyBuffer(b, a, *bp)
		bufPool.Put(bp)
		done <- struct{}{}
	}()

	<-done
	_ = a.Close()
	_ = b.Close()
	<-done
}
