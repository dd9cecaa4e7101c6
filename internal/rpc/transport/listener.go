// Package transport provides the process-boundary surface clients use
// to reach the RPC demuxer: a Unix-domain socket standing in for the
// microkernel's bootstrap-port handshake (spec.md §6). Grounded on
// internal/netio/rawsock_linux.go's Listen/Accept/Close lifecycle shape,
// generalized from a UDP packet socket to a stream-oriented local
// transport.
package transport

import (
	"fmt"
	"net"
	"os"
)

// Listener accepts client connections on a Unix-domain socket.
type Listener struct {
	ln   net.Listener
	path string
}

// Listen creates (or replaces) the Unix-domain socket at path and starts
// listening. Matches spec.md §6's "the parent passes a bootstrap port;
// the translator replies with a send right to its root" in spirit: the
// socket file itself is the bootstrap handle clients connect() to.
func Listen(path string) (*Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listen %s: remove stale socket: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return &Listener{ln: ln, path: path}, nil
}

// Accept blocks for the next client connection.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	return conn, nil
}

// Close stops accepting and removes the socket file.
func (l *Listener) Close() error {
	if err := l.ln.Close(); err != nil {
		return fmt.Errorf("close listener: %w", err)
	}
	_ = os.Remove(l.path)
	return nil
}
