package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// Conn wraps one accepted client connection and dispatches framed
// requests through a Demuxer, mirroring internal/netio.Listener's
// context-aware receive loop shape but operating on a stream socket
// instead of a datagram PacketConn.
type Conn struct {
	nc    net.Conn
	demux *Demuxer
	log   *slog.Logger
}

// NewConn wraps an accepted connection for dispatch through demux.
func NewConn(nc net.Conn, demux *Demuxer, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{nc: nc, demux: demux, log: log}
}

// Serve reads framed requests until the connection closes or ctx is
// cancelled, dispatching each through the Demuxer and writing back the
// reply. A request that fails to decode terminates the connection; a
// handler error is still framed and sent back to the caller so that
// one bad RPC does not tear down the whole connection.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.nc.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.nc.Close()
		case <-done:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("conn serve: %w", err)
		}

		req, err := ReadMessage(c.nc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("conn read: %w", err)
		}

		reply, herr := c.demux.Dispatch(req)
		if herr != nil {
			c.log.Debug("rpc handler error", "opcode", req.Opcode, "err", herr)
			reply = Message{Opcode: req.Opcode, Payload: encodeErrorPayload(herr)}
		}

		if err := WriteMessage(c.nc, reply); err != nil {
			return fmt.Errorf("conn write: %w", err)
		}
	}
}

// encodeErrorPayload turns a handler error into the reply payload: a
// single NUL byte followed by the error text. A clean reply starts
// with a non-NUL status byte; callers that care about error framing
// only need to check the first byte.
func encodeErrorPayload(err error) []byte {
	msg := err.Error()
	payload := make([]byte, 1+len(msg))
	payload[0] = 0x00
	copy(payload[1:], msg)
	return payload
}
