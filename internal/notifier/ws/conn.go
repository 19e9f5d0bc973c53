package ws

import "sync"

// lockedConn serializes writes to one socket. The client goroutine writes the
// ack, the backlog replay and pong replies while consumer goroutines push
// order updates through the hub, and the underlying websocket connection
// supports only a single concurrent writer.
type lockedConn struct {
	mu   sync.Mutex
	conn Conn
}

func (l *lockedConn) WriteJSON(v interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.conn.WriteJSON(v)
}

func (l *lockedConn) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.conn.Close()
}
