package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsSession adapts a *websocket.Conn to roomset.Session. gorilla only
// allows one concurrent writer per connection, so every send is
// serialized through mu (room broadcasts and this peer's own bridging
// goroutine can both want to write at once).
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSession(conn *websocket.Conn) *wsSession {
	return &wsSession{conn: conn}
}

func (s *wsSession) SendText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) SendBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *wsSession) Close() error {
	return s.conn.Close()
}
