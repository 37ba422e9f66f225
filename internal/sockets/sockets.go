package sockets

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Socket is a write-safe view of one client connection. Reads stay on the
// connection's own goroutine; writes may come from any goroutine
// (broadcasts, pings, revocations) and are serialized here.
type Socket interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	Close() error
}

type socketImpl struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func NewSocket(ws *websocket.Conn) Socket {
	return &socketImpl{ws: ws}
}

func (s *socketImpl) WriteJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

func (s *socketImpl) ReadJSON(v interface{}) error {
	return s.ws.ReadJSON(v)
}

func (s *socketImpl) Close() error {
	return s.ws.Close()
}
