package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ObambaCaree/petridish/internal/world"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 5 * time.Second
	maxMessageSize      = 4096
)

// Session is one websocket connection. Writes are funnelled through a
// buffered channel drained by writePump so the simulation never blocks on a
// slow client.
type Session struct {
	id   string
	kind world.PlayerKind
	conn *websocket.Conn

	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	reason       string
	writeTimeout time.Duration
}

func newSession(id string, kind world.PlayerKind, conn *websocket.Conn, buffer int, writeTimeout time.Duration) *Session {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Session{
		id:           id,
		kind:         kind,
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// ID returns the session identifier used by the scheduler.
func (s *Session) ID() string { return s.id }

// Kind reports whether the session joined as a player or spectator.
func (s *Session) Kind() world.PlayerKind { return s.kind }

// enqueue queues a frame without blocking. It reports false when the buffer
// is full or the session is closing.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// close asks writePump to flush pending frames, send a close frame carrying
// reason and drop the connection. Safe to call more than once.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

func (s *Session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case data := <-s.send:
			if err := s.write(websocket.TextMessage, data); err != nil {
				s.close("")
				return
			}
		case <-s.done:
			s.flush()
			code := websocket.CloseNormalClosure
			if s.reason != "" {
				code = websocket.ClosePolicyViolation
			}
			s.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, s.reason))
			return
		}
	}
}

func (s *Session) flush() {
	for {
		select {
		case data := <-s.send:
			if err := s.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(messageType, data)
}
