// internal/httpserver/ws.go
//
// WebSocket stream for one session.
// The server writes every engine Event as JSON, starting with a "state"
// event carrying the current snapshot. The client may send intents:
//   {"type":"answer","prime":true} | {"type":"dismiss"} | {"type":"reset"}
// Results arrive as ordinary events; a locked answer produces none.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/primegame/internal/game"
	"github.com/robalobadob/primegame/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Events buffered per connection before new ones are dropped.
	sendBuffer = 16
)

// eventState is the kind of the first message on every connection.
const eventState game.EventKind = "state"

// intent is an incoming command from the renderer.
type intent struct {
	Type  string `json:"type"`
	Prime *bool  `json:"prime,omitempty"`
}

// wsClient ties one connection to one session.
type wsClient struct {
	conn *websocket.Conn
	sess *session.Session
	send chan game.Event
	done chan struct{}
	once sync.Once
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == s.cfg.ClientOrigin
		},
	}
}

// handleWS upgrades the connection and pumps events both ways until either
// side goes away or the session ends.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("websocket upgrade")
		return
	}
	c := &wsClient{
		conn: conn,
		sess: sess,
		send: make(chan game.Event, sendBuffer),
		done: make(chan struct{}),
	}

	detach := sess.Attach()
	defer detach()

	// The baseline and the subscription are taken together, so every
	// queued event is newer than the state message.
	initial, unsub := sess.Engine.Watch(c.offer)
	defer unsub()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(game.Event{Kind: eventState, Snapshot: initial}); err != nil {
		_ = conn.Close()
		return
	}

	go c.readPump()
	c.writePump()
}

// offer is the engine observer; it never blocks.
func (c *wsClient) offer(ev game.Event) {
	select {
	case c.send <- ev:
	default:
		// Slow reader; the next event carries the full snapshot anyway.
	}
}

func (c *wsClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// readPump applies intents from the peer until the connection fails.
func (c *wsClient) readPump() {
	defer c.stop()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.sess.Touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", c.sess.ID).Msg("websocket read")
			}
			return
		}
		var in intent
		if err := json.Unmarshal(message, &in); err != nil {
			log.Debug().Err(err).Str("session", c.sess.ID).Msg("bad intent")
			continue
		}
		c.sess.Touch()
		c.apply(in)
	}
}

func (c *wsClient) apply(in intent) {
	eng := c.sess.Engine
	switch in.Type {
	case "answer":
		if in.Prime != nil {
			eng.SubmitAnswer(*in.Prime)
		}
	case "dismiss":
		eng.DismissDialog()
	case "reset":
		eng.Reset()
	default:
		log.Debug().Str("session", c.sess.ID).Str("type", in.Type).Msg("unknown intent")
	}
}

// writePump writes queued events and keepalive pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sess.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			return
		case <-c.done:
			return
		}
	}
}
