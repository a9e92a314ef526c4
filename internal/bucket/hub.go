package bucket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/tilegrid/internal/fetch"
)

// Event types sent on the events stream.
const (
	EventTile = "tile" // an image was added or removed
	EventMeta = "meta" // a sidecar changed
)

// Event is one change notification on the /events stream.
type Event struct {
	Type      string      `json:"type"`
	X         int         `json:"x"`
	Y         int         `json:"y"`
	Published bool        `json:"published"`
	Meta      *fetch.Meta `json:"meta,omitempty"`
}

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans events out to every connected websocket.
type hub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub(checkOrigin func(*http.Request) bool, logger *log.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger,
		subs:     make(map[*subscriber]struct{}),
	}
}

// serve upgrades the request and streams events until the peer goes away.
func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("subscriber joined", "remote", r.RemoteAddr)

	go h.write(s)

	// Reads only detect the close; clients never send anything we use.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(s)
	h.logger.Debug("subscriber left", "remote", r.RemoteAddr)
}

func (h *hub) write(s *subscriber) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drop unregisters s and closes its queue. Safe to call twice.
func (h *hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

// broadcast queues e for every subscriber. Subscribers whose queue is full
// are disconnected.
func (h *hub) broadcast(e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("cannot encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			delete(h.subs, s)
			close(s.send)
			h.logger.Warn("dropping slow subscriber", "remote", s.conn.RemoteAddr().String())
		}
	}
}

// closeAll disconnects every subscriber.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
