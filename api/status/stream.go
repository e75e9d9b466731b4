package status

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/dutysched/core/feed"
	"github.com/kilianp07/dutysched/core/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is one frame of the event stream.
type Message struct {
	Type     string                 `json:"type"`
	Snapshot *feed.Snapshot         `json:"snapshot,omitempty"`
	Event    *model.TransitionEvent `json:"event,omitempty"`
	Dropped  uint64                 `json:"dropped,omitempty"`
}

// Message types.
const (
	TypeSnapshot   = "snapshot"
	TypeTransition = "transition"
	TypeDropped    = "dropped"
)

// events upgrades to a websocket and streams transitions in commit order.
// With ?snapshot=true the first frame is a snapshot and only transitions
// committed after it follow.
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	sub := h.feed.Subscribe(h.opts.StreamBuffer)
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readLoop(conn, cancel)

	var after uint64
	if r.URL.Query().Get("snapshot") == "true" {
		snap, err := h.feed.Snapshot(ctx)
		if err != nil {
			h.opts.Log.Errorf("stream snapshot: %v", err)
			return
		}
		after = snap.Seq
		if err := write(conn, Message{Type: TypeSnapshot, Snapshot: &snap}); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"), time.Now().Add(writeWait))
				return
			}
			if ev.Seq <= after {
				continue
			}
			if n := sub.Dropped(); n > dropped {
				if err := write(conn, Message{Type: TypeDropped, Dropped: n - dropped}); err != nil {
					return
				}
				dropped = n
			}
			if err := write(conn, Message{Type: TypeTransition, Event: &ev}); err != nil {
				return
			}
		}
	}
}

// readLoop consumes control frames and cancels the stream when the client
// goes away.
func (h *handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.opts.Log.Debugf("websocket closed: %v", err)
			}
			return
		}
	}
}

func write(conn *websocket.Conn, m Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}
