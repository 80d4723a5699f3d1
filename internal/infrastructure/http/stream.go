package httpserver

import (
	"net/http"
	"time"

	"marketsync-service/internal/infrastructure/logx"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamPrices pushes the poller state to a websocket client: once on
// connect when a snapshot exists, then after every successful poll.
// Clients only read; anything they send is discarded.
func (s *Server) StreamPrices(w http.ResponseWriter, r *http.Request) {
	log := logx.WithFields(r.Context())
	updates, unsubscribe := s.Poller.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("prices_stream.upgrade_failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			log.Debug("prices_stream.write_failed", zap.Error(err))
			return false
		}
		return true
	}

	if st := s.Poller.State(); !st.Snapshot.IsZero() {
		if !send(toPrices(st)) {
			return
		}
	}
	log.Info("prices_stream.opened")
	defer log.Info("prices_stream.closed")

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case _, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "poller stopped"),
					time.Now().Add(streamWriteWait))
				return
			}
			if !send(toPrices(s.Poller.State())) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
